package utils

import (
	"context"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// NopShutdown implements the Shutdowner interface but does not execute any
// process on shutdown.
var NopShutdown = NewGroupShutdown()

// Shutdowner is an interface with a Shutdown method to gracefully shutdown
// a running process.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// ShutdownFunc is an adapter to use a function as a Shutdowner.
type ShutdownFunc func(ctx context.Context) error

// Shutdown calls f.
func (f ShutdownFunc) Shutdown(ctx context.Context) error {
	return f(ctx)
}

// GroupShutdown allow to group multiple Shutdowner into a single one.
type GroupShutdown struct {
	s []Shutdowner
}

// NewGroupShutdown returns a new GroupShutdown
func NewGroupShutdown(s ...Shutdowner) *GroupShutdown {
	return &GroupShutdown{s}
}

// Shutdown closes all the encapsulated [Shutdowner] in parallel an returns
// the concatenated errors.
func (g *GroupShutdown) Shutdown(ctx context.Context) error {
	var errm *multierror.Error
	l := sync.Mutex{}
	w := sync.WaitGroup{}

	for _, s := range g.s {
		w.Add(1)

		go (func() {
			defer w.Done()

			err := s.Shutdown(ctx)
			if err != nil {
				l.Lock()
				defer l.Unlock()
				errm = multierror.Append(errm, err)
			}
		})()
	}

	w.Wait()

	if errm == nil {
		return nil
	}
	errm.ErrorFormat = joinErrors
	return errm
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
