// Package web is the admin HTTP API of autoviews: the health of the
// database, the prometheus metrics, the debug logs and the declared auto
// views.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cozy/cozy-autoviews/pkg/autoview"
	"github.com/cozy/cozy-autoviews/pkg/build"
	"github.com/cozy/cozy-autoviews/pkg/logger"
	"github.com/cozy/cozy-autoviews/pkg/metrics"
	"github.com/cozy/cozy-autoviews/web/debug"
	weberrors "github.com/cozy/cozy-autoviews/web/errors"
	"github.com/cozy/cozy-autoviews/web/status"
	"github.com/cozy/cozy-autoviews/web/version"
	"github.com/cozy/cozy-autoviews/web/views"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Store is the database behind the server: the views are queried on it and
// its status is reported on /status.
type Store interface {
	autoview.Store
	status.Checker
}

// SetupRoutes sets the routing of the admin endpoints on router.
func SetupRoutes(router *echo.Echo, store Store, specs []*autoview.Spec) {
	router.HideBanner = true
	router.HidePort = true

	if build.IsDevRelease() {
		router.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "time=${time_rfc3339}\tstatus=${status}\tmethod=${method}\thost=${host}\turi=${uri}\tbytes_out=${bytes_out}\n",
		}))
	} else {
		router.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
			StackSize: 10 << 10, // 10KB
		}))
	}
	router.Use(metrics.Timer)

	status.Routes(router.Group("/status"), store)
	version.Routes(router.Group("/version"))
	metrics.Routes(router.Group("/metrics"))
	debug.Routes(router.Group("/debug"))
	views.NewHTTPHandler(store, specs).Register(router.Group("/views"))

	router.HTTPErrorHandler = weberrors.ErrorHandler
}

// Server is the admin HTTP server.
type Server struct {
	addr string
	e    *echo.Echo
	errs chan error
}

// NewServer returns a server that will listen on addr.
func NewServer(addr string, store Store, specs []*autoview.Spec) *Server {
	e := echo.New()
	SetupRoutes(e, store, specs)
	return &Server{addr: addr, e: e, errs: make(chan error, 1)}
}

// Handler returns the http handler of the server.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start starts listening in a goroutine. The errors are sent on the Wait
// channel.
func (s *Server) Start() {
	logger.WithNamespace("web").Infof("listening on %s", s.addr)
	go func() {
		err := s.e.Start(s.addr)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.errs <- err
	}()
}

// Wait returns a channel on which the error of the server is sent when it
// stops.
func (s *Server) Wait() <-chan error {
	return s.errs
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	fmt.Print("  shutting down admin server...")
	if err := s.e.Shutdown(ctx); err != nil {
		fmt.Println("failed: ", err.Error())
		return err
	}
	fmt.Println("ok.")
	return nil
}
