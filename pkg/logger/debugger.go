package logger

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var debugger Debugger

// ErrNotInitialized is returned when the debug list is changed before Init.
var ErrNotInitialized = errors.New("logger: not initialized")

// Debugger manages the list of databases with the debug mode.
//
// Once you call `AddDatabase` all Debug logs containing the corresponding
// `db` field (setup with `WithDatabase`) will be printed even if the global
// logger is setup with a higher level (like 'info').
type Debugger interface {
	AddDatabase(db string, ttl time.Duration) error
	RemoveDatabase(db string) error
	ExpiresAt(db string) *time.Time
}

func initDebugger(client redis.UniversalClient) error {
	var err error

	if client == nil {
		debugger = NewMemDebugger()
		return nil
	}

	debugger, err = NewRedisDebugger(client)
	if err != nil {
		return fmt.Errorf("failed to init the redis debugger: %w", err)
	}

	return nil
}

// AddDebugDatabase activates the debug logs for the given database during
// ttl.
func AddDebugDatabase(db string, ttl time.Duration) error {
	if debugger == nil {
		return ErrNotInitialized
	}
	return debugger.AddDatabase(db, ttl)
}

// RemoveDebugDatabase deactivates the debug logs for the given database.
func RemoveDebugDatabase(db string) error {
	if debugger == nil {
		return ErrNotInitialized
	}
	return debugger.RemoveDatabase(db)
}

// DebugExpiration returns the time at which the debug mode of the given
// database ends, or nil if it is not in debug mode.
func DebugExpiration(db string) *time.Time {
	if debugger == nil {
		return nil
	}
	return debugger.ExpiresAt(db)
}
