package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var debugLogger *logrus.Logger

// Fields type, used to pass to [Logger.WithFields].
type Fields map[string]interface{}

// Logger allows to emits logs to the divers log systems.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)

	WithField(fn string, fv interface{}) Logger
	WithFields(fields Fields) Logger
	WithTime(t time.Time) Logger

	Log(level Level, msg string)
}

// Options contains the configuration values of the logger system
type Options struct {
	Hooks  []logrus.Hook
	Output io.Writer
	Level  string
	Syslog bool
	Redis  redis.UniversalClient
}

// Init initializes the logger module with the specified options.
//
// It also setup the global logger for go-redis. Thoses are at
// Info level.
func Init(opt Options) error {
	level := opt.Level
	if level == "" {
		level = "info"
	}
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	if opt.Syslog {
		hook, err := syslogHook()
		if err != nil {
			return err
		}
		opt.Hooks = append(opt.Hooks, hook)
		opt.Output = io.Discard
	}

	// Setup the global logger in case of someone call the global functions.
	setupLogger(logrus.StandardLogger(), logLevel, opt)

	// Setup the debug logger used for the the databases in debug mode.
	debugLogger = logrus.New()
	setupLogger(debugLogger, logrus.DebugLevel, opt)

	w := WithNamespace("go-redis").Writer()
	l := log.New(w, "", 0)
	redis.SetLogger(&contextPrint{l})

	return initDebugger(opt.Redis)
}

// Entry is the struct on which we can call the Debug, Info, Warn, Error
// methods with the structured data accumulated.
type Entry struct {
	entry *logrus.Entry
}

// WithDatabase returns a logger with the specified database field.
func WithDatabase(db string) *Entry {
	e := logrus.WithField("db", db)
	return &Entry{e}
}

// WithNamespace returns a logger with the specified nspace field.
func WithNamespace(nspace string) *Entry {
	entry := logrus.WithField("nspace", nspace)
	return &Entry{entry}
}

// WithNamespace adds a namespace (nspace field).
func (e *Entry) WithNamespace(nspace string) *Entry {
	entry := e.entry.WithField("nspace", nspace)
	return &Entry{entry}
}

// WithDatabase adds a database field.
func (e *Entry) WithDatabase(db string) *Entry {
	entry := e.entry.WithField("db", db)
	return &Entry{entry}
}

// WithField adds a single field to the Entry.
func (e *Entry) WithField(key string, value interface{}) Logger {
	entry := e.entry.WithField(key, value)
	return &Entry{entry}
}

// WithFields adds a map of fields to the Entry.
func (e *Entry) WithFields(fields Fields) Logger {
	entry := e.entry.WithFields(logrus.Fields(fields))
	return &Entry{entry}
}

// WithTime overrides the Entry's time
func (e *Entry) WithTime(t time.Time) Logger {
	entry := e.entry.WithTime(t)
	return &Entry{entry}
}

// maxLineWidth limits the number of characters of a line of log to avoid issue
// with syslog.
const maxLineWidth = 2000

func (e *Entry) Log(level Level, msg string) {
	if len(msg) > maxLineWidth {
		msg = msg[:maxLineWidth-12] + " [TRUNCATED]"
	}

	if level == DebugLevel && e.inDebugMode() {
		// The database is listed in the debugger and the ttl is valid, use
		// the debug logger.
		debugLogger.WithFields(e.entry.Data).Log(logrus.DebugLevel, msg)
		return
	}

	e.entry.Log(getLogrusLevel(level), msg)
}

func (e *Entry) inDebugMode() bool {
	db, ok := e.entry.Data["db"].(string)
	if !ok || debugger == nil || debugLogger == nil {
		return false
	}
	return debugger.ExpiresAt(db) != nil
}

func (e *Entry) Debug(msg string) {
	e.Log(DebugLevel, msg)
}

func (e *Entry) Info(msg string) {
	e.Log(InfoLevel, msg)
}

func (e *Entry) Warn(msg string) {
	e.Log(WarnLevel, msg)
}

func (e *Entry) Error(msg string) {
	e.Log(ErrorLevel, msg)
}

func (e *Entry) Debugf(format string, args ...interface{}) {
	e.Debug(fmt.Sprintf(format, args...))
}

func (e *Entry) Infof(format string, args ...interface{}) {
	e.Info(fmt.Sprintf(format, args...))
}

func (e *Entry) Warnf(format string, args ...interface{}) {
	e.Warn(fmt.Sprintf(format, args...))
}

func (e *Entry) Errorf(format string, args ...interface{}) {
	e.Error(fmt.Sprintf(format, args...))
}

func (e *Entry) Writer() *io.PipeWriter {
	return e.entry.Writer()
}

// IsDebug returns whether or not the debug logs of this entry are printed.
func (e *Entry) IsDebug() bool {
	return e.entry.Logger.IsLevelEnabled(logrus.DebugLevel) || e.inDebugMode()
}

func setupLogger(logger *logrus.Logger, lvl logrus.Level, opt Options) {
	logger.SetLevel(lvl)

	if opt.Output != nil {
		logger.SetOutput(opt.Output)
	}

	// We need to reset the hooks to avoid the accumulation of hooks for
	// the global loggers in case of several calls to `Init`.
	//
	// This is the case for `logrus.StandardLogger()` and the tests for example.
	logger.Hooks = logrus.LevelHooks{}

	for _, hook := range opt.Hooks {
		logger.AddHook(hook)
	}

	if lvl == logrus.DebugLevel {
		if formatter, ok := logger.Formatter.(*logrus.TextFormatter); ok {
			formatter.TimestampFormat = time.RFC3339Nano
		}
	}
}

type contextPrint struct {
	l *log.Logger
}

func (c contextPrint) Printf(ctx context.Context, format string, args ...interface{}) {
	c.l.Printf(format, args...)
}
