package debug_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/cozy/cozy-autoviews/pkg/logger"
	"github.com/cozy/cozy-autoviews/tests/testutils"
	"github.com/cozy/cozy-autoviews/web/debug"
	weberrors "github.com/cozy/cozy-autoviews/web/errors"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	require.NoError(t, logger.Init(logger.Options{Level: "info", Output: io.Discard}))
	t.Cleanup(func() { _ = logger.Init(logger.Options{Level: "info", Output: os.Stderr}) })

	handler := echo.New()
	handler.HTTPErrorHandler = weberrors.ErrorHandler
	debug.Routes(handler.Group("/debug"))
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestDebug(t *testing.T) {
	ts := newServer(t)
	e := testutils.CreateTestClient(t, ts.URL)

	e.GET("/debug/my-db").
		Expect().Status(http.StatusNotFound).
		JSON().Object().Value("errors").Array().Value(0).Object().
		HasValue("detail", "debug is disabled on this database")

	e.POST("/debug/my-db").
		WithQuery("ttl", "1h").
		Expect().Status(http.StatusNoContent)
	assert.True(t, logger.WithDatabase("my-db").IsDebug())
	assert.False(t, logger.WithDatabase("other-db").IsDebug())

	obj := e.GET("/debug/my-db").
		Expect().Status(http.StatusOK).
		JSON().Object()
	obj.HasValue("database", "my-db")
	expiresAt, err := time.Parse(time.RFC3339Nano, obj.Value("expires_at").String().Raw())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	e.DELETE("/debug/my-db").
		Expect().Status(http.StatusNoContent)
	assert.False(t, logger.WithDatabase("my-db").IsDebug())
	e.GET("/debug/my-db").
		Expect().Status(http.StatusNotFound)
}

func TestDebugDefaultTTL(t *testing.T) {
	ts := newServer(t)
	e := testutils.CreateTestClient(t, ts.URL)

	e.POST("/debug/my-db").
		Expect().Status(http.StatusNoContent)
	expiresAt := logger.DebugExpiration("my-db")
	require.NotNil(t, expiresAt)
	assert.WithinDuration(t, time.Now().Add(debug.DefaultTTL), *expiresAt, time.Minute)
}

func TestDebugInvalidTTL(t *testing.T) {
	ts := newServer(t)
	e := testutils.CreateTestClient(t, ts.URL)

	for _, ttl := range []string{"forever", "-1h"} {
		e.POST("/debug/my-db").
			WithQuery("ttl", ttl).
			Expect().Status(http.StatusBadRequest).
			JSON().Object().Value("errors").Array().Value(0).Object().
			Value("detail").String().HasPrefix("invalid parameter ttl")
	}
	assert.Nil(t, logger.DebugExpiration("my-db"))
}
