package status_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cozy/cozy-autoviews/pkg/couchdb/memstore"
	"github.com/cozy/cozy-autoviews/tests/testutils"
	weberrors "github.com/cozy/cozy-autoviews/web/errors"
	"github.com/cozy/cozy-autoviews/web/status"
	"github.com/labstack/echo/v4"
)

func newServer(t *testing.T, checker status.Checker) *httptest.Server {
	handler := echo.New()
	handler.HTTPErrorHandler = weberrors.ErrorHandler
	status.Routes(handler.Group("/status"), checker)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestRoutes(t *testing.T) {
	ts := newServer(t, memstore.New("status-test"))
	e := testutils.CreateTestClient(t, ts.URL)

	for _, path := range []string{"/status", "/status/"} {
		obj := e.GET(path).
			Expect().Status(http.StatusOK).
			JSON().Object()
		obj.HasValue("couchdb", "healthy")
		obj.HasValue("status", "OK")
		obj.HasValue("message", "OK")
		obj.Value("latency").String().NotEmpty()
	}

	e.HEAD("/status").Expect().Status(http.StatusOK)
}

func TestUnreachable(t *testing.T) {
	down := status.CheckerFunc(func(ctx context.Context) (time.Duration, error) {
		_, ok := ctx.Deadline()
		if !ok {
			return 0, errors.New("no deadline")
		}
		return 0, errors.New("connection refused")
	})
	ts := newServer(t, down)
	e := testutils.CreateTestClient(t, ts.URL)

	obj := e.GET("/status").
		Expect().Status(http.StatusBadGateway).
		JSON().Object()
	obj.HasValue("couchdb", "connection refused")
	obj.HasValue("status", "KO")
	obj.NotContainsKey("latency")
}
