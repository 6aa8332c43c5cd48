// Package status is here just to say that the API is up and that it can
// access the CouchDB database, for debugging and monitoring purposes.
package status

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Timeout is the maximal duration of the health check of the database.
const Timeout = 5 * time.Second

// Checker is implemented by the stores that can report if they are
// reachable.
type Checker interface {
	CheckStatus(ctx context.Context) (time.Duration, error)
}

// CheckerFunc is an adapter to use a function as a Checker.
type CheckerFunc func(ctx context.Context) (time.Duration, error)

// CheckStatus calls f.
func (f CheckerFunc) CheckStatus(ctx context.Context) (time.Duration, error) {
	return f(ctx)
}

// Status returns the handler that responds with the status of the service.
func Status(checker Checker) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), Timeout)
		defer cancel()

		couch := "healthy"
		latency, err := checker.CheckStatus(ctx)
		if err != nil {
			couch = err.Error()
		}

		code := http.StatusOK
		status := "OK"
		if err != nil {
			code = http.StatusBadGateway
			status = "KO"
		}

		res := echo.Map{
			"couchdb": couch,
			"status":  status,
			"message": status,
		}
		if err == nil {
			res["latency"] = latency.String()
		}
		return c.JSON(code, res)
	}
}

// Routes sets the routing for the status service
func Routes(router *echo.Group, checker Checker) {
	h := Status(checker)
	router.GET("", h)
	router.HEAD("", h)
	router.GET("/", h)
	router.HEAD("/", h)
}
