package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes set the /metrics routes.
//
// Default prometheus handler comes with two collectors:
//   - ProcessCollector: cpu, memory and file descriptor usage as well as the
//     process start time for the given process id under the given
//     namespace...
//   - GoCollector: current go process, goroutines, GC pauses, ...
func Routes(g *echo.Group) {
	g.GET("", echo.WrapHandler(promhttp.Handler()))
}

// Timer is a middleware that observes the duration of the requests in
// HTTPTotalDurations.
func Timer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		status := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
		}
		HTTPTotalDurations.
			WithLabelValues(c.Request().Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}
