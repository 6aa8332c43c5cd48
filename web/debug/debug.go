// Package debug is for the routes that activate the debug logs of a
// database, even when the global log level is higher.
package debug

import (
	"net/http"
	"time"

	"github.com/cozy/cozy-autoviews/pkg/logger"
	"github.com/labstack/echo/v4"
)

// DefaultTTL is the duration of the debug mode when no ttl is given.
const DefaultTTL = 24 * time.Hour

// Status is the response of GET /debug/:db
type Status struct {
	Database  string    `json:"database"`
	ExpiresAt time.Time `json:"expires_at"`
}

func getDebug(c echo.Context) error {
	db := c.Param("db")
	expiresAt := logger.DebugExpiration(db)
	if expiresAt == nil {
		return echo.NewHTTPError(http.StatusNotFound, "debug is disabled on this database")
	}
	return c.JSON(http.StatusOK, Status{Database: db, ExpiresAt: *expiresAt})
}

func enableDebug(c echo.Context) error {
	db := c.Param("db")
	ttl := DefaultTTL
	if raw := c.QueryParam("ttl"); raw != "" {
		var err error
		ttl, err = time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid parameter ttl").SetInternal(err)
		}
	}
	if err := logger.AddDebugDatabase(db, ttl); err != nil {
		return err
	}
	logger.WithDatabase(db).WithNamespace("debug").Infof("Debug mode enabled for %s", ttl)
	return c.NoContent(http.StatusNoContent)
}

func disableDebug(c echo.Context) error {
	db := c.Param("db")
	if err := logger.RemoveDebugDatabase(db); err != nil {
		return err
	}
	logger.WithDatabase(db).WithNamespace("debug").Infof("Debug mode disabled")
	return c.NoContent(http.StatusNoContent)
}

// Routes sets the routing for the debug mode of the databases.
func Routes(router *echo.Group) {
	router.GET("/:db", getDebug)
	router.POST("/:db", enableDebug)
	router.DELETE("/:db", disableDebug)
}
