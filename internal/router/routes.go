package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-crawler/internal/auth"
	"github.com/octobees/contact-crawler/internal/config"
	"github.com/octobees/contact-crawler/internal/handler"
	middlewarepkg "github.com/octobees/contact-crawler/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Auth *handler.AuthHandler
	Jobs *handler.JobsHandler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})

	e.POST("/auth/login", handlers.Auth.Login)

	secured := e.Group("")
	secured.Use(middlewarepkg.JWT(jwtManager))

	secured.POST("/jobs", handlers.Jobs.Create, middlewarepkg.JobRateLimiter(cfg.RateLimitJobs))
	secured.GET("/jobs/:id", handlers.Jobs.Status)
}
