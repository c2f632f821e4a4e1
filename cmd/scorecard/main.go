package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fairwaylink/scorecard/cmd/scorecard/container"
	"github.com/fairwaylink/scorecard/cmd/scorecard/routes"
	"github.com/fairwaylink/scorecard/common/bootstrap"
	scmiddleware "github.com/fairwaylink/scorecard/common/middleware"
	"github.com/fairwaylink/scorecard/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (DB, logger, redis, telemetry)
	components, err := bootstrap.Setup(ctx, "scorecard")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap scorecard: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}
	defer serviceContainer.ConfigCache.Stop()

	e := setupEcho()
	setupMiddleware(e, serviceContainer)
	setupHealthCheck(e, components)
	registerRoutes(e, serviceContainer)

	startServer(e, components)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo, serviceContainer *container.Container) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	cfg := serviceContainer.Components.Config.RateLimit
	if cfg.Enabled {
		e.Use(scmiddleware.GlobalRateLimit(serviceContainer.RateLimiter, cfg.GlobalPerMin))
	}
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "degraded",
				"service": "scorecard",
				"error":   err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "scorecard",
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterRoundRoutes(e, serviceContainer)
	routes.RegisterScoreRoutes(e, serviceContainer)
	routes.RegisterCompletionRoutes(e, serviceContainer)
	routes.RegisterRankingRoutes(e, serviceContainer)
}

// startServer runs the HTTP server with graceful shutdown
func startServer(e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	components.Logger.Info("Starting scorecard", "port", port)

	srv := server.New("scorecard", port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
