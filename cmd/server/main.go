package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/lanonasis/auth-gateway/pkg/config"
	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/logx"
	"github.com/lanonasis/auth-gateway/pkg/ratelimit"
)

func main() {
	logx.SetLevel(logLevelFromEnv())
	logx.Info("starting auth gateway")

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container := NewContainer(ctx, cfg)
	defer container.Cleanup()
	container.StartBackgroundServices(ctx)

	app := fiber.New(fiber.Config{
		AppName:               "lanonasis auth gateway",
		DisableStartupMessage: true,
		ErrorHandler:          globalErrorHandler,
		IdleTimeout:           120,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: func() string { return uuid.NewString() },
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.CORS.AllowedOrigins, ","),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-API-Key, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		ExposeHeaders: "X-Request-ID",
	}))
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	app.Get("/health", healthCheckHandler(container))
	app.Get("/", infoHandler)

	limiter := container.IAM.RateLimiter
	app.Use("/v1/auth/login", limiter.Middleware(ratelimit.ClassLogin, nil))
	app.Use("/oauth/token", limiter.Middleware(ratelimit.ClassToken, nil))
	app.Use("/oauth/introspect", limiter.Middleware(ratelimit.ClassIntrospect, nil))

	authMiddleware := container.IAM.AuthMiddleware.Authenticate()

	container.IAM.AuthHandlers.RegisterRoutes(app)
	container.IAM.APIKeyHandlers.RegisterRoutes(app, authMiddleware)
	container.IAM.OAuthHandlers.RegisterRoutes(app, authMiddleware)
	container.IAM.AdminHandlers.RegisterRoutes(app)
	app.Get("/v1/realtime", container.IAM.RealtimeHandler.FiberHandler())
	logx.Info("routes registered")

	app.Use(notFoundHandler)

	startServer(app, cfg.Port)
}

func logLevelFromEnv() logx.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return logx.LevelDebug
	case "warn":
		return logx.LevelWarn
	case "error":
		return logx.LevelError
	default:
		return logx.LevelInfo
	}
}

func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{"status": "healthy", "service": "auth-gateway"}

		if err := container.DB.Ping(); err != nil {
			health["db"] = "unhealthy"
			health["db_error"] = err.Error()
			health["status"] = "degraded"
		} else {
			health["db"] = "healthy"
		}

		if _, err := container.Redis.Ping(c.Context()).Result(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
		} else {
			health["redis"] = "healthy"
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

func infoHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "auth-gateway",
		"endpoints": fiber.Map{
			"login":      "POST /v1/auth/login",
			"refresh":    "POST /v1/auth/refresh",
			"oauth":      "/oauth/authorize, /oauth/token, /oauth/introspect, /oauth/device/code",
			"api_keys":   "/api/v1/api-keys",
			"realtime":   "GET /v1/realtime (websocket)",
			"bypass":     "POST /admin/bypass-login",
			"health":     "/health",
		},
	})
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":      "route not found",
		"code":       "NOT_FOUND",
		"path":       c.Path(),
		"request_id": c.Get("X-Request-ID"),
	})
}

func globalErrorHandler(c *fiber.Ctx, err error) error {
	logx.WithFields(logx.Fields{
		"path":       c.Path(),
		"method":     c.Method(),
		"ip":         c.IP(),
		"request_id": c.Get("X-Request-ID"),
	}).Errorf("request error: %v", err)

	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{
			"error":      e.Message,
			"code":       "FIBER_ERROR",
			"request_id": c.Get("X-Request-ID"),
		})
	}

	if e, ok := err.(*errx.Error); ok {
		response := fiber.Map{
			"error":      e.Message,
			"code":       e.Code,
			"type":       string(e.Type),
			"request_id": c.Get("X-Request-ID"),
		}
		if len(e.Details) > 0 {
			response["details"] = e.Details
		}
		if os.Getenv("DEBUG") == "true" && e.Err != nil {
			response["underlying_error"] = e.Err.Error()
		}
		return c.Status(e.HTTPStatus).JSON(response)
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      "internal server error",
		"code":       "INTERNAL_ERROR",
		"request_id": c.Get("X-Request-ID"),
	})
}

func startServer(app *fiber.App, port int) {
	go func() {
		logx.Infof("server listening on port %d", port)
		if err := app.Listen(":" + strconv.Itoa(port)); err != nil {
			logx.Fatalf("server error: %v", err)
		}
	}()

	gracefulShutdown(app)
}

func gracefulShutdown(app *fiber.App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logx.Infof("received signal: %v", sig)
	logx.Info("shutting down gracefully")

	if err := app.ShutdownWithTimeout(30); err != nil {
		logx.Errorf("server forced to shutdown: %v", err)
	}

	logx.Info("server exited successfully")
}
