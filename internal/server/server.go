// Package server contains the HTTP handlers for the feed and notification API.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"zing/internal/bootstrap"
	"zing/internal/config"
	"zing/internal/middleware"
	"zing/internal/observability"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// httpMetrics returns the process-wide HTTP collector. fiberprometheus
// registers on the default registry, so it is created once.
func httpMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New("zing")
	})
	return prom
}

// Server holds all dependencies and provides handlers
type Server struct {
	config  *config.Config
	rt      *bootstrap.Runtime
	auth    *middleware.Auth
	limiter *middleware.Limiter
	app     *fiber.App
	metrics *fiberprometheus.FiberPrometheus
}

// NewServer creates a server over an initialized runtime.
func NewServer(cfg *config.Config, rt *bootstrap.Runtime) *Server {
	return &Server{
		config:  cfg,
		rt:      rt,
		auth:    middleware.NewAuth(cfg.JWTSecret),
		limiter: middleware.NewLimiter(rt.Cache.Client(), cfg.IsProduction()),
		metrics: httpMetrics(),
	}
}

// App builds the Fiber application on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "zing",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: errorHandler,
		UnescapePath: true,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.Tracing())

	// Context Middleware to propagate Request ID and trace ID
	app.Use(middleware.ContextMiddleware())

	if s.metrics != nil {
		app.Use(s.metrics.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger(observability.Logger))

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.metrics != nil {
		s.metrics.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	createPost := s.limiter.Handler(middleware.Rule{Name: "create_post", Limit: 30, Window: time.Minute})
	search := s.limiter.Handler(middleware.Rule{Name: "search", Limit: 30, Window: time.Minute})

	// Define specific /feed, /trending, /search routes BEFORE generic /:postId
	posts := api.Group("/posts")
	posts.Post("/", s.auth.Required(), createPost, s.CreatePost)
	posts.Get("/feed", s.auth.Required(), s.GetFeed)
	posts.Get("/trending", s.auth.Optional(), s.GetTrending)
	posts.Get("/search/:query", s.auth.Optional(), search, s.SearchPosts)
	posts.Post("/:postId/like", s.auth.Required(), s.LikePost)
	posts.Delete("/:postId/like", s.auth.Required(), s.UnlikePost)
	posts.Post("/:postId/repost", s.auth.Required(), s.RepostPost)
	posts.Get("/:postId", s.auth.Optional(), s.GetPost)
	posts.Delete("/:postId", s.auth.Required(), s.DeletePost)

	users := api.Group("/users")
	users.Get("/me", s.auth.Required(), s.GetMe)
	users.Put("/profile", s.auth.Required(), s.UpdateProfile)
	users.Get("/search/:query", s.auth.Optional(), search, s.SearchUsers)
	users.Post("/:username/follow", s.auth.Required(), s.ToggleFollow)
	users.Put("/:username/follow", s.auth.Required(), s.Follow)
	users.Delete("/:username/follow", s.auth.Required(), s.Unfollow)
	users.Get("/:username/followers", s.auth.Optional(), s.GetFollowers)
	users.Get("/:username/following", s.auth.Optional(), s.GetFollowing)
	users.Get("/:username/posts", s.auth.Optional(), s.GetUserPosts)
	users.Get("/:username", s.auth.Optional(), s.GetProfile)

	notifications := api.Group("/notifications", s.auth.Required())
	notifications.Get("/", s.GetNotifications)
	notifications.Get("/unread-count", s.GetUnreadCount)
	notifications.Put("/read-all", s.MarkAllNotificationsRead)
	notifications.Put("/:id/read", s.MarkNotificationRead)
}

// Start listens on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	observability.Logger.Info("Server starting", "addr", addr, "env", s.config.Env)
	return s.App().Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app == nil {
		return nil
	}
	return s.app.ShutdownWithContext(ctx)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so
// only the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbErr, redisErr := s.rt.Ping(ctx)

	dbStatus := "healthy"
	if dbErr != nil {
		dbStatus = "unhealthy"
	}
	redisStatus := "healthy"
	switch {
	case !s.rt.Cache.Enabled():
		redisStatus = "disabled"
	case redisErr != nil:
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbErr != nil {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}
