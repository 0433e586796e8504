// Package server contains the HTTP handlers and wiring for the moderation API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "gatekeeper/docs" // swagger docs
	"gatekeeper/internal/access"
	"gatekeeper/internal/bootstrap"
	"gatekeeper/internal/config"
	"gatekeeper/internal/featureflags"
	"gatekeeper/internal/middleware"
	"gatekeeper/internal/models"
	"gatekeeper/internal/notifications"
	"gatekeeper/internal/repository"
	"gatekeeper/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	rateLimiter    *middleware.RateLimiter
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	notifier       *notifications.Notifier
	gateway        notifications.Gateway
	featureFlags   *featureflags.Manager
	postService    *service.PostService
	deletion       *service.DeletionWorkflow
	userService    *service.UserService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	// Redis is optional; cache, events and rate limits degrade to no-ops.
	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	gateway, err := notifications.NewGateway(cfg, redisClient)
	if err != nil {
		return nil, fmt.Errorf("notification gateway: %w", err)
	}
	return NewServerWithGateway(cfg, db, redisClient, gateway), nil
}

// NewServerWithGateway is NewServerWithDeps with an explicit notification gateway.
func NewServerWithGateway(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, gateway notifications.Gateway) *Server {
	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("gatekeeper-api"),
		rateLimiter:    middleware.NewRateLimiter(redisClient, cfg.Env),
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		gateway:        gateway,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	server.postService = service.NewPostService(server.postRepo, server.notifier, server.featureFlags)
	server.deletion = service.NewDeletionWorkflow(server.postRepo, server.gateway, server.notifier, service.DeletionConfig{
		Recipient:     cfg.NotifyRecipient,
		BaseURL:       cfg.ApprovalBaseURL,
		NotifyTimeout: cfg.NotifyTimeout(),
	})
	server.userService = service.NewUserService(server.userRepo, server.notifier)

	middleware.Logger.Info("feature flags loaded",
		slog.Any("configured", server.featureFlags.Names()),
		slog.Bool(featureflags.FlagBasicAuth, server.featureFlags.EnabledGlobally(featureflags.FlagBasicAuth)),
		slog.Bool(featureflags.FlagBulkModeration, server.featureFlags.EnabledGlobally(featureflags.FlagBulkModeration)),
	)
	return server
}

// NewApp builds a Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "gatekeeper",
		BodyLimit:    1024 * 1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods: "GET,POST,PUT,OPTIONS",
		MaxAge:       86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	auth := s.AuthRequired()
	moderatorTier := s.RequireCapability(access.CapabilityModerator)
	adminTier := s.RequireCapability(access.CapabilityAdmin)
	superAdminTier := s.RequireCapability(access.CapabilitySuperAdmin)

	app.Get("/monitor", auth, adminTier, monitor.New(monitor.Config{
		Title: "Gatekeeper Metrics Dashboard",
	}))

	users := app.Group("/user")
	users.Post("/join", s.rateLimiter.Limit("join", 5, 10*time.Minute, middleware.FailOpen), s.Join)
	users.Post("/login", s.rateLimiter.Limit("login", 10, 5*time.Minute, middleware.FailOpen), s.Login)
	users.Get("/test", auth, s.RequireCapability(access.CapabilityUser), s.UserTest)
	users.Get("/access/:userId/:role", auth, moderatorTier, s.GrantRole)
	users.Get("/", auth, adminTier, s.ListUsers)

	posts := app.Group("/post")
	posts.Get("/viewAll", s.ViewApproved)
	posts.Post("/create", auth,
		s.rateLimiter.Limit("create_post", 10, time.Minute, middleware.FailOpen), s.CreatePost)
	posts.Get("/approvePost/:id", auth, moderatorTier, s.ApprovePost)
	posts.Get("/approveAll", auth, moderatorTier, s.ApproveAll)
	posts.Get("/removePost/:id", auth, moderatorTier, s.RejectPost)
	posts.Get("/rejectAll", auth, moderatorTier, s.RejectAll)
	// Authorship is checked against the locked row in the workflow.
	posts.Post("/deletePost/:id", auth, s.MarkForDeletion)
	posts.Put("/approveDeletion/:token", auth, superAdminTier, s.ApproveDeletion)
	posts.Put("/rejectDeletion/:token", auth, superAdminTier, s.RejectDeletion)
}

// Shutdown releases server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.WarnContext(ctx, "redis close failed", "error", err)
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// LivenessCheck handles GET /health/live
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} object{status=string,time=string}
// @Router /health/live [get]
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles GET /health/ready. Redis being down degrades the
// report without failing it.
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} object{status=string,checks=object{database=string,redis=string},time=string}
// @Failure 503 {object} object{status=string,checks=object{database=string,redis=string},time=string}
// @Router /health/ready [get]
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus == "unhealthy" {
		overallStatus = "degraded"
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

// AuthRequired authenticates the request and loads the actor from the store.
// Roles are never taken from the token so a grant or revoke applies to the
// next request.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowBasic := s.featureFlags.EnabledGlobally(featureflags.FlagBasicAuth)
		creds, err := middleware.ExtractCredentials(c, s.config.JWTSecret, allowBasic)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(capitalize(err.Error())))
		}

		ctx := c.UserContext()
		var user *models.User
		if creds.Basic {
			user, err = s.userService.Authenticate(ctx, creds.UserName, creds.Password)
		} else {
			user, err = s.userService.ResolveBearer(ctx, creds.UserID)
		}
		if err != nil {
			return models.RespondWithAppError(c, err)
		}

		c.Locals("userID", user.ID)
		c.Locals("userName", user.UserName)
		c.Locals("user", user)
		c.SetUserContext(middleware.WithActor(ctx, user.ID, user.UserName))

		return c.Next()
	}
}

// RequireCapability rejects actors holding none of caps. Services repeat the
// check; this gate keeps unauthorized requests away from handlers.
func (s *Server) RequireCapability(caps ...access.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := currentActor(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if err := access.Require(actor.Roles, caps...); err != nil {
			return models.RespondWithAppError(c, err)
		}
		return c.Next()
	}
}
