package main

import (
	"time"

	"infinitiflow/cmd/server/handlers"
	"infinitiflow/cmd/server/handlers/account"
	"infinitiflow/cmd/server/handlers/admin"
	authHandlers "infinitiflow/cmd/server/handlers/auth"
	contentHandlers "infinitiflow/cmd/server/handlers/content"
	"infinitiflow/cmd/server/handlers/handlerutil"
	"infinitiflow/cmd/server/handlers/httperr"
	subscriptionHandlers "infinitiflow/cmd/server/handlers/subscription"
	templatesHandlers "infinitiflow/cmd/server/handlers/templates"
	"infinitiflow/cmd/server/middlewares"
	"infinitiflow/internal/config"
	"infinitiflow/internal/logger"
	"infinitiflow/internal/services/auth"
	"infinitiflow/internal/services/events"
	"infinitiflow/internal/services/subscription"

	_ "infinitiflow/docs" // Load swagger docs

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	RateLimitExpiration = 1 * time.Minute
)

func hubCollectors(hub *events.Hub) []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "account_stream_connections",
			Help: "Open account stream WebSocket connections",
		}, func() float64 {
			n, _ := hub.Stats()
			return float64(n)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "account_stream_dropped_events_total",
			Help: "Account events dropped because a connection outbox was full",
		}, func() float64 {
			_, dropped := hub.Stats()
			return float64(dropped)
		}),
	}
}

// setupRouter configures and returns a Fiber app with all routes
func setupRouter(cfg config.Config, svc *services) (*fiber.App, error) {
	v, err := handlerutil.NewValidator()
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:      "InfinitiFlow",
		ErrorHandler: httperr.Handler,
		JSONDecoder:  handlerutil.StrictJSONDecoder,
		Immutable:    true, // make Fiber copy all request-derived strings
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.ClientURL,
		AllowHeaders:     "Content-Type, Authorization",
		AllowCredentials: true,
	}))

	var metrics *middlewares.Metrics
	if cfg.RouteMetricsEnabled {
		metrics = middlewares.AttachMetrics(app, hubCollectors(svc.hub)...)
	}

	// outside the API group to avoid request logging
	app.Get("/healthz", handlers.Healthz(svc.ping))

	app.Get("/docs/*", swagger.HandlerDefault)

	var api fiber.Router
	if cfg.RequestLoggingEnabled {
		api = app.Group("/api", fiberlogger.New())
		logger.L().Info("request logging enabled")
	} else {
		api = app.Group("/api")
		logger.L().Info("request logging disabled")
	}

	gate := middlewares.NewGatekeeper(svc.issuer.AccessSecret(), svc.auth, logger.L())
	protect := gate.Protect()
	adminOnly := middlewares.RestrictTo(auth.RoleAdmin)
	userLimit := middlewares.NewUserRateLimiter(cfg.UserRateLimitMax, cfg.UserRateLimitWindow, cfg.UserRateLimitCacheSize).Handler()

	// Auth
	authH := authHandlers.NewHandlers(svc.auth, svc.usage, metrics, v, cfg)
	authGrp := api.Group("/auth", middlewares.BuildRateLimiter(cfg.SignInRatePerMin, RateLimitExpiration))

	authGrp.Post("/register", authH.Register)
	authGrp.Post("/login", authH.Login)
	authGrp.Post("/logout", authH.Logout)
	authGrp.Post("/forgot-password", authH.ForgotPassword)
	authGrp.Patch("/reset-password/:token", authH.ResetPassword)
	authGrp.Patch("/verify-email/:token", authH.VerifyEmail)
	authGrp.Post("/resend-verification", authH.ResendVerification)
	authGrp.Post("/refresh-token", authH.RefreshToken)
	authGrp.Get("/me", protect, authH.Me)
	authGrp.Patch("/change-password", protect, authH.ChangePassword)
	authGrp.Patch("/update-me", protect, authH.UpdateMe)
	authGrp.Delete("/delete-me", protect, authH.DeleteMe)
	authGrp.Get("/usage", protect, authH.Usage)

	// Subscription
	subH := subscriptionHandlers.NewHandlers(svc.subscriptions, svc.usage, v)
	subGrp := api.Group("/subscription")

	subGrp.Get("/plans", subH.Plans)
	subGrp.Get("/", protect, subH.Get)
	subGrp.Patch("/plan", protect, subH.ChangePlan)
	subGrp.Post("/cancel", protect, subH.Cancel)
	subGrp.Post("/reactivate", protect, subH.Reactivate)
	subGrp.Get("/analytics", protect, middlewares.CheckSubscription(subscription.PlanBasic), subH.Analytics)

	// Content
	contentH := contentHandlers.NewHandlers(svc.content, v)
	ownsContent := middlewares.CheckOwnership(svc.content.Get, "id")
	contentGrp := api.Group("/content", protect, userLimit)

	contentGrp.Post("/", contentH.Create)
	contentGrp.Get("/", contentH.List)
	contentGrp.Get("/:id", ownsContent, contentH.Get)
	contentGrp.Patch("/:id", ownsContent, contentH.Update)
	contentGrp.Delete("/:id", ownsContent, contentH.Delete)

	// Templates
	tplH := templatesHandlers.NewHandlers(svc.templates, v)
	ownsTemplate := middlewares.CheckOwnership(svc.templates.Get, "id")
	tplGrp := api.Group("/templates")

	tplGrp.Get("/", gate.OptionalAuth(), tplH.List)
	tplGrp.Post("/", protect, adminOnly, tplH.Create)
	tplGrp.Post("/:id/use", protect, userLimit, tplH.Use)
	tplGrp.Patch("/:id", protect, ownsTemplate, tplH.Update)
	tplGrp.Delete("/:id", protect, ownsTemplate, tplH.Delete)

	// Admin
	adminH := admin.NewHandlers(svc.auth, v)
	adminGrp := api.Group("/admin", protect, adminOnly)

	adminGrp.Get("/users/:id", adminH.GetUser)
	adminGrp.Patch("/users/:id/role", adminH.SetRole)

	// WebSocket routes
	stream := account.NewStreamHandlers(svc.hub, svc.issuer, svc.auth, cfg.WSMaxSessionSec)
	app.Use("/ws", account.LogWSConnections(svc.issuer))
	app.Get("/ws/account/stream", stream.WSUpgrade, websocket.New(stream.WSAccountStream))

	return app, nil
}
