package cmd

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ru-ticket/config"
	"ru-ticket/internal/handlers"
	"ru-ticket/internal/services"
	"ru-ticket/internal/services/mercadopago"
	"ru-ticket/internal/session"
	_ "ru-ticket/migrations"
	"ru-ticket/models"
	"ru-ticket/monitoring"
	"ru-ticket/security"
	"ru-ticket/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
)

func Start() error {
	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	app := pocketbase.NewWithConfig(pocketbase.Config{
		DefaultDataDir: cfg.DataDir,
		DefaultDev:     !cfg.IsProduction(),
	})

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: %v (cache and rate limiting degraded until it is reachable)", err)
	}

	// Initialize PubNub
	var notifier services.Notifier = services.NopNotifier{}
	pn := services.NewPubNubNotifier(cfg.PubNubPublishKey, cfg.PubNubSubscribeKey, cfg.PubNubSecretKey, cfg.PubNubUserID)
	if pn != nil {
		notifier = pn
	} else {
		log.Println("PubNub not configured, realtime notifications disabled")
	}

	// Initialize services
	sessions := session.NewManager(cfg.JWTSecret, cfg.SessionTTL, cfg.IsProduction())
	gateway := mercadopago.NewClient(mercadopago.ClientConfig{
		BaseURL:     cfg.MercadoPagoBaseURL,
		AccessToken: cfg.MercadoPagoAccessToken,
		Timeout:     cfg.GatewayTimeout,
	})

	authService := services.NewAuthService(app, sessions)
	ticketService := services.NewTicketService(app, notifier)
	paymentService := services.NewPaymentService(app, gateway, redisClient, cfg)
	webhookService := services.NewWebhookService(app, gateway, notifier, cfg.MercadoPagoWebhookSecret, cfg.WebhookSkipSignature)
	usuarioService := services.NewUsuarioService(app, cfg.UploadsDir, cfg.MaxAvatarSize)
	dashboardService := services.NewDashboardService(app)
	chatService, err := services.NewChatService()
	if err != nil {
		return err
	}

	// Initialize handlers
	resp := handlers.NewResponder(cfg.IsProduction())
	authMiddleware := handlers.NewAuthMiddleware(authService, resp)
	authHandler := handlers.NewAuthHandler(authService, resp)
	ticketHandler := handlers.NewTicketHandler(ticketService, resp)
	paymentHandler := handlers.NewPaymentHandler(paymentService, webhookService, resp)
	usuarioHandler := handlers.NewUsuarioHandler(usuarioService, resp, cfg.MaxAvatarSize)
	adminHandler := handlers.NewAdminHandler(dashboardService, resp)
	chatHandler := handlers.NewChatHandler(chatService, resp)
	healthHandler := handlers.NewHealthHandler(redisClient)
	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: !cfg.IsProduction(),
	})

	app.RootCmd.AddCommand(newSeedAdminCommand(app, authService))

	var metricsServer *monitoring.Server
	if cfg.EnableMetrics {
		metricsServer = monitoring.NewServer(cfg.MetricsPort)
	}

	if cfg.WebhookSkipSignature {
		log.Println("WARNING: MERCADO_PAGO_WEBHOOK_SKIP_SIGNATURE is set; webhook notifications are NOT authenticated")
	}

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		e.Router.BindFunc(authMiddleware.LoadSession)

		staff := authMiddleware.RequireRole(models.RoleCaixa, models.RoleAdmin)
		admin := authMiddleware.RequireRole(models.RoleAdmin)

		// Auth endpoints
		e.Router.POST("/api/auth/register", authHandler.Register).BindFunc(limiter.Limit("register"))
		e.Router.POST("/api/auth/login", authHandler.Login).BindFunc(limiter.Limit("login"))
		e.Router.POST("/api/auth/logout", authHandler.Logout)
		e.Router.GET("/api/session", authHandler.Session)
		e.Router.POST("/api/auth/qr-login/token", authHandler.CreateQRLogin).BindFunc(authMiddleware.RequireAuth)
		e.Router.POST("/api/auth/qr-login", authHandler.RedeemQRLogin).BindFunc(limiter.Limit("qr-login"))

		// Ticket endpoints
		e.Router.POST("/api/tickets", ticketHandler.CreateTicket).BindFunc(authMiddleware.RequireAuth)
		e.Router.GET("/api/tickets", ticketHandler.ListTickets).BindFunc(authMiddleware.RequireAuth)
		e.Router.POST("/api/tickets/validar-qr", ticketHandler.LookupQRCode).BindFunc(staff)
		e.Router.GET("/api/tickets/{id}", ticketHandler.GetTicket).BindFunc(authMiddleware.RequireAuth)
		e.Router.PATCH("/api/tickets/{id}", ticketHandler.UpdateTicket).BindFunc(admin)
		e.Router.PATCH("/api/tickets/{id}/validar", ticketHandler.ValidateTicket).BindFunc(staff)

		// Payment endpoints
		e.Router.POST("/api/checkout", paymentHandler.Checkout).BindFunc(authMiddleware.RequireAuth)
		e.Router.GET("/api/mercadopago/payment-methods", paymentHandler.PaymentMethods)
		e.Router.POST("/api/mercadopago/webhook", paymentHandler.Webhook)

		// Profile endpoints
		e.Router.PATCH("/api/usuarios/me", usuarioHandler.UpdateProfile).BindFunc(authMiddleware.RequireAuth)
		e.Router.PATCH("/api/usuarios/me/senha", usuarioHandler.ChangePassword).BindFunc(authMiddleware.RequireAuth)
		e.Router.POST("/api/usuarios/me/avatar", usuarioHandler.UploadAvatar).BindFunc(authMiddleware.RequireAuth)
		e.Router.GET("/uploads/{path...}", usuarioHandler.ServeUpload)

		// Admin endpoints
		e.Router.GET("/api/admin/dashboard", adminHandler.GetDashboard).BindFunc(admin)

		// Chat
		e.Router.POST("/api/chat", chatHandler.Chat).BindFunc(limiter.Limit("chat"))

		// Health check
		e.Router.GET("/health", healthHandler.Health)

		log.Println("Server routes registered")

		if metricsServer != nil {
			metricsServer.Start()
		}

		return e.Next()
	})

	setupEventHooks(app, cfg.UploadsDir)

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				log.Printf("Metrics server shutdown: %v", err)
			}
		}
		if pn != nil {
			pn.Close()
		}
		closeRedis(redisClient)
		return e.Next()
	})

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve", "--http=0.0.0.0:"+cfg.Port)
	}

	// Start server
	return app.Start()
}

func closeRedis(client *redis.Client) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		log.Printf("Redis close: %v", err)
	}
}

// setupEventHooks keeps the uploads directory in step with usuarios records.
func setupEventHooks(app *pocketbase.PocketBase, uploadsDir string) {
	app.OnRecordAfterDeleteSuccess(models.CollectionUsuarios).BindFunc(func(e *core.RecordEvent) error {
		avatar := strings.TrimPrefix(e.Record.GetString("avatar"), services.UploadsURLPrefix)
		if avatar == "" {
			return e.Next()
		}

		path, err := services.ResolveUploadPath(uploadsDir, avatar)
		if err == nil {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				e.App.Logger().Warn("Failed to remove avatar of deleted usuario",
					"usuarioID", e.Record.Id,
					"file", filepath.Base(path),
					"error", err,
				)
			}
		}
		return e.Next()
	})
}
