package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oplugy/config"
	"oplugy/cron"
	"oplugy/handlers"
	"oplugy/middleware"
	"oplugy/routes"
	"oplugy/services/checkout"
	"oplugy/services/handoff"
	"oplugy/services/notification"
	"oplugy/services/payment"
	"oplugy/services/vtu"
	"oplugy/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	cfg := config.AppConfig

	utils.InitRedis()
	redisClient := utils.GetSessionClient()

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	utils.StartHealthMonitor(monitorCtx, redisClient, 30*time.Second)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))
	stripe.Key = cfg.StripeKey

	// stores.
	sessionStore := checkout.NewRedisSessionStore(redisClient, config.SessionTTL())
	handoffStore := handoff.NewRedisStore(redisClient, config.SessionTTL())
	noticeFeed, err := notification.NewDefaultNotificationService(redisClient, config.SessionTTL())
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize notification feed: %v", err)
	}

	// aggregator.
	vtuClient := vtu.NewHTTPClient(cfg.VTUBaseURL, cfg.VTUAPIKey, config.VTUTimeout(), logger.Named("vtu"))

	// fulfillment notifications.
	var notifier notification.Notifier = &notification.InlineNotifier{
		Feed:   noticeFeed,
		Delay:  config.FulfillmentDelay(),
		Logger: logger,
	}
	var worker *asynq.Server
	var queueClient *asynq.Client
	if cfg.FulfillmentQueue {
		queueClient = asynq.NewClient(cron.QueueRedisOpt())
		notifier = &notification.QueueNotifier{
			Client: queueClient,
			Delay:  config.FulfillmentDelay(),
			Logger: logger,
		}
		worker = cron.InitFulfillmentWorker(monitorCtx, noticeFeed)
	}

	// services.
	funnelService := &checkout.DefaultFunnelService{
		Store:         sessionStore,
		Handoff:       handoffStore,
		Catalog:       vtuClient,
		Verifier:      vtuClient,
		DefaultServer: cfg.VTUServer,
		Logger:        logger.Named("checkout"),
	}
	paymentStage := &payment.Stage{
		Handoff:  handoffStore,
		Gateway:  payment.NewGateway(cfg.PaymentGateway, cfg.PaystackPublicKey, cfg.StripeKey, cfg.StripePublishableKey),
		Notifier: notifier,
		Email:    cfg.GuestEmail,
		Currency: cfg.Currency,
		Logger:   logger.Named("payment"),
	}
	if !paymentStage.Gateway.Configured() {
		logger.Warn("main: payment gateway has no key; checkout will refuse payments", zap.String("gateway", paymentStage.Gateway.Name()))
	}

	checkoutHandler := handlers.NewCheckoutHandler(funnelService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentStage, logger)
	notificationHandler := handlers.NewNotificationHandler(noticeFeed, logger)
	authHandler, err := handlers.NewAuthHandler(cfg.DemoEmail, cfg.DemoPassword, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize demo auth: %v", err)
	}

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		// Checkout funnel endpoints.
		StartFunnel:  checkoutHandler.StartFunnel,
		GetFunnel:    checkoutHandler.GetFunnel,
		SelectField:  checkoutHandler.SelectField,
		VerifyFunnel: checkoutHandler.VerifyFunnel,
		SubmitFunnel: checkoutHandler.SubmitFunnel,
		CloseFunnel:  checkoutHandler.CloseFunnel,

		// Payment stage endpoints.
		GetCheckout:     paymentHandler.GetCheckout,
		InitiatePayment: paymentHandler.InitiatePayment,
		PaymentCallback: paymentHandler.PaymentCallback,
		CancelPayment:   paymentHandler.CancelPayment,

		GetNotifications: notificationHandler.GetNotifications,

		// Demo auth endpoints.
		LoginHandler:  authHandler.LoginHandler,
		MeHandler:     authHandler.MeHandler,
		SignupHandler: authHandler.SignupHandler,
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}
	stopMonitor()
	if worker != nil {
		worker.Shutdown()
	}
	if queueClient != nil {
		if err := queueClient.Close(); err != nil {
			logger.Warn("main: failed to close queue client", zap.Error(err))
		}
	}
	_ = logger.Sync()

	logger.Sugar().Info("main: server stopped gracefully")
}
