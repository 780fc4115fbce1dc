package routes

import (
	"net/http"
	"time"

	"oplugy/handlers"
	"oplugy/middleware"
	"oplugy/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterCheckoutRoutes registers the guest checkout funnel and payment stage.
func RegisterCheckoutRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/checkout")
	{
		api.Use(middleware.TabSessionMiddleware())

		funnels := api.Group("/funnels")
		funnels.POST("", middleware.OptionalDemoAuthMiddleware(), hb.StartFunnel)
		funnels.GET("/:id", hb.GetFunnel)
		funnels.PUT("/:id/fields/:field", hb.SelectField)
		funnels.POST("/:id/verify", hb.VerifyFunnel)
		funnels.POST("/:id/submit", hb.SubmitFunnel)
		funnels.DELETE("/:id", hb.CloseFunnel)

		api.GET("/payment", hb.GetCheckout)
		api.POST("/payment", hb.InitiatePayment)
		api.POST("/payment/callback", hb.PaymentCallback)
		api.POST("/payment/cancel", hb.CancelPayment)
	}
}

// RegisterNotificationRoutes registers the per-tab notice feed.
func RegisterNotificationRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/api/notifications", middleware.TabSessionMiddleware(), hb.GetNotifications)
}

// RegisterAuthRoutes registers the demo auth endpoints.
func RegisterAuthRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/auth")
	{
		api.POST("/login", hb.LoginHandler)
		api.POST("/signup", hb.SignupHandler)

		// Protected routes (Require Authentication)
		api.GET("/me", middleware.DemoAuthMiddleware(), hb.MeHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		health := utils.GetHealthStatus()
		status := http.StatusOK
		state := "ok"
		if !health.Redis {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "message": "Hi, I'm Oplugy", "health": health})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", utils.TabSessionHeader},
		ExposeHeaders:    []string{"Content-Length", utils.TabSessionHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterCheckoutRoutes(r, hb)
	RegisterNotificationRoutes(r, hb)
	RegisterAuthRoutes(r, hb)
	RegisterHealthRoute(r)
}
