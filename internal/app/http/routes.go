package routes

import (
	"net/http"

	adminapi "donation-app/internal/api/admin"
	donationsapi "donation-app/internal/api/donations"
	"donation-app/internal/api/payments"
	"donation-app/internal/app/http/middleware"
	"donation-app/internal/infra/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	Donations *donationsapi.Handler
	Payments  *payments.Handler
	Admin     *adminapi.Handler
	Metrics   http.Handler
}

type Options struct {
	JWTSecret []byte
	Limiter   *ratelimit.Limiter
	Log       *zap.Logger
}

func RegisterRoutes(r *gin.Engine, h Handlers, opt Options) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	// Gateway traffic: raw bodies are signed, so no sanitizing here.
	r.POST("/payment/callback", h.Payments.Callback)
	r.POST("/payment/callback/:gateway", h.Payments.Callback)
	r.POST("/payment/return", h.Payments.Return)
	r.POST("/payment/return/:gateway", h.Payments.Return)

	// Both ask the gateway or the ledger on every hit.
	polling := middleware.RateLimit(opt.Limiter, "status", opt.Log)
	r.GET("/payment/return/:gateway", polling, h.Payments.Return)
	r.GET("/payment/status", polling, h.Payments.Status)

	public := r.Group("/")
	public.Use(middleware.RateLimit(opt.Limiter, "intake", opt.Log), middleware.SanitizeAndCleanInputMiddleware())
	public.POST("/donations", h.Donations.Create)
	public.POST("/payment/initiate", h.Donations.Create)

	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(opt.JWTSecret), middleware.RequireRole("admin"))
	admin.GET("/dashboard", h.Admin.Dashboard)
	admin.POST("/donations/:orderId/reconcile", h.Admin.Reconcile)
	admin.GET("/donations/:orderId/callbacks", h.Admin.Callbacks)
}
