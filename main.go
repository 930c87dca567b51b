package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"donation-app/config"
	"donation-app/database"
	adminapi "donation-app/internal/api/admin"
	donationsapi "donation-app/internal/api/donations"
	"donation-app/internal/api/payments"
	"donation-app/internal/app/confirmation"
	"donation-app/internal/app/dispatch"
	routes "donation-app/internal/app/http"
	"donation-app/internal/app/http/middleware"
	"donation-app/internal/app/intake"
	"donation-app/internal/app/reconcile"
	"donation-app/internal/infra/gateway"
	"donation-app/internal/infra/gateway/payu"
	"donation-app/internal/infra/ledger"
	"donation-app/internal/infra/logger"
	"donation-app/internal/infra/mailer"
	"donation-app/internal/infra/metrics"
	"donation-app/internal/infra/rabbitmq"
	"donation-app/internal/infra/ratelimit"
	"donation-app/internal/infra/stripe"
	"donation-app/internal/infra/whatsapp"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.Env == "prod" || cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.DBURL)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zl.Fatal("migrate", zap.Error(err))
	}
	store := ledger.New(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry, err := gateway.NewRegistry(cfg.DefaultGateway, buildGateways(cfg)...)
	if err != nil {
		zl.Fatal("gateways", zap.Error(err))
	}
	zl.Info("payment gateways ready", zap.Strings("gateways", registry.Names()), zap.String("default", cfg.DefaultGateway))

	publisher := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQExchange, zl)
	defer publisher.Close()

	mail := mailer.NewSMTP(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	org := dispatch.Org{Name: cfg.OrgName, PAN: cfg.OrgPAN, RegNo: cfg.Org80GRegNo, TaxNote: cfg.TaxExemptionNote}

	dispatcher := dispatch.New(zl, m, cfg.SideEffectTimeout,
		dispatch.Receipt{Mail: mail, Ledger: store, Org: org},
		dispatch.TaxCertificate{Mail: mail, Org: org},
		dispatch.AdminNotice{Mail: mail, Recipients: cfg.AdminEmails, Org: org},
		dispatch.StaffAlert{
			WhatsApp: whatsapp.New(whatsapp.Config{
				APIURL:        cfg.WhatsApp.APIURL,
				Token:         cfg.WhatsApp.Token,
				PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			}, nil),
			Numbers: cfg.WhatsApp.StaffNumbers,
		},
		dispatch.PublishEvent{Publisher: publisher},
	)

	confirmSvc := confirmation.NewService(store, registry, dispatcher, zl, m, cfg.GatewayLookupTimeout)
	intakeSvc := intake.NewService(store, registry, cfg.MaxDonationAmount, zl)

	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zl.Fatal("REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limiter = ratelimit.New(rdb, cfg.RateLimitPrefix, cfg.RateLimitPerMinute, time.Minute)
	}

	sweeper := reconcile.NewSweeper(store, confirmSvc, cfg.ReconcileMinAge, cfg.ReconcileBatchSize, zl)
	scheduler := reconcile.NewScheduler(sweeper, cfg.ReconcileSchedule, 4*time.Minute, zl)
	if err := scheduler.Start(); err != nil {
		zl.Fatal("reconcile schedule", zap.String("schedule", cfg.ReconcileSchedule), zap.Error(err))
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(zl), middleware.Recovery(zl))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Handlers{
		Donations: donationsapi.NewHandler(intakeSvc, zl),
		Payments: payments.NewHandler(confirmSvc, registry, store, payments.DonorURLs{
			Success: cfg.DonorSuccessURL,
			Failure: cfg.DonorFailureURL,
			Pending: cfg.DonorPendingURL,
		}, m, zl),
		Admin:   adminapi.NewHandler(confirmSvc, store, zl),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, routes.Options{
		JWTSecret: []byte(cfg.JWTSecret),
		Limiter:   limiter,
		Log:       zl,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		zl.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
	<-scheduler.Stop().Done()
	dispatcher.Wait()
}

func buildGateways(cfg config.Config) []gateway.Gateway {
	var gws []gateway.Gateway
	if cfg.PayU.Key != "" && cfg.PayU.Salt != "" {
		returnURL := cfg.PublicBaseURL + "/payment/return/" + payu.Name
		gws = append(gws, payu.New(payu.Config{
			Key:            cfg.PayU.Key,
			Salt:           cfg.PayU.Salt,
			CheckoutURL:    cfg.PayU.CheckoutURL,
			VerifyURL:      cfg.PayU.VerifyURL,
			SuccessURL:     returnURL,
			FailureURL:     returnURL,
			ProductInfo:    cfg.OrgName + " donation",
			AnonymousEmail: cfg.AnonymousEmail,
		}, nil))
	}
	if cfg.Stripe.SecretKey != "" && cfg.Stripe.WebhookSecret != "" {
		returnURL := cfg.PublicBaseURL + "/payment/return/" + stripe.Name
		gws = append(gws, stripe.New(stripe.Config{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			SuccessURL:    returnURL,
			CancelURL:     returnURL,
			ProductName:   "Donation to " + cfg.OrgName,
		}, nil))
	}
	return gws
}
