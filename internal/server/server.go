package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountservice "github.com/smallbiznis/communa/internal/connectedaccount/service"
	"github.com/smallbiznis/communa/internal/config"
	"github.com/smallbiznis/communa/internal/observability"
	obsmetrics "github.com/smallbiznis/communa/internal/observability/metrics"
	obstracing "github.com/smallbiznis/communa/internal/observability/tracing"
	"github.com/smallbiznis/communa/internal/ratelimit"
	subscriptionservice "github.com/smallbiznis/communa/internal/subscription/service"
	transactionservice "github.com/smallbiznis/communa/internal/transaction/service"
	webhookservice "github.com/smallbiznis/communa/internal/webhook/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(accessLogMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(log, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	webhookSvc      *webhookservice.Service
	subscriptionSvc *subscriptionservice.Service
	transactionSvc  *transactionservice.Service
	accountSvc      *accountservice.Service
	webhookLimiter  *ratelimit.TokenBucket
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	WebhookSvc      *webhookservice.Service
	SubscriptionSvc *subscriptionservice.Service
	TransactionSvc  *transactionservice.Service
	AccountSvc      *accountservice.Service
	WebhookLimiter  *ratelimit.TokenBucket `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		webhookSvc:      p.WebhookSvc,
		subscriptionSvc: p.SubscriptionSvc,
		transactionSvc:  p.TransactionSvc,
		accountSvc:      p.AccountSvc,
		webhookLimiter:  p.WebhookLimiter,
	}

	svc.registerWebhookRoutes()
	svc.registerBillingRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/payments", s.WebhookRateLimit(), s.HandlePaymentWebhook)
}

func (s *Server) registerBillingRoutes() {
	tenants := s.engine.Group("/tenants/:tenant_id")

	tenants.GET("/subscription", s.GetPlatformSubscription)
	tenants.GET("/members/:user_id/subscription", s.GetMemberSubscription)
	tenants.GET("/transactions", s.ListTransactions)
	tenants.GET("/account", s.GetAccountStatus)
}
