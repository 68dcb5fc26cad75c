package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/verdantgrid/h2ledger/internal/audit"
	auditdomain "github.com/verdantgrid/h2ledger/internal/audit/domain"
	"github.com/verdantgrid/h2ledger/internal/authorization"
	"github.com/verdantgrid/h2ledger/internal/clock"
	"github.com/verdantgrid/h2ledger/internal/config"
	"github.com/verdantgrid/h2ledger/internal/credit"
	"github.com/verdantgrid/h2ledger/internal/fraud"
	"github.com/verdantgrid/h2ledger/internal/ledger"
	ledgerdomain "github.com/verdantgrid/h2ledger/internal/ledger/domain"
	"github.com/verdantgrid/h2ledger/internal/migration"
	"github.com/verdantgrid/h2ledger/internal/observability"
	obsmiddleware "github.com/verdantgrid/h2ledger/internal/observability/logger"
	obsmetrics "github.com/verdantgrid/h2ledger/internal/observability/metrics"
	obstracing "github.com/verdantgrid/h2ledger/internal/observability/tracing"
	"github.com/verdantgrid/h2ledger/internal/ratelimit"
	"github.com/verdantgrid/h2ledger/internal/sequence"
	"github.com/verdantgrid/h2ledger/internal/stats"
	statsdomain "github.com/verdantgrid/h2ledger/internal/stats/domain"
	"github.com/verdantgrid/h2ledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	config.Module,
	clock.Module,
	db.Module,
	migration.Module,
	fx.Provide(registerGin),
	authorization.Module,
	credit.Module,
	sequence.Module,
	audit.Module,
	ledger.Module,
	fraud.Module,
	stats.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server", zap.Error(err))
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
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	ledgerSvc  ledgerdomain.Service
	auditSvc   auditdomain.Service
	statsSvc   statsdomain.Service
	authzSvc   authorization.Service
	fraud      *fraud.Detector
	limiter    *ratelimit.MutationLimiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	LedgerSvc ledgerdomain.Service
	AuditSvc  auditdomain.Service
	StatsSvc  statsdomain.Service
	AuthzSvc  authorization.Service
	Fraud     *fraud.Detector

	Limiter    *ratelimit.MutationLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		ledgerSvc:  p.LedgerSvc,
		auditSvc:   p.AuditSvc,
		statsSvc:   p.StatsSvc,
		authzSvc:   p.AuthzSvc,
		fraud:      p.Fraud,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/credits", s.ListCredits)
	api.GET("/credits/flagged", s.ListFlaggedCredits)
	api.GET("/credits/:id", s.GetCredit)
	api.GET("/credits/:id/history", s.GetCreditHistory)
	api.GET("/transactions", s.ListTransactions)
	api.GET("/stats/impact", s.GetImpact)

	mutations := api.Group("", s.mutationRateLimit())
	mutations.POST("/credits", s.IssueCredit)
	mutations.POST("/credits/:id/transfer", s.TransferCredit)
	mutations.POST("/credits/:id/retire", s.RetireCredit)
	mutations.POST("/credits/:id/verify", s.VerifyCredit)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.GET("/auditors", s.ListAuditors)
	admin.POST("/auditors", s.AddAuditor)
	admin.DELETE("/auditors/:principal", s.RemoveAuditor)
}

func (s *Server) mutationRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		actor := c.GetHeader("X-Actor")
		if actor == "" {
			actor = c.ClientIP()
		}

		res, err := s.limiter.Allow(c.Request.Context(), actor)
		if err != nil {
			// Fail open: a broken limiter must not take the ledger down.
			s.log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), c.FullPath())
			if res.RetryAfter > 0 {
				c.Header("Retry-After", res.RetryAfter.Truncate(time.Second).String())
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
				Type:    "rate_limited",
				Message: "too many requests",
			}})
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(c.Request.Context(), c.FullPath())
		c.Next()
	}
}
