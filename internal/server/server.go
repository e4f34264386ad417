package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopfloor/moldtrack/internal/alert"
	alertdomain "github.com/shopfloor/moldtrack/internal/alert/domain"
	"github.com/shopfloor/moldtrack/internal/asset"
	assetdomain "github.com/shopfloor/moldtrack/internal/asset/domain"
	"github.com/shopfloor/moldtrack/internal/config"
	"github.com/shopfloor/moldtrack/internal/observability"
	obsmiddleware "github.com/shopfloor/moldtrack/internal/observability/logger"
	obsmetrics "github.com/shopfloor/moldtrack/internal/observability/metrics"
	"github.com/shopfloor/moldtrack/internal/production"
	productiondomain "github.com/shopfloor/moldtrack/internal/production/domain"
	"github.com/shopfloor/moldtrack/internal/ratelimit"
	"github.com/shopfloor/moldtrack/internal/schedule"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	asset.Module,
	production.Module,
	alert.Module,
	schedule.Module,
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

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
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
	engine           *gin.Engine
	cfg              config.Config
	db               *gorm.DB
	genID            *snowflake.Node
	assetSvc         assetdomain.Service
	productionSvc    productiondomain.Service
	alertSvc         alertdomain.Service
	recordingLimiter *ratelimit.RecordingLimiter
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	DB               *gorm.DB
	GenID            *snowflake.Node
	AssetSvc         assetdomain.Service
	ProductionSvc    productiondomain.Service
	AlertSvc         alertdomain.Service
	RecordingLimiter *ratelimit.RecordingLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		db:               p.DB,
		genID:            p.GenID,
		assetSvc:         p.AssetSvc,
		productionSvc:    p.ProductionSvc,
		alertSvc:         p.AlertSvc,
		recordingLimiter: p.RecordingLimiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Molds --------
	api.GET("/molds", s.ListMolds)
	api.POST("/molds", s.CreateMold)
	api.GET("/molds/:id", s.GetMoldByID)
	api.PATCH("/molds/:id/target", s.UpdateMoldTarget)

	// -------- Production --------
	api.POST("/molds/:id/production", s.RecordingRateLimit(), s.RecordProduction)
	api.GET("/molds/:id/production", s.ListProductionEntries)

	// -------- Alerts --------
	api.GET("/molds/:id/alerts", s.ListMoldAlerts)
	api.GET("/alerts", s.ListAlerts)
	api.POST("/alerts/:id/resolve", s.ResolveAlert)
}
