package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/taxtracker/internal/clock"
	"github.com/smallbiznis/taxtracker/internal/config"
	"github.com/smallbiznis/taxtracker/internal/observability"
	obsmiddleware "github.com/smallbiznis/taxtracker/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/taxtracker/internal/observability/metrics"
	obstracing "github.com/smallbiznis/taxtracker/internal/observability/tracing"
	taxdomain "github.com/smallbiznis/taxtracker/internal/taxrecord/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
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

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine   *gin.Engine
	cfg      config.Config
	db       *gorm.DB
	clock    clock.Clock
	taxSvc   taxdomain.Service
	dueDates taxdomain.DueDateCalendar
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	DB       *gorm.DB
	Clock    clock.Clock `optional:"true"`
	TaxSvc   taxdomain.Service
	DueDates taxdomain.DueDateCalendar
}

func NewServer(p ServerParams) *Server {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}

	svc := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		db:       p.DB,
		clock:    clk,
		taxSvc:   p.TaxSvc,
		dueDates: p.DueDates,
	}

	svc.registerRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.Index)
	s.engine.GET("/health", s.Health)
	s.engine.GET("/database", s.DumpDatabase)

	tax := s.engine.Group("/tax")
	{
		tax.GET("/records", s.ListTaxRecords)
		tax.GET("/records/search", s.SearchTaxRecords)
		tax.POST("/records/add", s.AddTaxRecord)
		tax.POST("/records/delete/:id", s.DeleteTaxRecord)
		tax.GET("/summary", s.SummarizeTaxRecords)
	}

	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

func (s *Server) Index(c *gin.Context) {
	routes := s.engine.Routes()
	paths := make([]gin.H, 0, len(routes))
	for _, route := range routes {
		paths = append(paths, gin.H{"method": route.Method, "path": route.Path})
	}

	c.JSON(http.StatusOK, gin.H{
		"name":    s.cfg.AppName,
		"version": s.cfg.AppVersion,
		"routes":  paths,
	})
}

func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		obsmiddleware.FromContext(c.Request.Context()).Warn("database ping failed", zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
