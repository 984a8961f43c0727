package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/diagnosis-backend/internal/http/handlers"
	httpMW "github.com/yungbote/diagnosis-backend/internal/http/middleware"
	"github.com/yungbote/diagnosis-backend/internal/observability"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	DiagnosisHandler *httpH.DiagnosisHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.RequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	diagnosis := r.Group("/api/diagnosis")
	if cfg.AuthMiddleware != nil {
		diagnosis.Use(cfg.AuthMiddleware.RequireAuth())
	}
	if cfg.DiagnosisHandler != nil {
		diagnosis.POST("/start", cfg.DiagnosisHandler.Start)
		diagnosis.GET("/assessments/:id/next", cfg.DiagnosisHandler.Next)
		diagnosis.POST("/assessments/:id/answer", cfg.DiagnosisHandler.Answer)
		diagnosis.GET("/assessments/:id/result", cfg.DiagnosisHandler.Result)
		diagnosis.GET("/assessments/:id/report", cfg.DiagnosisHandler.Report)
		diagnosis.GET("/history", cfg.DiagnosisHandler.History)
	}
	return r
}
