package app

import (
	"gorm.io/gorm"

	httpserver "github.com/yungbote/diagnosis-backend/internal/http"
	httpH "github.com/yungbote/diagnosis-backend/internal/http/handlers"
	httpMW "github.com/yungbote/diagnosis-backend/internal/http/middleware"
	"github.com/yungbote/diagnosis-backend/internal/observability"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

func wireHTTP(db *gorm.DB, log *logger.Logger, cfg Config, svcs Services, metrics *observability.Metrics) *httpserver.Server {
	log.Info("Wiring handlers and router...")

	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return httpserver.NewServer(httpserver.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		ServiceName:      serviceName,
		CORSOrigins:      cfg.CORSOrigins,
		AuthMiddleware:   httpMW.NewAuthMiddleware(log, svcs.Auth),
		DiagnosisHandler: httpH.NewDiagnosisHandler(log, svcs.Diagnosis),
		HealthHandler:    httpH.NewHealthHandler(db),
	})
}
