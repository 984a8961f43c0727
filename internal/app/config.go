package app

import (
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/yungbote/diagnosis-backend/internal/data/db"
	"github.com/yungbote/diagnosis-backend/internal/observability"
	"github.com/yungbote/diagnosis-backend/internal/platform/envutil"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
	"github.com/yungbote/diagnosis-backend/internal/services"
)

const defaultJWTSecret = "defaultsecret"

type Config struct {
	Port    string
	LogMode string
	DB      dbpkg.Config

	JWTSecretKey   string
	AccessTokenTTL time.Duration

	RedisAddr       string
	SessionLockTTL  time.Duration
	SessionLockWait time.Duration

	KBSnapshotTTL         time.Duration
	KBSeedFile            string
	FallbackDiagnosisCode string

	MetricsEnabled bool
	MetricsAddr    string
	Otel           observability.OtelConfig

	CORSOrigins []string
}

// LoadConfig reads the environment once. log may be nil.
func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:    envutil.String("PORT", "8080"),
		LogMode: envutil.String("LOG_MODE", "development"),
		DB: dbpkg.Config{
			Driver:           strings.ToLower(envutil.String("DB_DRIVER", dbpkg.DriverSQLite)),
			SQLitePath:       envutil.String("SQLITE_PATH", "diagnosis.db"),
			PostgresHost:     envutil.String("POSTGRES_HOST", "localhost"),
			PostgresPort:     envutil.String("POSTGRES_PORT", "5432"),
			PostgresUser:     envutil.String("POSTGRES_USER", "postgres"),
			PostgresPassword: envutil.String("POSTGRES_PASSWORD", ""),
			PostgresName:     envutil.String("POSTGRES_NAME", "diagnosis"),
		},
		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", defaultJWTSecret),
		AccessTokenTTL: envutil.Seconds("ACCESS_TOKEN_TTL", time.Hour),

		RedisAddr:       envutil.String("REDIS_ADDR", ""),
		SessionLockTTL:  envutil.Seconds("SESSION_LOCK_TTL", 10*time.Second),
		SessionLockWait: envutil.Seconds("SESSION_LOCK_WAIT", 5*time.Second),

		KBSnapshotTTL:         envutil.Seconds("KB_SNAPSHOT_TTL", 30*time.Second),
		KBSeedFile:            envutil.String("KB_SEED_FILE", ""),
		FallbackDiagnosisCode: envutil.String("FALLBACK_DIAGNOSIS_CODE", services.DefaultFallbackDiagnosisCode),

		MetricsEnabled: envutil.Bool("METRICS_ENABLED", true),
		MetricsAddr:    envutil.String("METRICS_ADDR", ""),
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "diagnosis-backend"),
			Environment: envutil.String("APP_ENV", "development"),
			Version:     envutil.String("APP_VERSION", ""),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 0.1),
		},
		CORSOrigins: envutil.List("CORS_ALLOW_ORIGINS", nil),
	}
	if log != nil && cfg.JWTSecretKey == defaultJWTSecret {
		log.Warn("JWT_SECRET_KEY not set, using the development default")
	}
	return cfg
}

func (c Config) Validate() error {
	switch c.DB.Driver {
	case dbpkg.DriverSQLite, dbpkg.DriverPostgres:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("JWT_SECRET_KEY must not be empty")
	}
	if c.SessionLockWait <= 0 {
		return fmt.Errorf("SESSION_LOCK_WAIT must be positive")
	}
	return nil
}

func (c Config) Addr() string {
	port := strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	return ":" + port
}
