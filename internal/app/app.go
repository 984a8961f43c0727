package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/yungbote/diagnosis-backend/internal/data/db"
	"github.com/yungbote/diagnosis-backend/internal/data/repos"
	httpserver "github.com/yungbote/diagnosis-backend/internal/http"
	"github.com/yungbote/diagnosis-backend/internal/observability"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

const collectorInterval = 15 * time.Second

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    repos.Set
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics
	Server   *httpserver.Server

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

// NewCore opens the database and wires repos and services without the HTTP
// layer. CLI commands use it directly.
func NewCore(ctx context.Context) (*App, error) {
	cfg := LoadConfig(nil)
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.JWTSecretKey == defaultJWTSecret {
		log.Warn("JWT_SECRET_KEY not set, using the development default")
	}

	theDB, err := dbpkg.Open(cfg.DB, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbpkg.AutoMigrateAll(theDB); err != nil {
		closeDB(theDB)
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	metrics := observability.Init(log, cfg.MetricsEnabled)

	clients, err := wireClients(log, cfg)
	if err != nil {
		closeDB(theDB)
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, clients, metrics)

	return &App{
		Log:      log,
		DB:       theDB,
		Cfg:      cfg,
		Repos:    reposet,
		Clients:  clients,
		Services: serviceset,
		Metrics:  metrics,
	}, nil
}

// New builds the full server. A knowledge base that violates its integrity
// rules fails startup.
func New(ctx context.Context) (*App, error) {
	a, err := NewCore(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := a.Services.KnowledgeBase.Reload(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	if len(snap.Rules()) == 0 {
		a.Log.Warn("knowledge base has no rules; every assessment will end in the fallback diagnosis", "hint", "diagnosisd kb import")
	}

	a.Server = wireHTTP(a.DB, a.Log, a.Cfg, a.Services, a.Metrics)
	return a, nil
}

// Start launches background collectors, the standalone metrics listener and
// tracing. It is a no-op when called twice.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.otelShutdown = observability.InitOTel(ctx, a.Log, a.Cfg.Otel)

	if a.Metrics != nil {
		a.Metrics.StartDBCollector(ctx, a.Log, a.DB, collectorInterval)
		if a.Clients.Redis != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis, collectorInterval)
		}
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	}
}

func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := a.Cfg.Addr()
	a.Log.Info("Serving", "addr", addr)
	return a.Server.Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
		a.otelShutdown = nil
	}
	if err := a.Clients.Close(); err != nil {
		a.Log.Warn("close clients failed", "error", err)
	}
	closeDB(a.DB)
	if a.Log != nil {
		a.Log.Sync()
	}
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
