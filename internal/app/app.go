package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	apphttp "github.com/yungbote/concierge-backend/internal/http"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    Repos
	Services Services
	Server   *apphttp.Server

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

func New(ctx context.Context) (*App, error) {
	cfg := LoadConfig()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return NewWithLogger(ctx, log, cfg)
}

func NewWithLogger(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		logBootstrapFailure(log, "Invalid configuration", err)
		return nil, err
	}
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: traceServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	metrics := observability.Init(log)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	theDB := clients.Postgres.DB()
	metrics.RegisterPostgres(log, theDB)

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, clients, serviceset)
	middleware := wireMiddleware(log, serviceset)
	server := wireServer(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background work: cache sweeping, the Redis collector, the
// standalone metrics listener, model warm-up and the Temporal worker.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Services.MemoryCache != nil {
		a.Services.MemoryCache.StartSweeper(ctx)
	}
	if a.Clients.Redis != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
	}
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)

	if a.Cfg.EmbeddingWarmOnStart {
		go func() {
			if err := a.Services.Embedder.Warm(ctx); err != nil {
				a.Log.Warn("Embedding model warm-up failed; it will load on first use", "error", err)
			}
		}()
	}

	if a.Services.Worker != nil {
		if err := a.Services.Worker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("Server listening", "addr", addr)
	return a.Server.Run(addr)
}

// Shutdown drains HTTP traffic, waits for inline ingestion runs and releases
// every client.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	err := a.Server.Shutdown(ctx)
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.Inline != nil {
		done := make(chan struct{})
		go func() {
			a.Services.Inline.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			a.Log.Warn("Shutdown deadline reached with document processing in flight")
		}
	}
	a.Close()
	return err
}

// Close releases resources without draining. Safe to call more than once.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
			a.cancel = nil
		}
		if a.Services.Embedder != nil {
			_ = a.Services.Embedder.Close()
		}
		a.Clients.Close()
		if a.otelShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = a.otelShutdown(ctx)
			cancel()
		}
		if a.Log != nil {
			a.Log.Sync()
		}
	})
}
