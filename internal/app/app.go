package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkvault/internal/auth"
	"github.com/MrSnakeDoc/linkvault/internal/bookmarks"
	"github.com/MrSnakeDoc/linkvault/internal/config"
	"github.com/MrSnakeDoc/linkvault/internal/dashboard"
	"github.com/MrSnakeDoc/linkvault/internal/httpserver"
	"github.com/MrSnakeDoc/linkvault/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkvault/internal/index"
	"github.com/MrSnakeDoc/linkvault/internal/live"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
	"github.com/MrSnakeDoc/linkvault/internal/redis"
	"github.com/MrSnakeDoc/linkvault/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/linkvault/internal/store/redis"
	"github.com/MrSnakeDoc/linkvault/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	sessions    *auth.Manager
	dashboard   *dashboard.Controller
	refresher   *scheduler.SessionRefresher
	resyncer    *scheduler.Resyncer
}

// Connect opens the backend connection described by cfg, retrying until
// cfg.RedisConnectTimeout expires.
func Connect(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*goredis.Client, error) {
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	return redis.New(ctx, redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
}

// New wires every component. The backend must be reachable: it fails fast otherwise.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	redisClient, err := Connect(ctx, cfg, loggerClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	loggerClient.Info("Redis initialized successfully")

	store := redisstore.NewStore(redisClient, loggerClient)

	flow := auth.NewRedirectFlow(cfg.AuthURL, cfg.PublicURL, loggerClient)
	sessions := auth.NewManager(store, auth.NewFileStore(cfg.SessionFile), flow, loggerClient, auth.Options{
		SessionTTL:   cfg.SessionTTL,
		LoginTimeout: cfg.LoginTimeout,
	})

	cache := index.NewBookmarkCache(store, loggerClient)
	listener := live.NewListener(store, loggerClient)
	ctrl := dashboard.New(sessions, cache, listener, bookmarks.NewService(store, loggerClient),
		loggerClient, cfg.DefaultProvider)

	// Create manual refresh trigger channel
	refreshTrigger := make(chan struct{}, 1)
	refresher := scheduler.NewSessionRefresher(sessions, loggerClient, cfg.RefreshInterval, refreshTrigger)

	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		RateLimitBurst: cfg.RateLimitBurst,
		RateLimitRPM:   cfg.RateLimitPerMinute,
		RedisClient:    redisClient,
		Dashboard:      ctrl,
		Cache:          cache,
		Listener:       listener,
		LoginCallback:  flow.Callback(),
		ImportFile:     cfg.ImportFile,
		RefreshTrigger: refreshTrigger,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		redisClient: redisClient,
		sessions:    sessions,
		dashboard:   ctrl,
		refresher:   refresher,
		resyncer:    scheduler.NewResyncer(ctrl, loggerClient, cfg.ResyncInterval),
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting LinkVault v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("LinkVault %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Restores the persisted session (if any) and loads its bookmarks
	a.dashboard.Start(ctx)
	a.logger.Info("dashboard started", logger.String("phase", string(a.dashboard.View().Phase)))

	if err := a.refresher.Start(ctx); err != nil {
		a.shutdownCore()
		return fmt.Errorf("failed to start session refresher: %w", err)
	}
	a.logger.Info("session refresher started",
		logger.Duration("interval", a.cfg.RefreshInterval))

	if err := a.resyncer.Start(ctx); err != nil {
		a.refresher.Stop()
		a.shutdownCore()
		return fmt.Errorf("failed to start resyncer: %w", err)
	}
	a.logger.Info("bookmark resyncer started",
		logger.Duration("interval", a.cfg.ResyncInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	a.resyncer.Stop()
	a.refresher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	a.shutdownCore()

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ LinkVault stopped cleanly")
	return nil
}

// shutdownCore releases the feed subscription, pending logins and the backend connection.
func (a *App) shutdownCore() {
	a.dashboard.Close()
	a.sessions.Close()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
}
