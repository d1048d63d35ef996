package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sortmark/internal/config"
	"github.com/MrSnakeDoc/sortmark/internal/dify"
	"github.com/MrSnakeDoc/sortmark/internal/httpserver"
	"github.com/MrSnakeDoc/sortmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sortmark/internal/ingest"
	"github.com/MrSnakeDoc/sortmark/internal/logger"
	"github.com/MrSnakeDoc/sortmark/internal/redis"
	"github.com/MrSnakeDoc/sortmark/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/sortmark/internal/store/redis"
	"github.com/MrSnakeDoc/sortmark/internal/store/sqlite"
	"github.com/MrSnakeDoc/sortmark/internal/version"
	"github.com/MrSnakeDoc/sortmark/internal/xauth"
)

type App struct {
	cfg          *config.Config
	logger       logger.Logger
	server       *httpserver.Server
	store        *sqlite.Store
	redisClient  *goredis.Client
	seedReloader *scheduler.SeedReloader
}

// New builds every dependency from the environment. Optional integrations
// (Redis cache, CSV conversion, X import, category seed) are wired only when configured.
func New(ctx context.Context) (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	store, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	loggerClient.Info("database ready", logger.String("path", cfg.DBPath))

	a := &App{
		cfg:    cfg,
		logger: loggerClient,
		store:  store,
	}

	difyClient := dify.New(dify.Options{
		BaseURL:          cfg.DifyBaseURL,
		CategorizeAPIKey: cfg.DifyCategorizeKey,
		CSVToJSONAPIKey:  cfg.DifyCSVKey,
		User:             cfg.DifyUser,
		Timeout:          cfg.DifyTimeout,
	})

	pipelineOpts := ingest.Options{
		Workers:   cfg.ClassifyWorkers,
		OutputKey: cfg.DifyOutputKey,
		LabelKey:  cfg.DifyLabelKey,
	}

	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Store:          store,
	}

	// Redis is optional: without it every item costs a workflow run.
	if cfg.RedisAddr != "" {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		redisClient, err := redis.New(ctx, redis.ConnectOptions{
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
		}, loggerClient)
		if err != nil {
			a.closeStore()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redisClient = redisClient

		cache := redisstore.NewLabelCache(redisClient, cfg.CacheTTL,
			redisstore.Namespace(cfg.DifyCategorizeKey, cfg.DifyOutputKey, cfg.DifyLabelKey))
		pipelineOpts.Cache = cache
		d.LabelCache = cache
		loggerClient.Info("label cache enabled", logger.Duration("ttl", cfg.CacheTTL))
	} else {
		loggerClient.Info("redis not configured, label cache disabled")
	}

	pipeline := ingest.New(difyClient, store, loggerClient, pipelineOpts)
	d.Ingester = pipeline

	if cfg.DifyCSVKey != "" {
		d.Converter = difyClient
	} else {
		loggerClient.Info("csv workflow key not configured, /convert disabled")
	}

	if cfg.XClientID != "" {
		d.XAuth = xauth.New(xauth.Options{
			ClientID:     cfg.XClientID,
			ClientSecret: cfg.XClientSecret,
			RedirectURL:  cfg.XRedirectURI,
			Scopes:       cfg.XScopes,
			AuthURL:      cfg.XAuthURL,
			TokenURL:     cfg.XTokenURL,
			APIBaseURL:   cfg.XAPIBaseURL,
			MaxPages:     cfg.XMaxPages,
		})
		loggerClient.Info("x import enabled", logger.String("redirect_uri", cfg.XRedirectURI))
	} else {
		loggerClient.Info("x client id not configured, /auth/x disabled")
	}

	if cfg.CategorySeedFile != "" {
		seedTrigger := make(chan struct{}, 1)
		a.seedReloader = scheduler.NewSeedReloader(
			cfg.CategorySeedFile,
			store,
			loggerClient,
			cfg.SeedReloadInterval,
			seedTrigger,
		)
		d.SeedTrigger = seedTrigger
	}

	a.server = httpserver.New(cfg, loggerClient, d)
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("🚀 Starting Sortmark v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.seedReloader != nil {
		if err := a.seedReloader.Start(ctx); err != nil {
			a.shutdownBackends()
			return fmt.Errorf("failed to start seed reloader: %w", err)
		}
		a.logger.Info("seed reloader started",
			logger.String("file", a.cfg.CategorySeedFile),
			logger.Duration("interval", a.cfg.SeedReloadInterval))
	}

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

	if a.seedReloader != nil {
		a.seedReloader.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("failed to stop server: %w", err))
	}

	a.shutdownBackends()
	if runErr != nil {
		return runErr
	}

	a.logger.Info("✅ Sortmark stopped cleanly")
	_ = a.logger.Sync()
	return nil
}

func (a *App) shutdownBackends() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
	a.closeStore()
}

func (a *App) closeStore() {
	if err := a.store.Close(); err != nil {
		a.logger.Warnf("failed to close database: %v", err)
		return
	}
	a.logger.Info("✅ Database closed cleanly")
}
