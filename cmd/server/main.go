package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/durolink/durolink/internal/api"
	"github.com/durolink/durolink/internal/app"
	"github.com/durolink/durolink/internal/cache"
	"github.com/durolink/durolink/internal/database"
	"github.com/durolink/durolink/internal/directory"
	"github.com/durolink/durolink/internal/github"
	"github.com/durolink/durolink/internal/githubauth"
	"github.com/durolink/durolink/internal/resolver"
	"github.com/durolink/durolink/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("durolink-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	var store cache.Store
	switch cfg.Cache.Backend {
	case "database":
		store = cache.NewDatabaseStore(db)
	default:
		store = cache.NewMemoryStore()
	}

	gateway := github.NewGateway(github.GatewayConfig{BaseURL: cfg.GitHub.APIBaseURL})

	// Tokens are never persisted; the credential cache is always
	// process-local even when the shared cache is database-backed.
	authority, err := githubauth.NewAuthority(githubauth.AppConfig{
		AppID:          cfg.GitHub.AppID,
		PrivateKeyPath: cfg.GitHub.PrivateKeyPath,
	}, cache.NewMemoryStore(), gateway)
	if err != nil {
		return fmt.Errorf("initialise credential authority: %w", err)
	}

	dir, err := directory.NewDirectory(db, store)
	if err != nil {
		return fmt.Errorf("initialise installation directory: %w", err)
	}

	syncer, err := directory.NewSyncer(dir, authority, gateway)
	if err != nil {
		return fmt.Errorf("initialise directory syncer: %w", err)
	}

	// First sync runs in the background so a slow or flaky upstream
	// cannot block startup; lookups answer 503 until it lands.
	syncer.Start(ctx)

	syncCron, err := syncer.Schedule(cfg.Directory.SyncSchedule)
	if err != nil {
		return fmt.Errorf("schedule directory sync: %w", err)
	}
	defer syncCron.Stop()

	res, err := resolver.NewResolver(resolver.Config{PublicURL: cfg.Server.PublicURL}, dir, authority, gateway)
	if err != nil {
		return fmt.Errorf("initialise resolver: %w", err)
	}

	var exchanger *githubauth.OAuthExchanger
	if cfg.GitHub.OAuth.ClientID != "" {
		exchanger = githubauth.NewOAuthExchanger(githubauth.OAuthConfig{
			ClientID:     cfg.GitHub.OAuth.ClientID,
			ClientSecret: cfg.GitHub.OAuth.ClientSecret,
			RedirectURL:  cfg.GitHub.OAuth.RedirectURL,
		})
	} else {
		log.Info("oauth client not configured; login routes disabled")
	}

	router, err := api.NewRouter(api.Deps{
		Config:    cfg,
		DB:        db,
		Store:     store,
		Directory: dir,
		Resolver:  res,
		Gateway:   gateway,
		Authority: authority,
		Exchanger: exchanger,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs error
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = multierr.Append(errs, fmt.Errorf("graceful shutdown: %w", err))
	}
	if err, ok := <-serverErr; ok && err != nil {
		errs = multierr.Append(errs, fmt.Errorf("server error: %w", err))
	}
	if errs != nil {
		return errs
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = cfg.Database.Postgres.Password
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database close skipped", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}
