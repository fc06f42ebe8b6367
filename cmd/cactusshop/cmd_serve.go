package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/cactus_shop/internal/cache"
	"github.com/Skotchmaster/cactus_shop/internal/config"
	"github.com/Skotchmaster/cactus_shop/internal/events"
	"github.com/Skotchmaster/cactus_shop/internal/httpserver"
	"github.com/Skotchmaster/cactus_shop/internal/repo"
	"github.com/Skotchmaster/cactus_shop/internal/search"
	"github.com/Skotchmaster/cactus_shop/internal/service"
	"github.com/Skotchmaster/cactus_shop/internal/storage"
	"github.com/Skotchmaster/cactus_shop/pkg/authclient"
	pkgdb "github.com/Skotchmaster/cactus_shop/pkg/db"
	"github.com/Skotchmaster/cactus_shop/pkg/logging"
	"github.com/Skotchmaster/cactus_shop/pkg/metrics"
	"github.com/Skotchmaster/cactus_shop/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/cactus_shop/pkg/middleware/logging"
)

var (
	autoMigrate bool
	csrfEnabled bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "migrate the schema before serving")
	serveCmd.Flags().BoolVar(&csrfEnabled, "csrf", true, "require a CSRF token on unsafe requests")
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := pkgdb.Open(openCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer closeDB(db)

	r := &repo.GormRepo{DB: db}
	if autoMigrate {
		if err := r.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	disk, err := storage.New(ctx, cfg)
	if err != nil {
		return err
	}

	var sidebarCache cache.Cache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer rdb.Close()
		sidebarCache = rdb
	} else {
		logger.Info("redis disabled, sidebar is not cached")
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		prod, err := events.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		publisher = prod
	} else {
		logger.Info("kafka disabled, domain events are dropped")
	}
	defer publisher.Close()

	var indexer search.Indexer = search.Nop{}
	if cfg.ESURL != "" {
		es, err := search.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			return err
		}
		indexer = search.NewElastic(es, search.DefaultIndex)
	} else {
		logger.Info("elasticsearch disabled, search returns no results")
	}

	var auth *authclient.Client
	if cfg.AuthURL != "" {
		auth = authclient.NewClient(cfg.AuthURL)
	}

	catalog := service.NewCatalogService(service.CatalogService{
		Repo:       r,
		Storage:    disk,
		Cache:      sidebarCache,
		Events:     publisher,
		Search:     indexer,
		SidebarTTL: cfg.SidebarTTL,
	})
	carts := service.NewCartService(service.CartService{Repo: r, Registry: catalog.Registry, Events: publisher})
	customers := &service.CustomerService{Repo: r}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORS())
	if csrfEnabled {
		e.Use(csrf.Middleware(csrf.Config{
			Secure: true,
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Path(), "/health/") || c.Path() == "/metrics"
			},
		}))
	}

	if cfg.StorageDriver == "local" {
		e.Static(cfg.StorageURL, cfg.StorageLocalRoot)
	}

	httpserver.Register(e, &httpserver.Deps{
		CatalogHandler:  &httpserver.CatalogHTTP{Svc: catalog},
		CartHandler:     &httpserver.CartHTTP{Svc: carts, Customers: customers, ImageURL: catalog.ImageURL},
		CustomerHandler: &httpserver.CustomerHTTP{Svc: customers},
		JWTSecret:       cfg.JWTSecret,
		AuthClient:      auth,
		Ready:           r.Ping,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-stopCtx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_error", "error", err)
	}
	logger.Info("stopped")
	return nil
}

