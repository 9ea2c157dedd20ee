package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"gorm.io/gorm"

	"github.com/totegamma/starnet/internal/config"
	"github.com/totegamma/starnet/internal/infra/database"
	"github.com/totegamma/starnet/internal/infra/gateway"
	"github.com/totegamma/starnet/internal/infra/repository"
	"github.com/totegamma/starnet/internal/present/rest"
	restmw "github.com/totegamma/starnet/internal/present/rest/middleware"
	"github.com/totegamma/starnet/internal/service"
	"github.com/totegamma/starnet/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

type stores struct {
	repo   usecase.HolonRepository
	gormDB *gorm.DB
	pebble *pebble.DB
}

func openStore(cfg config.Config, migrate bool) (stores, error) {
	switch cfg.Server.StoreDriver {
	case "postgres":
		db, err := database.NewPostgres(cfg.Server.PostgresDsn)
		if err != nil {
			return stores{}, fmt.Errorf("connecting postgres: %w", err)
		}
		if migrate {
			if err := database.MigratePostgres(db); err != nil {
				return stores{}, fmt.Errorf("migrating postgres: %w", err)
			}
		}
		return stores{repo: repository.NewHolonRepository(db), gormDB: db}, nil
	case "pebble":
		db, err := database.NewPebble(cfg.Server.PebblePath)
		if err != nil {
			return stores{}, fmt.Errorf("opening pebble: %w", err)
		}
		return stores{repo: repository.NewPebbleHolonRepository(db), pebble: db}, nil
	default:
		return stores{}, fmt.Errorf("unknown storeDriver %q", cfg.Server.StoreDriver)
	}
}

func (s stores) Close() {
	if s.pebble != nil {
		s.pebble.Close()
	}
	if s.gormDB != nil {
		if sqlDB, err := s.gormDB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

func (s stores) ping(ctx context.Context) error {
	if s.gormDB == nil {
		return nil
	}
	sqlDB, err := s.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func newSigner(privateKey string) (*service.ManifestSigner, error) {
	if privateKey == "" {
		slog.Warn("nodeInfo.privatekey is not set, signing manifests with an ephemeral key", slog.String("module", "main"))
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		privateKey = hex.EncodeToString(crypto.FromECDSA(key))
	}
	return service.NewManifestSigner(privateKey)
}

func serve(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Server.EnableTrace {
		cleanup, err := setupTraceProvider(ctx, cfg.Server.TraceEndpoint, "starnet", version)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer cleanup()
	}

	st, err := openStore(cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()

	repo := st.repo
	if cfg.Server.MemcachedAddr != "" {
		repo = repository.NewCachedHolonRepository(repo, database.NewMemcached(cfg.Server.MemcachedAddr))
	}

	signer, err := newSigner(cfg.NodeInfo.PrivateKey)
	if err != nil {
		return fmt.Errorf("loading node key: %w", err)
	}

	domainConfig := cfg.Domain()
	content := gateway.NewFileContentStore()

	hooks := []service.Hook{
		{Name: "store", Ignite: st.ping},
		{Name: "content", Ignite: func(ctx context.Context) error {
			for _, dir := range []string{domainConfig.PublishRoot, domainConfig.InstallRoot} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			return nil
		}},
	}

	deps := usecase.HolonUsecaseDeps{
		Repo:    repo,
		Content: content,
		Builder: gateway.NewTarballBuilder(),
		Signer:  signer,
		Clock:   usecase.RealClock{},
		IDs:     usecase.UUIDGenerator{},
	}

	var events rest.EventStream
	var rdb *redis.Client
	if cfg.Server.RedisAddr != "" {
		rdb = database.NewRedis(cfg.Server.RedisAddr, cfg.Server.RedisPassword, cfg.Server.RedisDB)
		defer rdb.Close()
		signalService := service.NewSignalService(rdb)
		deps.Network = gateway.NewRedisNetworkRegistry(rdb)
		deps.Events = signalService
		events = signalService
		hooks = append(hooks, service.Hook{Name: "redis", Ignite: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		network, err := gateway.NewMemoryNetworkRegistry()
		if err != nil {
			return err
		}
		localSignal := service.NewLocalSignal()
		deps.Network = network
		deps.Events = localSignal
		events = localSignal
	}

	if cfg.Cloud.Bucket != "" {
		uploader, err := gateway.NewS3Uploader(ctx, gateway.S3Options{
			Bucket:    cfg.Cloud.Bucket,
			Prefix:    cfg.Cloud.Prefix,
			Region:    cfg.Cloud.Region,
			Endpoint:  cfg.Cloud.Endpoint,
			AccessKey: cfg.Cloud.AccessKey,
			SecretKey: cfg.Cloud.SecretKey,
		})
		if err != nil {
			return err
		}
		deps.Uploader = uploader
	}

	runtime := service.NewRuntime(hooks...)
	holonUsecase := usecase.NewHolonUsecase(deps, domainConfig)
	handler := rest.NewHandler(domainConfig, signer.Address(), holonUsecase, runtime, events)
	identity := restmw.NewIdentityMiddleware(service.NewIdentityService())

	e := echo.New()
	e.HideBanner = true
	if cfg.Server.EnableTrace {
		e.Use(otelecho.Middleware("starnet"))
	}
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(identity.IdentifyAvatar)

	handler.RegisterRoutes(e)

	go func() {
		slog.Info("starting STARNET node", slog.String("listen", cfg.Server.Listen), slog.String("address", signer.Address()), slog.String("module", "main"))
		if err := e.Start(cfg.Server.Listen); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", slog.String("error", err.Error()), slog.String("module", "main"))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down", slog.String("module", "main"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()), slog.String("module", "main"))
	}
	return runtime.Extinguish(shutdownCtx)
}
