package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xelth-com/sealflow/internal/accounts"
	"github.com/xelth-com/sealflow/internal/audit"
	"github.com/xelth-com/sealflow/internal/buildinfo"
	"github.com/xelth-com/sealflow/internal/cache"
	"github.com/xelth-com/sealflow/internal/config"
	"github.com/xelth-com/sealflow/internal/database"
	"github.com/xelth-com/sealflow/internal/handlers"
	"github.com/xelth-com/sealflow/internal/identity"
	"github.com/xelth-com/sealflow/internal/logger"
	"github.com/xelth-com/sealflow/internal/middleware"
	"github.com/xelth-com/sealflow/internal/review"
	"github.com/xelth-com/sealflow/internal/sealing"
	"github.com/xelth-com/sealflow/internal/storage"
	"github.com/xelth-com/sealflow/internal/store"
	"github.com/xelth-com/sealflow/internal/store/dynamo"
	"github.com/xelth-com/sealflow/internal/store/memory"
	"github.com/xelth-com/sealflow/internal/store/postgres"
)

// stores bundles the persistence backends selected by configuration
type stores struct {
	apps     store.ApplicationStore
	activity store.ActivityStore
	users    store.UserStore
	db       *database.DB
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.NodeEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	// 2. Persistence
	st, err := openStores(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to open stores", zap.Error(err))
	}

	// 3. Object storage
	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		zlog.Fatal("Failed to open object storage", zap.Error(err))
	}

	// 4. Role cache (falls back to no caching without Redis)
	roles, closeCache := cache.Open(ctx, cfg.Cache.RedisURL, cfg.Cache.RoleTTL, zlog)

	// 5. Services
	auditLog := audit.New(st.activity, zlog)
	resolver := identity.NewResolver(st.users, roles)
	sealer := sealing.NewService(blobs, cfg.Sealing.CodePrefix, cfg.Sealing.VerifyBaseURL)
	apps := review.NewService(st.apps, blobs, sealer, auditLog, zlog, review.Options{
		PresignTTL:        cfg.Storage.PresignTTL,
		AllowResubmission: cfg.Workflow.AllowResubmission,
	})

	router := handlers.NewRouter(cfg, handlers.Deps{
		Applications: apps,
		Accounts:     accounts.NewService(st.users, resolver, auditLog, zlog),
		Audit:        auditLog,
		Auth:         middleware.NewAuth(cfg.JWTSecret, resolver, zlog),
		Log:          zlog,
	})

	// 6. Start server with graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		zlog.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.String("prefix", cfg.PathPrefix),
			zap.String("store", cfg.Store.Backend),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("version", buildinfo.Current(time.Now()).Version))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	sig := <-shutdown
	zlog.Info("Received signal, shutting down gracefully", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("HTTP server shutdown error", zap.Error(err))
	}
	if err := closeCache(); err != nil {
		zlog.Warn("Cache close error", zap.Error(err))
	}
	if st.db != nil {
		// Closing also stops embedded PostgreSQL
		if err := st.db.Close(); err != nil {
			zlog.Warn("Database close error", zap.Error(err))
		}
	}

	zlog.Info("Shutdown complete")
}

// openStores wires the application, activity and user stores. Users stay
// in PostgreSQL unless everything runs in memory.
func openStores(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (*stores, error) {
	if cfg.Store.Backend == "memory" {
		zlog.Warn("Using in-memory stores, data is lost on restart")
		m := memory.New()
		return &stores{apps: m, activity: m, users: m}, nil
	}

	db, err := database.Connect(cfg.Database, zlog)
	if err != nil {
		return nil, err
	}

	zlog.Info("Synchronizing database schema")
	if err := db.AutoMigrate(postgres.Models()...); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	pg := postgres.New(db.DB)
	st := &stores{apps: pg, activity: pg, users: pg, db: db}

	if cfg.Store.Backend == "dynamodb" {
		client, err := dynamo.NewClient(ctx, cfg.Store.AWSRegion, cfg.Store.DynamoEndpoint)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("dynamodb client: %w", err)
		}
		d := dynamo.New(client, cfg.Store.ApplicationsTable, cfg.Store.LogsTable)
		st.apps, st.activity = d, d
		zlog.Info("Applications and activity logs in DynamoDB",
			zap.String("applications", cfg.Store.ApplicationsTable), zap.String("logs", cfg.Store.LogsTable))
	}
	return st, nil
}

func openBlobs(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return storage.NewS3(ctx, cfg.Store.AWSRegion, cfg.Storage.Bucket, cfg.Storage.Endpoint)
	case "memory":
		return storage.NewMemory(), nil
	default:
		return storage.NewLocal(cfg.Storage.LocalDir)
	}
}
