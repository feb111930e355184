package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bugtrack/api/internal/app"
	"bugtrack/api/internal/config"
	"bugtrack/api/internal/search"
	"bugtrack/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	snapshots, err := openSnapshotStore(ctx, cfg)
	if err != nil {
		log.Fatalf("snapshot store (%s) failed: %v", cfg.StoreBackend, err)
	}
	defer snapshots.Close()

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewMemory())

	service := app.New(cfg, snapshots, searchService)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: snapshot load failed, starting fresh: %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Long-poll requests hold the response open for up to
		// MaxWaitSeconds; give writes headroom beyond that.
		WriteTimeout: time.Duration(cfg.MaxWaitSeconds+15) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Bugtrack API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func openSnapshotStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "file":
		return store.NewFileStore(cfg.DataFile), nil
	case "postgres":
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return pg, nil
	case "redis":
		return store.NewRedisStore(cfg.RedisURL)
	case "s3":
		return store.NewObjectStore(ctx, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
	case "git":
		return store.NewGitStore(cfg.GitDir)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
