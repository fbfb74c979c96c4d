package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contractops/api/internal/app"
	"contractops/api/internal/config"
	"contractops/api/internal/gitrepo"
	"contractops/api/internal/presence"
	"contractops/api/internal/realtime"
	"contractops/api/internal/search"
	"contractops/api/internal/session"
	"contractops/api/internal/store"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("create repos dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	gitService := gitrepo.New(cfg.ReposDir)

	var meiliClient *search.Meili
	if cfg.MeiliURL != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, dataStore)

	service := app.New(cfg, dataStore, gitService, searchService)

	var presenceMirror *presence.RedisStore
	if cfg.RedisURL != "" {
		sessions, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("connect redis sessions: %v", err)
		}
		defer sessions.Close()
		service = app.NewWithSessionStore(cfg, dataStore, sessions, gitService, searchService)

		presenceMirror, err = presence.NewRedisStore(cfg.RedisURL, cfg.PresenceTTL)
		if err != nil {
			log.Fatalf("connect redis presence: %v", err)
		}
		defer presenceMirror.Close()
		service.SetPresenceLister(presenceMirror)
	}

	registry := realtime.NewRegistry()
	presenceStore := realtime.NewPresenceStore()
	gateway := realtime.NewGateway(service)

	var router *realtime.Router
	if presenceMirror != nil {
		router = realtime.NewRouterWithMirror(registry, presenceStore, gateway, presenceMirror)
	} else {
		router = realtime.NewRouter(registry, presenceStore, gateway)
	}
	go gateway.Run(ctx)
	go router.Run(ctx)

	wsHandler := realtime.NewWSHandlerWithOptions(router, realtime.WSOptions{
		SendBuffer: cfg.SendBuffer,
		WriteWait:  cfg.WriteWait,
		PongWait:   cfg.PongWait,
	})
	httpServer := app.NewHTTPServer(service, wsHandler, cfg.CORSOrigin)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("contractops api listening on %s", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("listen: %v", err)
	}
}
