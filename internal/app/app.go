package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"ensemble/internal/api"
	"ensemble/internal/auth"
	"ensemble/internal/config"
	"ensemble/internal/director"
	"ensemble/internal/hub"
	"ensemble/internal/registry"
	"ensemble/internal/router"
	"ensemble/internal/store"
	"ensemble/internal/websocket"
	"ensemble/pkg/interfaces"
)

// Application wires every component in dependency order and owns the two
// HTTP listeners (websocket traffic and health).
type Application struct {
	config       *config.Config
	store        *store.SQLite
	rooms        *registry.Registry
	connections  *websocket.Registry
	hub          *hub.Hub
	httpServer   *http.Server
	healthServer *http.Server
}

// New builds the application. Order matters: store, then director, then the
// room registry that needs both, then the delivery path, then the listeners.
func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	var gen interfaces.Director
	if cfg.Director.APIKey != "" {
		client := director.NewClient(cfg.Director.BaseURL, cfg.Director.APIKey,
			cfg.Director.Model, cfg.Director.Timeout)
		gen = director.NewLLMDirector(client)
	} else {
		log.Printf("No director API key configured; using scripted content")
		gen = director.NewScripted()
	}

	var verifier interfaces.TokenVerifier
	if cfg.Auth.Secret != "" {
		verifier = auth.NewVerifier([]byte(cfg.Auth.Secret), cfg.Auth.Issuer)
	} else {
		log.Printf("No auth secret configured; protected actions are open")
	}

	rooms := registry.New(gen, db)
	connections := websocket.NewRegistry()
	messageRouter := router.NewRouter(connections)
	messageHub := hub.New(rooms, messageRouter, connections, gen, verifier)
	wsHandler := websocket.NewHandler(connections, messageHub)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	app := &Application{
		config:      cfg,
		store:       db,
		rooms:       rooms,
		connections: connections,
		hub:         messageHub,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
			Handler:      mux,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
		healthServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.HealthPort),
			Handler:      api.NewServer(rooms),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
	}
	return app, nil
}

// Start runs both listeners until the context is cancelled or one of them
// fails.
func (a *Application) Start(ctx context.Context) error {
	log.Printf("Starting ensemble server on %s (health on %s)",
		a.httpServer.Addr, a.healthServer.Addr)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.healthServer.Shutdown(shutdownCtx)
		_ = a.httpServer.Shutdown(shutdownCtx)
		return nil
	})

	return g.Wait()
}

// Stop releases resources held outside the listeners.
func (a *Application) Stop() {
	if err := a.store.Close(); err != nil {
		log.Printf("Store shutdown error: %v", err)
	}
	log.Printf("Ensemble server shutdown complete")
}
