package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Harshcreator/live-attendance-system/internal/api"
	"github.com/Harshcreator/live-attendance-system/internal/auth"
	"github.com/Harshcreator/live-attendance-system/internal/config"
	"github.com/Harshcreator/live-attendance-system/internal/coordinator"
	"github.com/Harshcreator/live-attendance-system/internal/session"
	"github.com/Harshcreator/live-attendance-system/internal/store"
	"github.com/Harshcreator/live-attendance-system/internal/ws"
)

// Application wires all components in dependency order: store, then
// session state and registry, then the coordinator and handlers on top.
type Application struct {
	config      *config.Config
	store       *store.Store
	state       *session.State
	registry    *ws.Registry
	coordinator *coordinator.Coordinator
	httpServer  *http.Server
}

// NewApplication creates the application with all components
// initialized but not yet serving.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	storeConfig := store.DefaultConfig()
	storeConfig.Path = cfg.Database.Path
	attendanceStore, err := store.NewStore(storeConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	state := session.NewState()
	registry := ws.NewRegistry()
	coord := coordinator.New(state, attendanceStore, registry)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)
	wsHandler := ws.NewHandler(registry, verifier, coord)
	apiServer := api.NewServer(attendanceStore, registry)

	mux := http.NewServeMux()
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:      cfg,
		store:       attendanceStore,
		state:       state,
		registry:    registry,
		coordinator: coord,
		httpServer:  httpServer,
	}, nil
}

// Start begins serving. It returns once the HTTP listener is up or
// has failed to start.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting attendance server on %s", app.httpServer.Addr)
	if app.config.Auth.JWTSecret == "" {
		log.Printf("WARNING: no JWT secret configured; all connection attempts will be rejected")
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("Attendance server started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP first, store last.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down attendance server")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := app.store.Close(); err != nil {
		log.Printf("Store shutdown error: %v", err)
	}

	log.Printf("Attendance server shutdown complete")
	return nil
}

// Addr returns the server address for external connections.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
