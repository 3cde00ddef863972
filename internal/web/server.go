// Package web exposes the pipeline over a small HTTP API. Everything here
// is plumbing: requests carry row sequences and a procedure, the core does
// the work, and the optional store keeps run summaries for review.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/schemalink/internal/config"
	"github.com/schemalink/internal/store"
)

// Config holds the server settings, read from the environment.
type Config struct {
	Host string
	Port int
	// StoreDriver selects run persistence ("sqlite", "postgres" or empty
	// for none); StoreDSN is the driver-specific path or DSN.
	StoreDriver string
	StoreDSN    string
}

// ConfigFromEnv builds the server config from SL_* variables.
func ConfigFromEnv() *Config {
	return &Config{
		Host:        config.GetEnv("SL_HOST", "127.0.0.1"),
		Port:        config.GetEnvInt("SL_PORT", 8080),
		StoreDriver: config.GetEnv("SL_STORE_DRIVER", ""),
		StoreDSN:    config.GetEnv("SL_STORE_DSN", ""),
	}
}

// Server is the HTTP front end.
type Server struct {
	config     *Config
	store      store.Store
	httpServer *http.Server
	router     *mux.Router
}

// NewServer wires routes and, when configured, the run store.
func NewServer(cfg *Config) (*Server, error) {
	s := &Server{config: cfg}

	if cfg.StoreDriver != "" {
		st, err := store.Open(cfg.StoreDriver, cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		if err := st.Init(context.Background()); err != nil {
			st.Close()
			return nil, fmt.Errorf("init store: %w", err)
		}
		s.store = st
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/runs", s.handleCreateRun).Methods("POST")

	// Persistence endpoints only exist when a store is configured.
	if s.store != nil {
		api.HandleFunc("/runs", s.handleListRuns).Methods("GET")
		api.HandleFunc("/runs/{id}", s.handleGetRun).Methods("GET")
		api.HandleFunc("/datasets", s.handleSaveDataset).Methods("POST")
		api.HandleFunc("/datasets/{id}", s.handleGetDataset).Methods("GET")
	}

	s.router.Use(corsMiddleware())
	s.router.Use(requestLogging())
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("listening on http://%s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("server error: %v", err)
		}
	}()

	<-stop
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}
	return nil
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
