// Package server exposes the hragd HTTP API: conversational chat with
// streaming, knowledge management, the gardener review queue and
// operational endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hragd/hragd/internal/audit"
	"github.com/hragd/hragd/internal/config"
	"github.com/hragd/hragd/internal/conversation"
	"github.com/hragd/hragd/internal/db"
	"github.com/hragd/hragd/internal/gardener"
	"github.com/hragd/hragd/internal/graphstore"
	"github.com/hragd/hragd/internal/ingest"
	"github.com/hragd/hragd/internal/livedata"
	"github.com/hragd/hragd/internal/llm"
	"github.com/hragd/hragd/internal/vectordb"
)

// Server wires every backend into the HTTP API.
type Server struct {
	cfg        config.ServerConfig
	db         *db.DB
	engine     *conversation.Engine
	queue      *gardener.Queue
	graph      graphstore.Store
	vector     vectordb.VectorStore
	live       livedata.Store
	pipeline   *ingest.Pipeline
	audit      *audit.Store
	llm        llm.Provider
	domainName string
	router     chi.Router
	httpServer *http.Server
}

// Deps carries the backends the server serves. Nil fields disable the
// routes that need them.
type Deps struct {
	DB         *db.DB
	Engine     *conversation.Engine
	Queue      *gardener.Queue
	Graph      graphstore.Store
	Vector     vectordb.VectorStore
	Live       livedata.Store
	Pipeline   *ingest.Pipeline
	Audit      *audit.Store
	LLM        llm.Provider
	DomainName string
}

// New creates a server and builds its router.
func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		cfg:        cfg,
		db:         deps.DB,
		engine:     deps.Engine,
		queue:      deps.Queue,
		graph:      deps.Graph,
		vector:     deps.Vector,
		live:       deps.Live,
		pipeline:   deps.Pipeline,
		audit:      deps.Audit,
		llm:        deps.LLM,
		domainName: deps.DomainName,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Streaming routes manage their own deadlines; the blanket timeout
	// only covers the request/response endpoints.
	r.Use(middleware.Timeout(120 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if s.engine != nil {
			r.Post("/chat", s.handleChat)
			r.Post("/chat/stream", s.handleChatStream)
			r.Get("/chat/ws", s.handleChatWS)
		}
		if s.queue != nil {
			r.Get("/gardener/tasks", s.handleGardenerTasks)
			r.Post("/gardener/action", s.handleGardenerAction)
		}
		if s.vector != nil {
			r.Get("/documents", s.handleListDocuments)
			r.Get("/documents/search", s.handleSearchDocuments)
			r.Get("/documents/{id}", s.handleGetDocument)
			r.Put("/documents/{id}", s.handleUpdateDocument)
		}
		if s.graph != nil {
			r.Get("/nodes", s.handleListNodes)
			r.Get("/nodes/search", s.handleSearchNodes)
			r.Get("/nodes/{id}", s.handleGetNode)
			r.Put("/nodes/{id}", s.handleUpdateNode)
		}
		if s.pipeline != nil {
			r.Post("/ingest", s.handleIngest)
		}
		if s.audit != nil {
			r.Get("/audit", s.handleAuditLog)
		}
		r.Get("/stats", s.handleStats)
		r.Get("/health", s.handleHealth)
	})

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("hragd server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
