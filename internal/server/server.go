package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/leadscope/leadscope/internal/utils"
	"github.com/leadscope/leadscope/pkg/conversation"
	"github.com/leadscope/leadscope/pkg/dispatch"
	"github.com/leadscope/leadscope/pkg/manager"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	Manager    *manager.Manager
	Dispatcher *dispatch.Dispatcher
	Username   string
	Password   string

	// Persist, when set, runs after every successful mutation.
	Persist func(ctx context.Context) error

	// chatMu serializes chat turns on the shared session.
	chatMu  sync.Mutex
	session *conversation.Session
}

func New(m *manager.Manager, d *dispatch.Dispatcher, user, pass string) *Server {
	return &Server{
		Manager:    m,
		Dispatcher: d,
		Username:   user,
		Password:   pass,
		session:    conversation.NewSession(),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))
	mux.HandleFunc("GET /api/leads", s.basicAuth(s.handleListLeads))
	mux.HandleFunc("GET /api/leads/{id}", s.basicAuth(s.handleGetLead))
	mux.HandleFunc("POST /api/leads", s.basicAuth(s.handleAddLead))
	mux.HandleFunc("POST /api/leads/import", s.basicAuth(s.handleImport))
	mux.HandleFunc("PATCH /api/leads/{id}", s.basicAuth(s.handleUpdateLead))
	mux.HandleFunc("DELETE /api/leads/{id}", s.basicAuth(s.handleDeleteLead))
	mux.HandleFunc("POST /api/leads/{id}/rescore", s.basicAuth(s.handleRescoreLead))
	mux.HandleFunc("GET /api/leads/{id}/interactions", s.basicAuth(s.handleListInteractions))
	mux.HandleFunc("POST /api/leads/{id}/interactions", s.basicAuth(s.handleLogInteraction))
	mux.HandleFunc("GET /api/scoring", s.basicAuth(s.handleGetCriteria))
	mux.HandleFunc("PUT /api/scoring", s.basicAuth(s.handleSetCriteria))
	mux.HandleFunc("POST /api/chat", s.basicAuth(s.handleChat))
	mux.HandleFunc("GET /api/chat/history", s.basicAuth(s.handleChatHistory))

	return mux
}

// Run serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		utils.Log.Infof("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		utils.Log.Infof("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) persist(ctx context.Context) {
	if s.Persist == nil {
		return
	}
	if err := s.Persist(ctx); err != nil {
		utils.Log.Errorf("Could not persist leads: %v", err)
	}
}
