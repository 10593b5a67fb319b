// Package admin serves a small diagnostics surface for a running
// crawler: health, the latest snapshot artifact, and a JSON view of
// the conversation. Optional; the loop never depends on it.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/webgaze/transcript"
)

// Config configures the admin server.
type Config struct {
	// Addr to listen on, e.g. "127.0.0.1:8086".
	Addr string

	// PasswordHash is a bcrypt hash; when non-nil every endpoint
	// requires HTTP Basic Auth (any username) against it.
	PasswordHash []byte

	// SnapshotPath is the renderer's artifact path, served at /snapshot.
	SnapshotPath string

	// Turns supplies the conversation for /transcript.
	Turns func() []transcript.Turn

	// State supplies the loop state for /healthz.
	State func() string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server is the diagnostics HTTP server.
type Server struct {
	cfg Config
	srv *http.Server
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	cfg.defaults()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if cfg.PasswordHash != nil {
		r.Use(basicAuth(cfg.PasswordHash))
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		state := ""
		if cfg.State != nil {
			state = cfg.State()
		}
		writeJSON(w, map[string]string{"status": "ok", "state": state})
	})

	r.Get("/snapshot", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, req, cfg.SnapshotPath)
	})

	r.Get("/transcript", func(w http.ResponseWriter, req *http.Request) {
		type turnView struct {
			Role     string `json:"role"`
			Text     string `json:"text"`
			HasImage bool   `json:"has_image"`
		}
		var turns []transcript.Turn
		if cfg.Turns != nil {
			turns = cfg.Turns()
		}
		out := make([]turnView, 0, len(turns))
		for _, t := range turns {
			out = append(out, turnView{
				Role:     string(t.Role),
				Text:     t.Text,
				HasImage: t.ImageB64 != "",
			})
		}
		writeJSON(w, out)
	})

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start listens in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.cfg.Logger.Info("admin: listening", "addr", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.cfg.Logger.Error("admin: server failed", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func basicAuth(hash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			_, password, ok := req.BasicAuth()
			if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="webgaze"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
