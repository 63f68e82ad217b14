// Package server is a reference implementation of the remote document store.
//
// It serves the four endpoints the sync client speaks (state-get,
// state-save, state-migrate, auth-verify) under both /api/ and
// /.netlify/functions/, authenticating every request with the shared secret
// carried in the x-magic-key header.
package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jos-todo/todosync/internal/model"
	"github.com/jos-todo/todosync/internal/remote"
)

// Prefixes under which the API is mounted.
var apiPrefixes = []string{"/api/", "/.netlify/functions/"}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 << 20

const invalidPayloadMessage = "Invalid payload: tasks and projects must both be arrays"

// Config holds server configuration.
type Config struct {
	// Addr to listen on (default: ":3000")
	Addr string

	// MagicKey is the plaintext shared secret.
	MagicKey string

	// MagicKeyHash is the lowercase hex SHA-256 of the shared secret.
	// When set it takes precedence over MagicKey.
	MagicKeyHash string

	// Logger for server activity (default: log.Default())
	Logger *log.Logger
}

// Server serves the remote document protocol.
type Server struct {
	cfg      Config
	state    *StateDB
	logger   *log.Logger
	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup
}

// New creates a server backed by the given state database.
func New(state *StateDB, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	cfg.MagicKey = strings.TrimSpace(cfg.MagicKey)
	cfg.MagicKeyHash = strings.ToLower(strings.TrimSpace(cfg.MagicKeyHash))

	return &Server{
		cfg:    cfg,
		state:  state,
		logger: cfg.Logger,
	}
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, prefix := range apiPrefixes {
		mux.HandleFunc(prefix+remote.PathFetch, s.withAuth(http.MethodGet, s.handleFetch))
		mux.HandleFunc(prefix+remote.PathSave, s.withAuth(http.MethodPost, s.handleSave))
		mux.HandleFunc(prefix+remote.PathMigrate, s.withAuth(http.MethodPost, s.handleMigrate))
		mux.HandleFunc(prefix+remote.PathVerify, s.withAuth(http.MethodGet, s.handleVerify))
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	return mux
}

// Start begins serving on the configured address.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Document server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.wg.Wait()
	return nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// authenticate checks the incoming key in constant time, against the stored
// hash if one is configured, otherwise against the stored plaintext.
func (s *Server) authenticate(r *http.Request) (bool, string) {
	incoming := strings.TrimSpace(r.Header.Get(remote.HeaderMagicKey))
	if incoming == "" {
		return false, "Missing magic key"
	}

	if s.cfg.MagicKeyHash != "" {
		sum := sha256.Sum256([]byte(incoming))
		if safeEqual(hex.EncodeToString(sum[:]), s.cfg.MagicKeyHash) {
			return true, ""
		}
		return false, "Invalid magic key"
	}

	if s.cfg.MagicKey != "" && safeEqual(incoming, s.cfg.MagicKey) {
		return true, ""
	}
	return false, "Invalid magic key"
}

func safeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) withAuth(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if ok, msg := s.authenticate(r); !ok {
			writeError(w, http.StatusUnauthorized, msg)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	state, err := s.state.Get(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) readPayload(w http.ResponseWriter, r *http.Request) (tasks, projects json.RawMessage, ok bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, invalidPayloadMessage)
		return nil, nil, false
	}
	tasks, projects, err = model.SplitPayload(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, invalidPayloadMessage)
		return nil, nil, false
	}
	return tasks, projects, true
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	tasks, projects, ok := s.readPayload(w, r)
	if !ok {
		return
	}
	if err := s.state.Upsert(r.Context(), tasks, projects); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	tasks, projects, ok := s.readPayload(w, r)
	if !ok {
		return
	}
	migrated, err := s.state.MigrateIfEmpty(r.Context(), tasks, projects)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !migrated {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":       true,
			"migrated": false,
			"reason":   remote.ReasonRemoteHasData,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "migrated": true})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Printf("Internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
