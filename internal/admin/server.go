// Package admin serves the authenticated HTTP API that manages the
// operator settings: one-time setup, login/logout, and settings updates.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/joebot/greetbot/internal/auth"
	"github.com/joebot/greetbot/internal/settings"
)

const sessionCookie = "session"

// Server is the admin API server.
type Server struct {
	store  *settings.Store
	secret string
}

// NewServer creates an admin server over the given settings store. The
// secret signs session cookies.
func NewServer(store *settings.Store, secret string) *Server {
	return &Server{store: store, secret: secret}
}

// Router builds the chi router with all admin routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/api/setup", s.handleSetup)
	r.Post("/api/login", s.handleLogin)
	r.Post("/api/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/api/settings", s.handleGetSettings)
		r.Put("/api/settings", s.handleUpdateSettings)
		r.Post("/api/enabled", s.handleToggleEnabled)
		r.Post("/api/password", s.handleChangePassword)
	})

	return r
}

// ListenAndServe runs the admin server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("Admin server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// --- middleware ---

// requireSession gates the mutating endpoints. Before setup it points
// the caller at the setup flow; afterwards any invalid, expired, or
// missing session looks the same: unauthorized.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.store.Load(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "settings unavailable")
			return
		}
		if !cfg.SetupComplete {
			writeError(w, http.StatusForbidden, "setup required")
			return
		}

		cookie, err := r.Cookie(sessionCookie)
		if err != nil || !auth.VerifyToken(cookie.Value, s.secret) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- handlers ---

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password  string `json:"password"`
		ReplyText string `json:"replyText"`
	}
	if !decode(w, r, &req) {
		return
	}

	cfg, err := s.store.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	if cfg.SetupComplete {
		writeError(w, http.StatusConflict, "already configured")
		return
	}
	if len(req.Password) < settings.MinPasswordLen {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if req.ReplyText != "" {
		if err := settings.ValidateReplyText(req.ReplyText); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cfg.ReplyText = req.ReplyText
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash password")
		return
	}
	cfg.PasswordHash = hash
	cfg.SetupComplete = true

	if err := s.store.Save(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "save settings")
		return
	}

	s.setSessionCookie(w)
	slog.Info("Admin setup completed")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	cfg, err := s.store.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	if !cfg.SetupComplete {
		writeError(w, http.StatusForbidden, "setup required")
		return
	}
	if !auth.CheckPassword(cfg.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	s.setSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// settingsView is what GET /api/settings returns: everything except the
// password hash.
type settingsView struct {
	Enabled         bool   `json:"enabled"`
	ReplyText       string `json:"replyText"`
	DelaySeconds    int    `json:"delaySeconds"`
	PerCycleSendCap int    `json:"perCycleSendCap"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	writeJSON(w, http.StatusOK, settingsView{
		Enabled:         cfg.Enabled,
		ReplyText:       cfg.ReplyText,
		DelaySeconds:    cfg.DelaySeconds,
		PerCycleSendCap: cfg.PerCycleSendCap,
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReplyText       *string `json:"replyText"`
		DelaySeconds    *int    `json:"delaySeconds"`
		PerCycleSendCap *int    `json:"perCycleSendCap"`
		Enabled         *bool   `json:"enabled"`
	}
	if !decode(w, r, &req) {
		return
	}

	cfg, err := s.store.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}

	if req.ReplyText != nil {
		if err := settings.ValidateReplyText(*req.ReplyText); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cfg.ReplyText = *req.ReplyText
	}
	if req.DelaySeconds != nil {
		// The one documented silent clamp.
		cfg.DelaySeconds = settings.ClampDelay(*req.DelaySeconds)
	}
	if req.PerCycleSendCap != nil {
		if *req.PerCycleSendCap < 0 {
			writeError(w, http.StatusBadRequest, "perCycleSendCap must be non-negative")
			return
		}
		cfg.PerCycleSendCap = *req.PerCycleSendCap
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}

	if err := s.store.Save(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "save settings")
		return
	}
	s.handleGetSettings(w, r)
}

func (s *Server) handleToggleEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decode(w, r, &req) {
		return
	}

	cfg, err := s.store.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	cfg.Enabled = req.Enabled
	if err := s.store.Save(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "save settings")
		return
	}
	slog.Info("Dispatch toggled", "enabled", req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if !decode(w, r, &req) {
		return
	}
	if len(req.NewPassword) < settings.MinPasswordLen {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	cfg, err := s.store.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	if !auth.CheckPassword(cfg.PasswordHash, req.OldPassword) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash password")
		return
	}
	cfg.PasswordHash = hash
	if err := s.store.Save(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "save settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- helpers ---

func (s *Server) setSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    auth.IssueToken(s.secret),
		Path:     "/",
		MaxAge:   int(auth.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
