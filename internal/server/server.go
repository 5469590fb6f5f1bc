// Package server exposes the application over HTTP: the OAuth redirect
// endpoints, the session state, and the category/expense JSON API. It is a
// thin presentation layer; all decisions live in the session holder and the
// domain stores.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/harperclay/expensify/internal/auth"
	"github.com/harperclay/expensify/internal/category"
	"github.com/harperclay/expensify/internal/common"
	"github.com/harperclay/expensify/internal/expense"
	"github.com/harperclay/expensify/internal/service"
	"github.com/harperclay/expensify/internal/session"
)

// SessionCookieName is the name of the browser session cookie.
const SessionCookieName = "expensify_session"

// SessionGateway is the per-browser-session identity gateway, including the
// OAuth callback completion the redirect flow needs.
type SessionGateway interface {
	service.IdentityGateway
	HandleCallback(ctx context.Context, state, code string) error
}

// GatewayFactory creates the identity gateway for a new browser session.
type GatewayFactory func() SessionGateway

// Config holds server settings.
type Config struct {
	// SecureCookie marks the session cookie Secure; enable whenever the
	// server is reached over HTTPS.
	SecureCookie bool
}

// Server routes HTTP requests to the session holders and domain stores.
// Each browser session owns one holder+gateway pair; the server only ever
// reads session state or requests mutations through the holder's actions.
type Server struct {
	cfg        Config
	storage    service.Storage
	newGateway GatewayFactory
	reconciler *auth.Reconciler
	categories *category.Store
	expenses   *expense.Store

	mu       sync.Mutex
	sessions map[string]*browserSession

	mux *http.ServeMux
}

// browserSession pairs one browser's gateway with its session state holder.
//
// TODO: evict idle sessions; they currently live for the process lifetime.
type browserSession struct {
	gateway SessionGateway
	holder  *session.Holder
}

// New creates a Server wired to the given storage and gateway factory.
func New(cfg Config, storage service.Storage, newGateway GatewayFactory) *Server {
	s := &Server{
		cfg:        cfg,
		storage:    storage,
		newGateway: newGateway,
		reconciler: auth.NewReconciler(storage),
		categories: category.NewStore(storage),
		expenses:   expense.NewStore(storage),
		sessions:   make(map[string]*browserSession),
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/session", s.handleSession)
	s.mux.HandleFunc("POST /api/signin", s.handleSignIn)
	s.mux.HandleFunc("GET /signin", s.handleSignInRedirect)
	s.mux.HandleFunc("GET /auth/callback", s.handleCallback)
	s.mux.HandleFunc("POST /api/signout", s.handleSignOut)

	s.mux.Handle("GET /api/categories", s.requireAuthorized(s.handleListCategories))
	s.mux.Handle("POST /api/categories", s.requireAuthorized(s.handleCreateCategory))
	s.mux.Handle("DELETE /api/categories/{id}", s.requireAuthorized(s.handleDeleteCategory))
	s.mux.Handle("GET /api/expenses", s.requireAuthorized(s.handleListExpenses))
	s.mux.Handle("POST /api/expenses", s.requireAuthorized(s.handleCreateExpense))
	s.mux.Handle("GET /api/vendors", s.requireAuthorized(s.handleListVendors))
	s.mux.Handle("POST /api/images", s.requireAuthorized(s.handleUploadImage))
}

// browserSessionFor returns the session for the request's cookie, creating
// a fresh signed-out session (and cookie) when none exists.
func (s *Server) browserSessionFor(w http.ResponseWriter, r *http.Request) *browserSession {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		s.mu.Lock()
		sess, ok := s.sessions[cookie.Value]
		s.mu.Unlock()
		if ok {
			return sess
		}
	}

	sid := uuid.NewString()
	gateway := s.newGateway()
	holder := session.NewHolder(gateway, s.reconciler)
	if err := holder.Start(r.Context()); err != nil {
		// Start only fails on double start; a fresh holder cannot hit it.
		slog.Error("failed to start session holder", "error", err)
	}

	sess := &browserSession{gateway: gateway, holder: holder}
	s.mu.Lock()
	s.sessions[sid] = sess
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

type contextKey string

const ownerContextKey contextKey = "owner"

// requireAuthorized gates the data endpoints: anonymous requests get 401,
// signed-in-but-denied ones get 403 naming the denied email, and authorized
// ones proceed with the owner id in the request context.
func (s *Server) requireAuthorized(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.browserSessionFor(w, r)
		snap := sess.holder.Snapshot()

		switch {
		case snap.Loading:
			writeError(w, http.StatusServiceUnavailable, "session is still resolving, retry shortly")
		case !snap.SignedIn():
			writeError(w, http.StatusUnauthorized, "sign in required")
		case !snap.Allowed:
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error": "access denied",
				"email": snap.Identity.Email,
			})
		default:
			ctx := context.WithValue(r.Context(), ownerContextKey, snap.Identity.ID)
			next(w, r.WithContext(ctx))
		}
	})
}

// ownerID returns the authorized user's id stored by requireAuthorized.
func ownerID(r *http.Request) string {
	id, _ := r.Context().Value(ownerContextKey).(string)
	return id
}

// decodeBody decodes a JSON request body into v, writing a 400 and
// returning false on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps domain failures to HTTP statuses: boundary faults are
// retryable 503s with state preserved, everything else is a 500.
func statusForError(err error) int {
	if common.IsBoundaryUnavailable(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
