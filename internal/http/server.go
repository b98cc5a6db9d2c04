// Package http is the local portal: the entry page, login and logout, and
// one guarded dashboard route per role.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campus/portal/internal/api"
	"campus/portal/internal/dashboard"
	"campus/portal/internal/logger"
	"campus/portal/internal/model"
	"campus/portal/internal/router"
	"campus/portal/internal/session"
	"campus/portal/internal/validate"
)

// Authenticator exchanges credentials for a token and identity.
type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) (model.LoginResponse, error)
}

type Server struct {
	ctx      context.Context
	auth     Authenticator
	sessions *session.Store
	deps     dashboard.Deps
	feed     *dashboard.Feed
	log      logger.Logger
	forms    *validate.Validator

	mu      sync.Mutex
	mounted dashboard.Dashboard
	owner   string
}

// NewServer returns the portal over sessions. ctx bounds the refresh loops
// of mounted dashboards; deps.UI is replaced by the server's message feed.
func NewServer(ctx context.Context, auth Authenticator, sessions *session.Store, deps dashboard.Deps, log logger.Logger) *Server {
	feed := dashboard.NewFeed(nil, 0)
	deps.UI = feed
	deps.Sessions = sessions
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		ctx:      ctx,
		auth:     auth,
		sessions: sessions,
		deps:     deps,
		feed:     feed,
		log:      log,
		forms:    validate.New(),
	}
	sessions.Subscribe(s.sessionChanged)
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", s.handleEntry)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.With(s.guard).Get("/{role}/dashboard", s.handleDashboard)
	r.With(s.guard).Post("/{role}/notices/close", s.handleCloseNotices)

	return r
}

// Mounted is the dashboard currently mounted, nil when none.
func (s *Server) Mounted() dashboard.Dashboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Close unmounts the current dashboard.
func (s *Server) Close() {
	s.unmount()
}

type entryResponse struct {
	Route         string `json:"route"`
	Authenticated bool   `json:"authenticated"`
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	sess, active := s.sessions.Current()
	if active {
		if landing := router.LandingRoute(sess.Identity.Role); landing != router.EntryRoute {
			http.Redirect(w, r, landing, http.StatusSeeOther)
			return
		}
	}
	writeJSON(w, http.StatusOK, entryResponse{Route: router.EntryRoute, Authenticated: active})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.Credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.EmailOrRoll = strings.TrimSpace(req.EmailOrRoll)
	if err := s.forms.Struct(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid_form", "detail": err.Error()})
		return
	}

	resp, err := s.auth.Login(r.Context(), req)
	if err != nil {
		if api.IsAuth(err) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "login_failed", "detail": api.Detail(err, "Login failed")})
			return
		}
		s.log.Error("login failed", err)
		writeError(w, http.StatusBadGateway, "backend_unavailable")
		return
	}
	if err := s.sessions.Login(r.Context(), resp.Token, resp.User); err != nil {
		writeError(w, http.StatusBadGateway, "empty_token")
		return
	}
	http.Redirect(w, r, router.LandingRoute(resp.User.Role), http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(r.Context())
	http.Redirect(w, r, router.EntryRoute, http.StatusSeeOther)
}

type dashboardResponse struct {
	Route     string              `json:"route"`
	Dashboard interface{}         `json:"dashboard"`
	Messages  []dashboard.Message `json:"messages"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.sessions.Current()
	d, err := s.mount(sess.Identity)
	if err != nil {
		s.log.Warn("dashboard mount failed", err)
		http.Redirect(w, r, router.EntryRoute, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		Route:     r.URL.Path,
		Dashboard: d.Snapshot(),
		Messages:  s.feed.Messages(),
	})
}

type noticeCloser interface {
	CloseNotices()
}

func (s *Server) handleCloseNotices(w http.ResponseWriter, r *http.Request) {
	if d, ok := s.Mounted().(noticeCloser); ok {
		d.CloseNotices()
	}
	w.WriteHeader(http.StatusNoContent)
}

// guard lets a request through only when the session owns the route;
// otherwise it answers 303 to where the session belongs.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, active := s.sessions.Current()
		route := "/" + chi.URLParam(r, "role") + "/"
		if target, ok := router.Decide(sess, active, route); !ok {
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		if _, known := router.RouteRole(route); !known {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// mount returns the dashboard of user, replacing one mounted for someone
// else. A fresh mount waits for its first load.
func (s *Server) mount(user model.Identity) (dashboard.Dashboard, error) {
	role := user.Role
	s.mu.Lock()
	current := s.mounted
	if current != nil && s.owner == user.ID {
		s.mu.Unlock()
		return current, nil
	}
	s.mounted = nil
	s.owner = ""
	s.mu.Unlock()
	if current != nil {
		current.Unmount()
	}

	d, err := dashboard.New(role, s.deps)
	if err != nil {
		return nil, err
	}
	if err := d.Mount(s.ctx); err != nil {
		return nil, errors.Wrapf(err, "mounting %s dashboard", role)
	}
	d.Wait()

	s.mu.Lock()
	if s.mounted != nil {
		// Another request mounted first.
		other := s.mounted
		s.mu.Unlock()
		d.Unmount()
		return other, nil
	}
	s.mounted = d
	s.owner = user.ID
	s.mu.Unlock()
	return d, nil
}

func (s *Server) unmount() {
	s.mu.Lock()
	current := s.mounted
	s.mounted = nil
	s.owner = ""
	s.mu.Unlock()
	if current != nil {
		current.Unmount()
	}
}

// sessionChanged drops the dashboard on logout or when someone else signs in.
func (s *Server) sessionChanged(sess model.Session, active bool) {
	s.mu.Lock()
	stale := s.mounted != nil && (!active || sess.Identity.ID != s.owner)
	s.mu.Unlock()
	if stale {
		s.unmount()
	}
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
