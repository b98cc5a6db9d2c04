// Package router maps a session to the one area of the portal it may see.
package router

import (
	"strings"
	"sync"

	"campus/portal/internal/model"
)

const EntryRoute = "/"

// LandingRoute is the dashboard a role lands on; unknown roles go to the entry.
func LandingRoute(role model.Role) string {
	switch role {
	case model.RoleStudent:
		return "/student/dashboard"
	case model.RoleFaculty:
		return "/faculty/dashboard"
	case model.RoleAdmin:
		return "/admin/dashboard"
	default:
		return EntryRoute
	}
}

// RouteRole reports which role owns a route. Routes outside the role areas
// are public.
func RouteRole(route string) (model.Role, bool) {
	trimmed := strings.TrimPrefix(route, "/")
	first := strings.SplitN(trimmed, "/", 2)[0]
	return model.ParseRole(first)
}

type Navigator interface {
	Push(route string)
	Replace(route string)
	Back() string
	Current() string
}

// History is an in-process navigator stack.
type History struct {
	mu      sync.Mutex
	entries []string
}

var _ Navigator = (*History)(nil)

func NewHistory(start string) *History {
	if start == "" {
		start = EntryRoute
	}
	return &History{entries: []string{start}}
}

func (h *History) Push(route string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, route)
}

func (h *History) Replace(route string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[len(h.entries)-1] = route
}

// Back pops the current entry and returns the one below it. The first entry
// is never popped.
func (h *History) Back() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) > 1 {
		h.entries = h.entries[:len(h.entries)-1]
	}
	return h.entries[len(h.entries)-1]
}

func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[len(h.entries)-1]
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// SessionSource is the read side of the session store.
type SessionSource interface {
	Current() (model.Session, bool)
}

type Router struct {
	sessions SessionSource
	nav      Navigator
}

func New(sessions SessionSource, nav Navigator) *Router {
	return &Router{sessions: sessions, nav: nav}
}

// Decide returns where a session belongs when it asks for route, and whether
// route may be mounted as is.
func Decide(sess model.Session, active bool, route string) (string, bool) {
	owner, restricted := RouteRole(route)
	if !restricted {
		return route, true
	}
	if !active || !sess.Identity.Role.Known() {
		return EntryRoute, false
	}
	if sess.Identity.Role != owner {
		return LandingRoute(sess.Identity.Role), false
	}
	return route, true
}

// Sync sends the navigator to the landing route of the current session, or
// to the entry when there is none. Run it on mount and on every session
// change.
func (r *Router) Sync() string {
	sess, active := r.sessions.Current()
	target := EntryRoute
	if active {
		target = LandingRoute(sess.Identity.Role)
	}
	if r.nav.Current() != target {
		r.nav.Replace(target)
	}
	return target
}

// Guard reports whether route may be mounted. When it may not, the
// navigator has already been replaced and the caller must not render or
// fetch anything for route.
func (r *Router) Guard(route string) bool {
	sess, active := r.sessions.Current()
	target, ok := Decide(sess, active, route)
	if !ok {
		r.nav.Replace(target)
	}
	return ok
}
