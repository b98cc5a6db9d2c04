package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"campus/portal/internal/api"
	"campus/portal/internal/config"
	"campus/portal/internal/dashboard"
	"campus/portal/internal/fakeapi"
	"campus/portal/internal/logger"
	"campus/portal/internal/model"
	"campus/portal/internal/notices"
	"campus/portal/internal/session"
	"campus/portal/internal/storage"
)

type portal struct {
	*httptest.Server
	server   *Server
	sessions *session.Store
}

func newPortal(t *testing.T) *portal {
	t.Helper()
	store := fakeapi.NewStore()
	if _, err := fakeapi.Seed(store); err != nil {
		t.Fatalf("seed error: %v", err)
	}
	backend := httptest.NewServer(fakeapi.NewServer(config.Config{}, store, logger.Nop(), nil).Router())
	t.Cleanup(backend.Close)

	mem := storage.NewMemoryStore()
	sessions := session.New(mem, logger.Nop())
	client := api.New(backend.URL+"/api", sessions, 0)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	server := NewServer(ctx, client, sessions, dashboard.Deps{API: client, Storage: mem, Log: logger.Nop(), Interval: -1}, logger.Nop())
	t.Cleanup(server.Close)
	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)
	return &portal{Server: app, server: server, sessions: sessions}
}

var noFollow = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
}

func doReq(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := noFollow.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func expectRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("expected redirect to %s, got %s", location, got)
	}
}

func TestGuardWithoutSession(t *testing.T) {
	app := newPortal(t)

	for _, route := range []string{"/student/dashboard", "/faculty/dashboard", "/admin/dashboard"} {
		expectRedirect(t, doReq(t, http.MethodGet, app.URL+route, nil), "/")
	}
	if app.server.Mounted() != nil {
		t.Fatalf("expected no dashboard mounted without a session")
	}

	resp := doReq(t, http.MethodGet, app.URL+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodGet, app.URL+"/janitor/dashboard", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestLoginRejected(t *testing.T) {
	app := newPortal(t)
	resp := doReq(t, http.MethodPost, app.URL+"/login", map[string]string{"email": "student@campus.local", "password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body["detail"] != "Invalid credentials" {
		t.Fatalf("unexpected detail %q", body["detail"])
	}
	if _, active := app.sessions.Current(); active {
		t.Fatalf("expected no session after a rejected login")
	}

	resp = doReq(t, http.MethodPost, app.URL+"/login", map[string]string{"email": " ", "password": "x"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestStudentFlow(t *testing.T) {
	app := newPortal(t)

	resp := doReq(t, http.MethodPost, app.URL+"/login", map[string]string{"email": "24AK1A3001", "password": fakeapi.DevPassword})
	expectRedirect(t, resp, "/student/dashboard")

	expectRedirect(t, doReq(t, http.MethodGet, app.URL+"/", nil), "/student/dashboard")
	expectRedirect(t, doReq(t, http.MethodGet, app.URL+"/faculty/dashboard", nil), "/student/dashboard")
	expectRedirect(t, doReq(t, http.MethodGet, app.URL+"/admin/dashboard", nil), "/student/dashboard")

	resp = doReq(t, http.MethodGet, app.URL+"/student/dashboard", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Route     string                    `json:"route"`
		Dashboard dashboard.StudentSnapshot `json:"dashboard"`
		Messages  []dashboard.Message       `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Dashboard.User.RollNumber != "24AK1A3001" || len(body.Dashboard.Notices) != 1 {
		t.Fatalf("unexpected snapshot %+v", body.Dashboard)
	}
	if !body.Dashboard.NoticesOpen || len(body.Messages) != 1 || body.Messages[0].Text != notices.InAppMessage {
		t.Fatalf("expected one new notice alert, got %+v", body.Messages)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/student/notices/close", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	mounted := app.server.Mounted()
	if mounted == nil {
		t.Fatalf("expected a mounted dashboard")
	}
	doReq(t, http.MethodGet, app.URL+"/student/dashboard", nil)
	if app.server.Mounted() != mounted {
		t.Fatalf("expected the dashboard to stay mounted across visits")
	}

	expectRedirect(t, doReq(t, http.MethodPost, app.URL+"/logout", nil), "/")
	if app.server.Mounted() != nil {
		t.Fatalf("expected logout to unmount the dashboard")
	}
	expectRedirect(t, doReq(t, http.MethodGet, app.URL+"/student/dashboard", nil), "/")
}

func TestSwitchingUsersRemounts(t *testing.T) {
	app := newPortal(t)

	expectRedirect(t, doReq(t, http.MethodPost, app.URL+"/login", map[string]string{"email": "faculty@campus.local", "password": fakeapi.DevPassword}), "/faculty/dashboard")
	if resp := doReq(t, http.MethodGet, app.URL+"/faculty/dashboard", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	expectRedirect(t, doReq(t, http.MethodPost, app.URL+"/login", map[string]string{"email": "admin@campus.local", "password": fakeapi.DevPassword}), "/admin/dashboard")
	if app.server.Mounted() != nil {
		t.Fatalf("expected the faculty dashboard to be unmounted")
	}
	if resp := doReq(t, http.MethodGet, app.URL+"/admin/dashboard", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if d := app.server.Mounted(); d == nil || d.Role() != "admin" {
		t.Fatalf("expected the admin dashboard mounted")
	}
}

func TestEntryReportsSession(t *testing.T) {
	p := newPortal(t)

	var got entryResponse
	resp := doReq(t, http.MethodGet, p.URL+"/", nil)
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got.Authenticated || got.Route != "/" {
		t.Fatalf("expected unauthenticated entry, got %+v", got)
	}

	if err := p.sessions.Login(context.Background(), "tok", model.Identity{ID: "u9", Role: "registrar"}); err != nil {
		t.Fatalf("login error: %v", err)
	}
	resp = doReq(t, http.MethodGet, p.URL+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for a role without a dashboard, got %d", resp.StatusCode)
	}
	got = entryResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !got.Authenticated {
		t.Fatalf("expected authenticated entry, got %+v", got)
	}
}
