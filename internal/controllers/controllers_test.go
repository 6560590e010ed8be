package controllers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/wheelcast/backend/internal/database/models"
	"github.com/wheelcast/backend/internal/hub"
	"github.com/wheelcast/backend/internal/session"
	"github.com/wheelcast/backend/internal/store"
)

// recordingBroadcaster captures room events instead of fanning them out.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	OwnerID  string
	Envelope hub.Envelope
}

func (b *recordingBroadcaster) Broadcast(ownerID string, env hub.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{OwnerID: ownerID, Envelope: env})
}

func (b *recordingBroadcaster) recorded() []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedEvent(nil), b.events...)
}

type testEnv struct {
	router   *mux.Router
	owners   *store.OwnerStore
	items    *store.ItemStore
	sessions *session.Manager
	events   *recordingBroadcaster
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err := db.ResetModel(ctx, (*models.Owner)(nil), (*models.Item)(nil)); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	env := &testEnv{
		owners:   store.NewOwnerStore(db),
		items:    store.NewItemStore(db),
		sessions: session.NewManager(""),
		events:   new(recordingBroadcaster),
	}

	gateway := &Gateway{Sessions: env.sessions, Owners: env.owners}
	locks := store.NewOwnerLocks()

	env.router = mux.NewRouter()
	(&AuthController{Owners: env.owners, Sessions: env.sessions, Gateway: gateway}).Register(env.router)
	(&ItemsController{Items: env.items, Owners: env.owners, Rooms: env.events, Gateway: gateway, Locks: locks}).Register(env.router)
	(&OwnersController{Owners: env.owners, Gateway: gateway}).Register(env.router)

	return env
}

// createOwner provisions an account directly through the store.
func (e *testEnv) createOwner(t *testing.T, username, role string) models.Owner {
	t.Helper()

	owner, err := e.owners.Create(context.Background(), username, "hunter2", role)
	if err != nil {
		t.Fatalf("failed to create owner %q: %v", username, err)
	}
	return owner
}

// login performs a real login request and returns the session cookie.
func (e *testEnv) login(t *testing.T, username string) *http.Cookie {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/login", nil, map[string]string{
		"username": username,
		"password": "hunter2",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", rr.Code, rr.Body.String())
	}

	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == session.CookieName {
			return cookie
		}
	}

	t.Fatal("no session cookie in login response")
	return nil
}

func (e *testEnv) do(t *testing.T, method, path string, cookie *http.Cookie, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("undecodable response %q: %v", rr.Body.String(), err)
	}
}
