package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bureau/internal/intervals"
	"bureau/pkg/logger"
	"bureau/pkg/model"

	"golang.org/x/oauth2"
)

// ────────────────────────────────────────────────
// Test doubles
// ────────────────────────────────────────────────

type memCredentials struct {
	mu    sync.Mutex
	creds map[string]model.Credential
	saves int
}

func newMemCredentials() *memCredentials {
	return &memCredentials{creds: map[string]model.Credential{}}
}

func (m *memCredentials) Credential(_ context.Context, advisorID string) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[advisorID]
	if !ok {
		return nil, intervals.ErrNotFound
	}
	return &c, nil
}

func (m *memCredentials) SaveCredential(_ context.Context, advisorID string, c model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[advisorID] = c
	m.saves++
	return nil
}

func (m *memCredentials) set(advisorID, access, refresh string, expires time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[advisorID] = model.Credential{AccessToken: access, RefreshToken: refresh, ExpiresAt: expires}
}

func (m *memCredentials) get(advisorID string) model.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds[advisorID]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// tokenEndpoint hands out "fresh-N" access tokens and counts refreshes.
func tokenEndpoint(count *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := count.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "fresh-" + string(rune('0'+n)),
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "refresh-rotated",
		})
	}
}

func newTestGateway(t *testing.T, mux *http.ServeMux, creds *memCredentials, timeout time.Duration) *Gateway {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	oauthCfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			TokenURL:  server.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	log := logger.Discard()
	tokens := NewTokenManager(creds, oauthCfg, nil, log)
	return New(Options{
		BaseURL:     server.URL,
		CallTimeout: timeout,
		MaxParallel: 4,
	}, tokens, log)
}

var (
	slotStart = time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)
	slot      = model.TimeInterval{Start: slotStart, End: slotStart.Add(time.Hour)}
)

func graphItem(status string, start, end time.Time) map[string]any {
	return map[string]any{
		"status": status,
		"start":  map[string]string{"dateTime": start.Format(graphTimeFormat), "timeZone": "UTC"},
		"end":    map[string]string{"dateTime": end.Format(graphTimeFormat), "timeZone": "UTC"},
	}
}

func scheduleHandler(address string, items []map[string]any, schedErr map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := map[string]any{"scheduleId": address, "scheduleItems": items}
		if schedErr != nil {
			info["error"] = schedErr
		}
		writeJSON(w, http.StatusOK, map[string]any{"value": []any{info}})
	}
}

// ────────────────────────────────────────────────
// Room free/busy
// ────────────────────────────────────────────────

func TestIsResourceFree(t *testing.T) {
	const address = "room-a@example.com"

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantFree bool
		wantErr  bool
	}{
		{
			name:     "no items",
			handler:  scheduleHandler(address, nil, nil),
			wantFree: true,
		},
		{
			name:     "overlapping busy item",
			handler:  scheduleHandler(address, []map[string]any{graphItem("busy", slotStart.Add(30*time.Minute), slotStart.Add(90*time.Minute))}, nil),
			wantFree: false,
		},
		{
			name:     "touching busy item",
			handler:  scheduleHandler(address, []map[string]any{graphItem("busy", slotStart.Add(time.Hour), slotStart.Add(2*time.Hour))}, nil),
			wantFree: true,
		},
		{
			name:     "overlapping free item",
			handler:  scheduleHandler(address, []map[string]any{graphItem("free", slotStart, slotStart.Add(time.Hour))}, nil),
			wantFree: true,
		},
		{
			name:     "working elsewhere",
			handler:  scheduleHandler(address, []map[string]any{graphItem("workingElsewhere", slotStart, slotStart.Add(time.Hour))}, nil),
			wantFree: true,
		},
		{
			name:    "schedule error entry",
			handler: scheduleHandler(address, nil, map[string]string{"message": "mailbox not found", "responseCode": "ErrorMailboxNotFound"}),
			wantErr: true,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: true,
		},
		{
			name: "schedule missing",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"value": []any{}})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc(schedulePath, tt.handler)
			creds := newMemCredentials()
			creds.set("adv-1", "token", "refresh", time.Now().Add(time.Hour))
			g := newTestGateway(t, mux, creds, time.Second)

			free, err := g.IsResourceFree(context.Background(), "adv-1", address, slot)
			if tt.wantErr {
				if !errors.Is(err, ErrRemoteUnavailable) {
					t.Fatalf("err = %v, want ErrRemoteUnavailable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if free != tt.wantFree {
				t.Errorf("free = %v, want %v", free, tt.wantFree)
			}
		})
	}
}

func TestIsResourceFree_SendsBearerAndWindow(t *testing.T) {
	var got scheduleRequest
	var auth, prefer string
	mux := http.NewServeMux()
	mux.HandleFunc(schedulePath, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		prefer = r.Header.Get("Prefer")
		_ = json.NewDecoder(r.Body).Decode(&got)
		scheduleHandler("room@example.com", nil, nil)(w, r)
	})
	creds := newMemCredentials()
	creds.set("adv-1", "token-1", "refresh", time.Now().Add(time.Hour))
	g := newTestGateway(t, mux, creds, time.Second)

	if _, err := g.IsResourceFree(context.Background(), "adv-1", "room@example.com", slot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth != "Bearer token-1" {
		t.Errorf("Authorization = %q", auth)
	}
	if prefer != utcPreference {
		t.Errorf("Prefer = %q", prefer)
	}
	if len(got.Schedules) != 1 || got.Schedules[0] != "room@example.com" {
		t.Errorf("schedules = %v", got.Schedules)
	}
	if got.StartTime.DateTime != "2030-03-04T10:00:00" || got.EndTime.DateTime != "2030-03-04T11:00:00" {
		t.Errorf("window = %s..%s", got.StartTime.DateTime, got.EndTime.DateTime)
	}
}

func TestIsResourceFree_EmptyAddressMakesNoCall(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	g := newTestGateway(t, mux, newMemCredentials(), time.Second)

	free, err := g.IsResourceFree(context.Background(), "adv-1", "", slot)
	if err != nil || !free {
		t.Fatalf("free = %v, err = %v; want true, nil", free, err)
	}
	if hits.Load() != 0 {
		t.Errorf("remote hits = %d, want 0", hits.Load())
	}
}

func TestIsResourceFree_NoPrincipalCredentialFailsClosed(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })
	g := newTestGateway(t, mux, newMemCredentials(), time.Second)

	_, err := g.IsResourceFree(context.Background(), "adv-1", "room@example.com", slot)
	if !errors.Is(err, ErrRemoteUnavailable) || !errors.Is(err, ErrNoCredential) {
		t.Fatalf("err = %v, want remote unavailable caused by missing credential", err)
	}
	if hits.Load() != 0 {
		t.Errorf("remote hits = %d, want 0", hits.Load())
	}
}

func TestIsResourceFree_Timeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(schedulePath, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	creds := newMemCredentials()
	creds.set("adv-1", "token", "refresh", time.Now().Add(time.Hour))
	g := newTestGateway(t, mux, creds, 50*time.Millisecond)

	start := time.Now()
	_, err := g.IsResourceFree(context.Background(), "adv-1", "room@example.com", slot)
	if !errors.Is(err, ErrRemoteUnavailable) {
		t.Fatalf("err = %v, want ErrRemoteUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("call took %v, want it bounded by the call timeout", elapsed)
	}
}

func TestCall_RefreshesOnceOn401(t *testing.T) {
	var refreshes, hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenEndpoint(&refreshes))
	mux.HandleFunc(schedulePath, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") == "Bearer revoked" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		scheduleHandler("room@example.com", nil, nil)(w, r)
	})
	creds := newMemCredentials()
	creds.set("adv-1", "revoked", "refresh-1", time.Now().Add(time.Hour))
	g := newTestGateway(t, mux, creds, time.Second)

	free, err := g.IsResourceFree(context.Background(), "adv-1", "room@example.com", slot)
	if err != nil || !free {
		t.Fatalf("free = %v, err = %v; want true, nil", free, err)
	}
	if refreshes.Load() != 1 || hits.Load() != 2 {
		t.Errorf("refreshes = %d, hits = %d; want 1, 2", refreshes.Load(), hits.Load())
	}
	saved := creds.get("adv-1")
	if saved.AccessToken != "fresh-1" || saved.RefreshToken != "refresh-rotated" {
		t.Errorf("saved credential = %+v", saved)
	}
}

func TestCall_PersistentUnauthorizedIsRemoteError(t *testing.T) {
	var refreshes, hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenEndpoint(&refreshes))
	mux.HandleFunc(schedulePath, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	creds := newMemCredentials()
	creds.set("adv-1", "revoked", "refresh-1", time.Now().Add(time.Hour))
	g := newTestGateway(t, mux, creds, time.Second)

	_, err := g.IsResourceFree(context.Background(), "adv-1", "room@example.com", slot)
	if !errors.Is(err, ErrRemoteUnavailable) {
		t.Fatalf("err = %v, want ErrRemoteUnavailable", err)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want one retry", hits.Load())
	}
}

func TestCheckRooms_IsolatesFailures(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(schedulePath, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req scheduleRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req.Schedules[0] {
		case "broken@example.com":
			w.WriteHeader(http.StatusBadGateway)
		case "busy@example.com":
			scheduleHandler(req.Schedules[0], []map[string]any{graphItem("busy", slotStart, slotStart.Add(time.Hour))}, nil)(w, r)
		default:
			scheduleHandler(req.Schedules[0], nil, nil)(w, r)
		}
	})
	creds := newMemCredentials()
	creds.set("adv-1", "token", "refresh", time.Now().Add(time.Hour))
	g := newTestGateway(t, mux, creds, time.Second)

	rooms := []model.Room{
		{ID: "r1", ContactAddress: "broken@example.com"},
		{ID: "r2", ContactAddress: "busy@example.com"},
		{ID: "r3", ContactAddress: "free@example.com"},
		{ID: "r4"},
	}
	results := g.CheckRooms(context.Background(), "adv-1", rooms, slot)

	if len(results) != len(rooms) {
		t.Fatalf("len(results) = %d", len(results))
	}
	if !errors.Is(results[0].Err, ErrRemoteUnavailable) || results[0].Available() {
		t.Errorf("r1 = %+v, want remote error", results[0])
	}
	if results[1].Err != nil || results[1].Free {
		t.Errorf("r2 = %+v, want busy", results[1])
	}
	if !results[2].Available() {
		t.Errorf("r3 = %+v, want free", results[2])
	}
	if !results[3].Available() {
		t.Errorf("r4 = %+v, want free", results[3])
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3 (room without address is not queried)", hits.Load())
	}
}

func TestHasAnyFreeResource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(schedulePath, func(w http.ResponseWriter, r *http.Request) {
		var req scheduleRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Schedules[0] == "free@example.com" {
			scheduleHandler(req.Schedules[0], nil, nil)(w, r)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	creds := newMemCredentials()
	creds.set("adv-1", "token", "refresh", time.Now().Add(time.Hour))
	g := newTestGateway(t, mux, creds, time.Second)

	tests := []struct {
		name  string
		rooms []model.Room
		want  bool
	}{
		{"one free among failures", []model.Room{{ID: "a", ContactAddress: "down@example.com"}, {ID: "b", ContactAddress: "free@example.com"}}, true},
		{"all failing", []model.Room{{ID: "a", ContactAddress: "down@example.com"}}, false},
		{"local-only room", []model.Room{{ID: "a", ContactAddress: "down@example.com"}, {ID: "c"}}, true},
		{"no rooms", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.HasAnyFreeResource(context.Background(), "adv-1", tt.rooms, slot); got != tt.want {
				t.Errorf("HasAnyFreeResource() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ────────────────────────────────────────────────
// Advisor calendars
// ────────────────────────────────────────────────

func TestIsAdvisorFree(t *testing.T) {
	event := func(showAs string, cancelled bool) map[string]any {
		e := graphItem("", slotStart, slotStart.Add(time.Hour))
		delete(e, "status")
		e["id"] = "evt"
		e["showAs"] = showAs
		e["isCancelled"] = cancelled
		return e
	}

	tests := []struct {
		name   string
		events []map[string]any
		want   bool
	}{
		{"empty calendar", nil, true},
		{"busy event", []map[string]any{event("busy", false)}, false},
		{"tentative event", []map[string]any{event("tentative", false)}, false},
		{"cancelled event", []map[string]any{event("busy", true)}, true},
		{"free event", []map[string]any{event("free", false)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var query string
			mux := http.NewServeMux()
			mux.HandleFunc(calendarViewPath, func(w http.ResponseWriter, r *http.Request) {
				query = r.URL.Query().Get("startDateTime")
				writeJSON(w, http.StatusOK, map[string]any{"value": tt.events})
			})
			creds := newMemCredentials()
			creds.set("adv-1", "token", "refresh", time.Now().Add(time.Hour))
			g := newTestGateway(t, mux, creds, time.Second)

			got, err := g.IsAdvisorFree(context.Background(), "adv-1", slot)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAdvisorFree() = %v, want %v", got, tt.want)
			}
			if query != "2030-03-04T10:00:00Z" {
				t.Errorf("startDateTime = %q", query)
			}
		})
	}
}

func TestCheckAdvisors_NoCredentialIsExempt(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(calendarViewPath, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	creds := newMemCredentials()
	creds.set("linked", "token", "refresh", time.Now().Add(time.Hour))
	g := newTestGateway(t, mux, creds, time.Second)

	results := g.CheckAdvisors(context.Background(), []model.Advisor{{ID: "linked"}, {ID: "local"}}, slot)
	if results[0].Available() || !errors.Is(results[0].Err, ErrRemoteUnavailable) {
		t.Errorf("linked = %+v, want remote error", results[0])
	}
	if !results[1].Available() {
		t.Errorf("local = %+v, want free", results[1])
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
	if !g.HasAnyAvailableAdvisor(context.Background(), []model.Advisor{{ID: "linked"}, {ID: "local"}}, slot) {
		t.Error("HasAnyAvailableAdvisor() = false, want true")
	}
	if g.HasAnyAvailableAdvisor(context.Background(), []model.Advisor{{ID: "linked"}}, slot) {
		t.Error("HasAnyAvailableAdvisor() = true for failing advisor")
	}
}

// ────────────────────────────────────────────────
// Registration
// ────────────────────────────────────────────────

func TestRegisterEvent(t *testing.T) {
	booking := &model.Booking{
		ID:            "bk-1",
		Interval:      slot,
		AdvisorID:     "adv-1",
		ClientContact: model.ClientContact{Name: "Ada", Email: "ada@example.com", Phone: "+15550100"},
	}
	room := &model.Room{ID: "r1", Name: "Blue", ContactAddress: "blue@example.com"}

	tests := []struct {
		name    string
		status  int
		linked  bool
		want    bool
		wantHit bool
	}{
		{"created", http.StatusCreated, true, true, true},
		{"server error", http.StatusInternalServerError, true, false, true},
		{"forbidden", http.StatusForbidden, true, false, true},
		{"no credential", http.StatusCreated, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got eventRequest
			var hits atomic.Int32
			mux := http.NewServeMux()
			mux.HandleFunc(eventsPath, func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				_ = json.NewDecoder(r.Body).Decode(&got)
				writeJSON(w, tt.status, map[string]string{"id": "evt-1"})
			})
			creds := newMemCredentials()
			if tt.linked {
				creds.set("adv-1", "token", "refresh", time.Now().Add(time.Hour))
			}
			g := newTestGateway(t, mux, creds, time.Second)

			ok := g.RegisterEvent(context.Background(), model.Advisor{ID: "adv-1"}, booking, EventDetails{Title: "Intro call", Room: room})
			if ok != tt.want {
				t.Errorf("RegisterEvent() = %v, want %v", ok, tt.want)
			}
			if (hits.Load() > 0) != tt.wantHit {
				t.Errorf("hits = %d, wantHit %v", hits.Load(), tt.wantHit)
			}
			if tt.wantHit {
				if got.Subject != "Intro call" || got.TransactionID != transactionID(booking) {
					t.Errorf("event = %+v", got)
				}
				if got.Location == nil || got.Location.DisplayName != "Blue" {
					t.Errorf("location = %+v", got.Location)
				}
				if len(got.Attendees) != 2 || got.Attendees[1].Type != "resource" {
					t.Errorf("attendees = %+v", got.Attendees)
				}
			}
		})
	}
}

func TestRegisterEvent_UnreachableIsFalse(t *testing.T) {
	creds := newMemCredentials()
	creds.set("adv-1", "token", "refresh", time.Now().Add(time.Hour))
	tokens := NewTokenManager(creds, nil, nil, logger.Discard())
	g := New(Options{BaseURL: "http://127.0.0.1:1", CallTimeout: 200 * time.Millisecond}, tokens, logger.Discard())

	if g.RegisterEvent(context.Background(), model.Advisor{ID: "adv-1"}, &model.Booking{ID: "bk"}, EventDetails{}) {
		t.Error("RegisterEvent() = true against an unreachable server")
	}
}
