package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bureau/internal/intervals/sqlstore"
	"bureau/pkg/db/sqlite"
	"bureau/pkg/logger"
)

const fixture = `{
  "event_types": [
    {"id": "visit", "title": "Branch visit", "duration_minutes": 45, "group_id": "desk", "is_round_robin": true, "booking_horizon_months": 2, "modification_cutoff_hours": 12, "site": "HQ", "requires_room": true}
  ],
  "advisors": [{"id": "adv-a", "name": "Avery"}, {"id": "adv-b", "name": "Blake"}],
  "groups": [{"id": "desk", "name": "Front desk", "advisor_ids": ["adv-b", "adv-a"]}],
  "rooms": [
    {"id": "r-2", "name": "Harbor", "site": "HQ"},
    {"id": "r-1", "name": "Lagoon", "site": "HQ", "contact_address": "lagoon@example.com"}
  ],
  "templates": [{"id": "t-a", "advisor_id": "adv-a", "weekday": 1, "start_time": "09:00", "end_time": "17:00", "locked": true}],
  "availability_blocks": [{"id": "blk", "advisor_id": "adv-b", "interval": {"start": "2030-03-05T14:00:00Z", "end": "2030-03-05T16:00:00Z"}}],
  "credentials": [{"advisor_id": "adv-a", "access_token": "at", "refresh_token": "rt", "expires_at": "2030-01-01T00:00:00Z"}]
}`

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := sqlstore.New(db, nil)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return store
}

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestApply(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	f, err := Load(writeFixture(t, fixture))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := f.Apply(ctx, store, store, logger.Discard()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	et, err := store.EventType(ctx, "visit")
	if err != nil || !et.RequiresRoom || et.DurationMinutes != 45 {
		t.Errorf("EventType() = %+v, %v", et, err)
	}

	advisors, err := store.GroupAdvisors(ctx, "desk")
	if err != nil || len(advisors) != 2 || advisors[0].ID != "adv-b" {
		t.Errorf("GroupAdvisors() = %+v, %v; want roster order", advisors, err)
	}

	rooms, err := store.Rooms(ctx, "HQ")
	if err != nil || len(rooms) != 2 || rooms[0].ID != "r-2" {
		t.Errorf("Rooms() = %+v, %v; want file order", rooms, err)
	}

	tpl, err := store.Template(ctx, "t-a")
	if err != nil || !tpl.Locked {
		t.Errorf("Template() = %+v, %v", tpl, err)
	}

	cred, err := store.Credential(ctx, "adv-a")
	if err != nil || cred.RefreshToken != "rt" {
		t.Errorf("Credential() = %+v, %v", cred, err)
	}

	// Applying twice is an upsert.
	if err := f.Apply(ctx, store, store, logger.Discard()); err != nil {
		t.Errorf("second Apply() error = %v", err)
	}

	// A catalog-only reseed keeps the granted credential.
	catalogOnly, err := Load(writeFixture(t, `{"advisors": [{"id": "adv-a", "name": "Avery"}]}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := catalogOnly.Apply(ctx, store, store, logger.Discard()); err != nil {
		t.Fatalf("catalog-only Apply() error = %v", err)
	}
	if cred, err := store.Credential(ctx, "adv-a"); err != nil || cred.RefreshToken != "rt" {
		t.Errorf("Credential() after reseed = %+v, %v", cred, err)
	}
}

func TestApply_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero duration", `{"event_types": [{"id": "x", "title": "X", "duration_minutes": 0}]}`},
		{"zero horizon", `{"event_types": [{"id": "x", "title": "X", "duration_minutes": 30, "booking_horizon_months": 0}]}`},
		{"template for unknown advisor", `{"templates": [{"advisor_id": "ghost", "weekday": 1, "start_time": "09:00", "end_time": "10:00"}]}`},
		{"inverted template", `{"advisors": [{"id": "a"}], "templates": [{"advisor_id": "a", "weekday": 1, "start_time": "10:00", "end_time": "09:00"}]}`},
		{"inverted block", `{"availability_blocks": [{"id": "b", "advisor_id": "a", "interval": {"start": "2030-03-05T16:00:00Z", "end": "2030-03-05T14:00:00Z"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Load(writeFixture(t, tt.body))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if err := f.Apply(context.Background(), newStore(t), nil, logger.Discard()); err == nil {
				t.Error("Apply() succeeded, want error")
			}
		})
	}
}

func TestLoad_Malformed(t *testing.T) {
	if _, err := Load(writeFixture(t, `{"advisors": [`)); err == nil {
		t.Error("Load() succeeded on malformed JSON")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Load() succeeded on missing file")
	}
}
