package sqlstore

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"

	"bureau/internal/intervals"
	"bureau/internal/intervals/storetest"
	"bureau/pkg/db/sqlite"
	"bureau/pkg/model"
	"bureau/pkg/sealer"
)

func newTestStore(t *testing.T, s *sealer.Sealer) *Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "bookings.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db, s)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return store
}

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) intervals.Backend {
		return newTestStore(t, nil)
	})
}

func TestStore_SealedConformance(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	s, err := sealer.New(key)
	if err != nil {
		t.Fatalf("sealer.New() error = %v", err)
	}
	storetest.Run(t, func(t *testing.T) intervals.Backend {
		return newTestStore(t, s)
	})
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t, nil)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestStore_CredentialsSealedAtRest(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	s, err := sealer.New(key)
	if err != nil {
		t.Fatalf("sealer.New() error = %v", err)
	}
	store := newTestStore(t, s)
	ctx := context.Background()

	if err := store.SaveAdvisor(ctx, model.Advisor{ID: "adv", Name: "Adv",
		Credential: &model.Credential{AccessToken: "plain-access", RefreshToken: "plain-refresh"}}); err != nil {
		t.Fatalf("SaveAdvisor() error = %v", err)
	}

	var access, refresh string
	if err := store.db.QueryRowContext(ctx, `SELECT access_token, refresh_token FROM advisors WHERE id = ?`, "adv").
		Scan(&access, &refresh); err != nil {
		t.Fatalf("raw select error = %v", err)
	}
	if strings.Contains(access, "plain") || strings.Contains(refresh, "plain") {
		t.Errorf("tokens stored in clear: %q %q", access, refresh)
	}

	c, err := store.Credential(ctx, "adv")
	if err != nil || c.AccessToken != "plain-access" || c.RefreshToken != "plain-refresh" {
		t.Errorf("Credential() = %+v, %v", c, err)
	}
}

func TestStore_CommitRejectsInvalidInterval(t *testing.T) {
	store := newTestStore(t, nil)
	b := storetest.NewBooking("adv", "", storetest.Span(11, 0, 10, 0))
	if err := store.Commit(context.Background(), b); err != model.ErrInvalidInterval {
		t.Errorf("Commit() error = %v, want ErrInvalidInterval", err)
	}
}

func TestStore_SaveAdvisorKeepsStoredCredential(t *testing.T) {
	store := newTestStore(t, nil)
	ctx := context.Background()

	if err := store.SaveAdvisor(ctx, model.Advisor{ID: "adv", Name: "Adv",
		Credential: &model.Credential{AccessToken: "access", RefreshToken: "refresh"}}); err != nil {
		t.Fatalf("SaveAdvisor() error = %v", err)
	}
	if err := store.SaveAdvisor(ctx, model.Advisor{ID: "adv", Name: "Renamed"}); err != nil {
		t.Fatalf("SaveAdvisor() without credential error = %v", err)
	}

	a, err := store.Advisor(ctx, "adv")
	if err != nil {
		t.Fatalf("Advisor() error = %v", err)
	}
	if a.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", a.Name)
	}
	c, err := store.Credential(ctx, "adv")
	if err != nil || c.AccessToken != "access" || c.RefreshToken != "refresh" {
		t.Errorf("Credential() = %+v, %v; want the stored credential", c, err)
	}
}
