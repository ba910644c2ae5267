package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestDSN(t *testing.T) {
	dsn := DSN("/tmp/bookings.db")
	for _, want := range []string{"journal_mode(WAL)", "busy_timeout(", "_txlock=immediate"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN() = %s, missing %s", dsn, want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("database table is locked"), true},
		{errors.New("UNIQUE constraint failed: bookings.cancel_token"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryOnContention(t *testing.T) {
	calls := 0
	err := RetryOnContention(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("RetryOnContention() = %v after %d calls", err, calls)
	}

	calls = 0
	permanent := errors.New("syntax error")
	if err := RetryOnContention(context.Background(), func() error { calls++; return permanent }); err != permanent || calls != 1 {
		t.Errorf("permanent error should not be retried, got %v after %d calls", err, calls)
	}
}

func TestWithTx(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "tx.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE items (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	boom := errors.New("boom")
	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO items (id) VALUES ('a')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil || n != 0 {
		t.Fatalf("rolled back insert still visible: n=%d err=%v", n, err)
	}

	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO items (id) VALUES ('a')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO items (id) VALUES ('a')`)
		return err
	})
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
}
