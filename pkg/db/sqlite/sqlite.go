package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMillis = 10000
	maxOpenConns      = 4
)

// DSN builds a WAL-mode DSN whose transactions take the write lock at
// BEGIN, so a read-check-write sequence inside one transaction is
// serialized against every other writer.
func DSN(path string) string {
	return fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_txlock=immediate",
		path, busyTimeoutMillis)
}

func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}

type TxFunc func(tx *sql.Tx) error

// WithTx runs fn in a transaction, retrying the whole transaction on lock
// contention. fn must be safe to re-run.
func WithTx(ctx context.Context, db *sql.DB, fn TxFunc) error {
	return RetryOnContention(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var defaultRetryConfig = retryConfig{
	maxRetries: 5,
	baseDelay:  20 * time.Millisecond,
	maxDelay:   500 * time.Millisecond,
}

// IsTransient matches the busy and locked codes surfaced by modernc.org/sqlite.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"database is locked",
		"database table is locked",
		"(5)",
		"(6)",
		"(517)",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func RetryOnContention(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= defaultRetryConfig.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil || !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == defaultRetryConfig.maxRetries {
			break
		}
		t := time.NewTimer(backoffDelay(defaultRetryConfig, attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return lastErr
}

func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := cfg.baseDelay << uint(attempt)
	if delay > cfg.maxDelay {
		delay = cfg.maxDelay
	}
	return delay + time.Duration(rand.Int64N(int64(cfg.baseDelay)))
}
