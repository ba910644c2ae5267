package sqlstore

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS event_types (
		id                        TEXT PRIMARY KEY,
		title                     TEXT NOT NULL,
		duration_minutes          INTEGER NOT NULL CHECK (duration_minutes > 0),
		group_id                  TEXT NOT NULL DEFAULT '',
		is_round_robin            INTEGER NOT NULL DEFAULT 0,
		booking_horizon_months    INTEGER NOT NULL DEFAULT 0,
		modification_cutoff_hours INTEGER NOT NULL DEFAULT 0,
		site                      TEXT NOT NULL DEFAULT '',
		requires_room             INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS advisors (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL DEFAULT '',
		access_token  TEXT NOT NULL DEFAULT '',
		refresh_token TEXT NOT NULL DEFAULT '',
		expires_at    INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS advisor_groups (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS group_members (
		group_id   TEXT NOT NULL REFERENCES advisor_groups(id) ON DELETE CASCADE,
		advisor_id TEXT NOT NULL,
		position   INTEGER NOT NULL,
		PRIMARY KEY (group_id, advisor_id)
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		site            TEXT NOT NULL DEFAULT '',
		contact_address TEXT NOT NULL DEFAULT '',
		position        INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rooms_site ON rooms(site, position)`,
	`CREATE TABLE IF NOT EXISTS weekly_templates (
		id         TEXT PRIMARY KEY,
		advisor_id TEXT NOT NULL,
		weekday    INTEGER NOT NULL CHECK (weekday BETWEEN 1 AND 7),
		start_time TEXT NOT NULL,
		end_time   TEXT NOT NULL,
		locked     INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_weekly_templates_advisor ON weekly_templates(advisor_id, weekday)`,
	`CREATE TABLE IF NOT EXISTS availability_blocks (
		id         TEXT PRIMARY KEY,
		advisor_id TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		end_time   INTEGER NOT NULL,
		CHECK (start_time < end_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_availability_blocks_advisor ON availability_blocks(advisor_id, start_time, end_time)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id            TEXT PRIMARY KEY,
		event_type_id TEXT NOT NULL,
		advisor_id    TEXT NOT NULL,
		room_id       TEXT,
		start_time    INTEGER NOT NULL,
		end_time      INTEGER NOT NULL,
		client_name   TEXT NOT NULL,
		client_email  TEXT NOT NULL,
		client_phone  TEXT NOT NULL DEFAULT '',
		client_notes  TEXT NOT NULL DEFAULT '',
		cancel_token  TEXT NOT NULL UNIQUE,
		status        TEXT NOT NULL,
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL,
		cancelled_at  INTEGER,
		CHECK (start_time < end_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_advisor ON bookings(advisor_id, start_time, end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_room ON bookings(room_id, start_time, end_time)`,
}

// Migrate creates the schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
