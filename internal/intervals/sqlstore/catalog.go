package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bureau/internal/intervals"
	"bureau/pkg/db/sqlite"
	"bureau/pkg/model"
)

func (s *Store) EventType(ctx context.Context, id string) (*model.EventType, error) {
	var et model.EventType
	var roundRobin, requiresRoom int
	err := s.db.QueryRowContext(ctx, `SELECT id, title, duration_minutes, group_id, is_round_robin,
			booking_horizon_months, modification_cutoff_hours, site, requires_room
		FROM event_types WHERE id = ?`, id).
		Scan(&et.ID, &et.Title, &et.DurationMinutes, &et.GroupID, &roundRobin,
			&et.BookingHorizonMonths, &et.ModificationCutoffHours, &et.Site, &requiresRoom)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, intervals.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event type: %w", err)
	}
	et.IsRoundRobin = roundRobin == 1
	et.RequiresRoom = requiresRoom == 1
	return &et, nil
}

func (s *Store) SaveEventType(ctx context.Context, et model.EventType) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO event_types (id, title, duration_minutes, group_id, is_round_robin,
			booking_horizon_months, modification_cutoff_hours, site, requires_room)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, duration_minutes = excluded.duration_minutes,
			group_id = excluded.group_id, is_round_robin = excluded.is_round_robin,
			booking_horizon_months = excluded.booking_horizon_months,
			modification_cutoff_hours = excluded.modification_cutoff_hours,
			site = excluded.site, requires_room = excluded.requires_room`,
		et.ID, et.Title, et.DurationMinutes, et.GroupID, boolInt(et.IsRoundRobin),
		et.BookingHorizonMonths, et.ModificationCutoffHours, et.Site, boolInt(et.RequiresRoom))
	if err != nil {
		return fmt.Errorf("failed to save event type: %w", err)
	}
	return nil
}

const advisorColumns = `id, name, email, access_token, refresh_token, expires_at`

func (s *Store) scanAdvisor(row scanner) (*model.Advisor, error) {
	var (
		a       model.Advisor
		cred    model.Credential
		expires int64
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &cred.AccessToken, &cred.RefreshToken, &expires); err != nil {
		return nil, err
	}
	if cred.AccessToken != "" || cred.RefreshToken != "" {
		opened, err := intervals.OpenCredential(s.sealer, cred)
		if err != nil {
			return nil, err
		}
		opened.ExpiresAt = fromMillis(expires)
		a.Credential = &opened
	}
	return &a, nil
}

func (s *Store) Advisor(ctx context.Context, id string) (*model.Advisor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+advisorColumns+` FROM advisors WHERE id = ?`, id)
	a, err := s.scanAdvisor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, intervals.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load advisor: %w", err)
	}
	return a, nil
}

// SaveAdvisor upserts the advisor. A stored credential survives when a
// carries none.
func (s *Store) SaveAdvisor(ctx context.Context, a model.Advisor) error {
	var cred model.Credential
	if a.HasCredential() {
		sealed, err := intervals.SealCredential(s.sealer, *a.Credential)
		if err != nil {
			return err
		}
		cred = sealed
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO advisors (`+advisorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email,
			access_token = CASE WHEN excluded.access_token = '' AND excluded.refresh_token = ''
				THEN advisors.access_token ELSE excluded.access_token END,
			refresh_token = CASE WHEN excluded.access_token = '' AND excluded.refresh_token = ''
				THEN advisors.refresh_token ELSE excluded.refresh_token END,
			expires_at = CASE WHEN excluded.access_token = '' AND excluded.refresh_token = ''
				THEN advisors.expires_at ELSE excluded.expires_at END`,
		a.ID, a.Name, a.Email, cred.AccessToken, cred.RefreshToken, credentialExpiry(cred))
	if err != nil {
		return fmt.Errorf("failed to save advisor: %w", err)
	}
	return nil
}

func credentialExpiry(c model.Credential) int64 {
	if c.ExpiresAt.IsZero() {
		return 0
	}
	return toMillis(c.ExpiresAt)
}

func (s *Store) Credential(ctx context.Context, advisorID string) (*model.Credential, error) {
	a, err := s.Advisor(ctx, advisorID)
	if err != nil {
		return nil, err
	}
	if a.Credential == nil {
		return nil, intervals.ErrNotFound
	}
	return a.Credential, nil
}

func (s *Store) SaveCredential(ctx context.Context, advisorID string, c model.Credential) error {
	sealed, err := intervals.SealCredential(s.sealer, c)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE advisors SET access_token = ?, refresh_token = ?, expires_at = ? WHERE id = ?`,
		sealed.AccessToken, sealed.RefreshToken, credentialExpiry(sealed), advisorID)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return intervals.ErrNotFound
	}
	return nil
}

func (s *Store) Group(ctx context.Context, id string) (*model.Group, error) {
	var g model.Group
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM advisor_groups WHERE id = ?`, id).Scan(&g.ID, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, intervals.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT advisor_id FROM group_members WHERE group_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load group members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var advisorID string
		if err := rows.Scan(&advisorID); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		g.AdvisorIDs = append(g.AdvisorIDs, advisorID)
	}
	return &g, rows.Err()
}

func (s *Store) GroupAdvisors(ctx context.Context, groupID string) ([]model.Advisor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT a.id, a.name, a.email, a.access_token, a.refresh_token, a.expires_at
		FROM group_members m JOIN advisors a ON a.id = m.advisor_id
		WHERE m.group_id = ? ORDER BY m.position`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group advisors: %w", err)
	}
	defer rows.Close()

	var out []model.Advisor
	for rows.Next() {
		a, err := s.scanAdvisor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan advisor: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) SaveGroup(ctx context.Context, g model.Group) error {
	return sqlite.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO advisor_groups (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name`, g.ID, g.Name)
		if err != nil {
			return fmt.Errorf("failed to save group: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, g.ID); err != nil {
			return fmt.Errorf("failed to reset group members: %w", err)
		}
		for i, advisorID := range g.AdvisorIDs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO group_members (group_id, advisor_id, position) VALUES (?, ?, ?)`,
				g.ID, advisorID, i); err != nil {
				return fmt.Errorf("failed to save group member: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) Rooms(ctx context.Context, site string) ([]model.Room, error) {
	query := `SELECT id, name, site, contact_address, position FROM rooms`
	var args []any
	if site != "" {
		query += ` WHERE site = ?`
		args = append(args, site)
	}
	query += ` ORDER BY position, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load rooms: %w", err)
	}
	defer rows.Close()

	var out []model.Room
	for rows.Next() {
		var r model.Room
		if err := rows.Scan(&r.ID, &r.Name, &r.Site, &r.ContactAddress, &r.Position); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SaveRoom(ctx context.Context, r model.Room) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO rooms (id, name, site, contact_address, position)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, site = excluded.site,
			contact_address = excluded.contact_address, position = excluded.position`,
		r.ID, r.Name, r.Site, r.ContactAddress, r.Position)
	if err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

const templateColumns = `id, advisor_id, weekday, start_time, end_time, locked`

func scanTemplate(row scanner) (*model.WeeklyAvailabilityTemplate, error) {
	var (
		t      model.WeeklyAvailabilityTemplate
		locked int
	)
	if err := row.Scan(&t.ID, &t.AdvisorID, &t.Weekday, &t.StartTime, &t.EndTime, &locked); err != nil {
		return nil, err
	}
	t.Locked = locked == 1
	return &t, nil
}

func (s *Store) Templates(ctx context.Context, advisorID string) ([]model.WeeklyAvailabilityTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM weekly_templates
		WHERE advisor_id = ? ORDER BY weekday, start_time`, advisorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	defer rows.Close()

	var out []model.WeeklyAvailabilityTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) Template(ctx context.Context, id string) (*model.WeeklyAvailabilityTemplate, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM weekly_templates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, intervals.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return t, nil
}

func (s *Store) SaveTemplate(ctx context.Context, t model.WeeklyAvailabilityTemplate) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO weekly_templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET advisor_id = excluded.advisor_id, weekday = excluded.weekday,
			start_time = excluded.start_time, end_time = excluded.end_time, locked = excluded.locked`,
		t.ID, t.AdvisorID, t.Weekday, t.StartTime, t.EndTime, boolInt(t.Locked))
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM weekly_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return intervals.ErrNotFound
	}
	return nil
}

func (s *Store) AvailabilityBlocks(ctx context.Context, advisorID string, window model.TimeInterval) ([]model.AvailabilityBlock, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, advisor_id, start_time, end_time FROM availability_blocks
		WHERE advisor_id = ? AND start_time < ? AND end_time > ? ORDER BY start_time`,
		advisorID, toMillis(window.End), toMillis(window.Start))
	if err != nil {
		return nil, fmt.Errorf("failed to load availability blocks: %w", err)
	}
	defer rows.Close()

	var out []model.AvailabilityBlock
	for rows.Next() {
		var (
			b          model.AvailabilityBlock
			start, end int64
		)
		if err := rows.Scan(&b.ID, &b.AdvisorID, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan availability block: %w", err)
		}
		b.Interval = model.TimeInterval{Start: fromMillis(start), End: fromMillis(end)}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) SaveAvailabilityBlock(ctx context.Context, b model.AvailabilityBlock) error {
	if !b.Interval.Valid() {
		return model.ErrInvalidInterval
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO availability_blocks (id, advisor_id, start_time, end_time)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET advisor_id = excluded.advisor_id,
			start_time = excluded.start_time, end_time = excluded.end_time`,
		b.ID, b.AdvisorID, toMillis(b.Interval.Start), toMillis(b.Interval.End))
	if err != nil {
		return fmt.Errorf("failed to save availability block: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

