// Package sqlstore is the SQLite backend for intervals.Store, Catalog and
// CredentialStore.
//
// Mutual exclusion for check-then-insert comes from the connection DSN:
// every transaction begins IMMEDIATE, so a second writer waits on the
// database write lock until the first one commits and then sees its row.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bureau/internal/intervals"
	"bureau/pkg/db/sqlite"
	"bureau/pkg/model"
	"bureau/pkg/sealer"
)

type Store struct {
	db     *sql.DB
	sealer *sealer.Sealer
}

var _ intervals.Backend = (*Store)(nil)

// New wraps an open database. s may be nil, in which case credentials are
// stored unsealed.
func New(db *sql.DB, s *sealer.Sealer) *Store {
	return &Store{db: db, sealer: s}
}

const bookingColumns = `id, event_type_id, advisor_id, room_id, start_time, end_time,
	client_name, client_email, client_phone, client_notes,
	cancel_token, status, created_at, updated_at, cancelled_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scopeColumn(kind model.ResourceKind) (string, error) {
	switch kind {
	case model.ResourceAdvisor:
		return "advisor_id", nil
	case model.ResourceRoom:
		return "room_id", nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", kind)
	}
}

func (s *Store) FindOverlapping(ctx context.Context, scope model.ResourceScope, iv model.TimeInterval, excludeID string) ([]*model.Booking, error) {
	return findOverlapping(ctx, s.db, scope, iv, excludeID)
}

func findOverlapping(ctx context.Context, q queryer, scope model.ResourceScope, iv model.TimeInterval, excludeID string) ([]*model.Booking, error) {
	col, err := scopeColumn(scope.Kind)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE ` + col + ` = ? AND status = ? AND start_time < ? AND end_time > ? AND id <> ?
		ORDER BY start_time`
	rows, err := q.QueryContext(ctx, query,
		scope.ID, string(model.BookingStatusConfirmed), toMillis(iv.End), toMillis(iv.Start), excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping bookings: %w", err)
	}
	defer rows.Close()

	var out []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return out, nil
}

func (s *Store) FindFreeResources(ctx context.Context, candidates []model.ResourceScope, iv model.TimeInterval) ([]model.ResourceScope, error) {
	free := make([]model.ResourceScope, 0, len(candidates))
	for _, c := range candidates {
		busy, err := findOverlapping(ctx, s.db, c, iv, "")
		if err != nil {
			return nil, err
		}
		if len(busy) == 0 {
			free = append(free, c)
		}
	}
	return free, nil
}

func (s *Store) Commit(ctx context.Context, b *model.Booking) error {
	if !b.Interval.Valid() {
		return model.ErrInvalidInterval
	}
	return sqlite.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := ensureFree(ctx, tx, intervals.Scopes(b), b.Interval, ""); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.EventTypeID, b.AdvisorID, nullString(b.RoomID),
			toMillis(b.Interval.Start), toMillis(b.Interval.End),
			b.ClientContact.Name, b.ClientContact.Email, b.ClientContact.Phone, b.ClientContact.Notes,
			b.CancelToken, string(b.Status), toMillis(b.CreatedAt), toMillis(b.UpdatedAt), nullMillis(b.CancelledAt),
		)
		if sqlite.IsUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate booking id or cancel token", intervals.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to insert booking: %w", err)
		}
		return nil
	})
}

func ensureFree(ctx context.Context, tx *sql.Tx, scopes []model.ResourceScope, iv model.TimeInterval, excludeID string) error {
	for _, scope := range scopes {
		busy, err := findOverlapping(ctx, tx, scope, iv, excludeID)
		if err != nil {
			return err
		}
		if len(busy) > 0 {
			return fmt.Errorf("%w: %s %s", intervals.ErrConflict, scope.Kind, scope.ID)
		}
	}
	return nil
}

func (s *Store) Move(ctx context.Context, id string, to model.TimeInterval, at time.Time) (*model.Booking, error) {
	if !to.Valid() {
		return nil, model.ErrInvalidInterval
	}
	var moved *model.Booking
	err := sqlite.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		b, err := getBooking(ctx, tx, "id", id)
		if err != nil {
			return err
		}
		if !b.IsConfirmed() {
			return intervals.ErrNotConfirmed
		}
		if err := ensureFree(ctx, tx, intervals.Scopes(b), to, b.ID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE bookings SET start_time = ?, end_time = ?, updated_at = ? WHERE id = ?`,
			toMillis(to.Start), toMillis(to.End), toMillis(at), id)
		if err != nil {
			return fmt.Errorf("failed to move booking: %w", err)
		}
		b.Interval = to.UTC()
		b.UpdatedAt = at.UTC().Truncate(time.Millisecond)
		moved = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func (s *Store) Cancel(ctx context.Context, id string, at time.Time) (*model.Booking, error) {
	var out *model.Booking
	err := sqlite.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		b, err := getBooking(ctx, tx, "id", id)
		if err != nil {
			return err
		}
		if !b.IsConfirmed() {
			out = b
			return nil
		}
		_, err = tx.ExecContext(ctx, `UPDATE bookings SET status = ?, cancelled_at = ?, updated_at = ? WHERE id = ?`,
			string(model.BookingStatusCancelled), toMillis(at), toMillis(at), id)
		if err != nil {
			return fmt.Errorf("failed to cancel booking: %w", err)
		}
		stamp := at.UTC().Truncate(time.Millisecond)
		b.Status = model.BookingStatusCancelled
		b.CancelledAt = &stamp
		b.UpdatedAt = stamp
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return getBooking(ctx, s.db, "id", id)
}

func (s *Store) GetByToken(ctx context.Context, cancelToken string) (*model.Booking, error) {
	return getBooking(ctx, s.db, "cancel_token", cancelToken)
}

func getBooking(ctx context.Context, q queryer, column, value string) (*model.Booking, error) {
	row := q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+column+` = ?`, value)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, intervals.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (*model.Booking, error) {
	var (
		b           model.Booking
		roomID      sql.NullString
		start, end  int64
		status      string
		created     int64
		updated     int64
		cancelledAt sql.NullInt64
	)
	err := row.Scan(&b.ID, &b.EventTypeID, &b.AdvisorID, &roomID, &start, &end,
		&b.ClientContact.Name, &b.ClientContact.Email, &b.ClientContact.Phone, &b.ClientContact.Notes,
		&b.CancelToken, &status, &created, &updated, &cancelledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}
	b.RoomID = roomID.String
	b.Interval = model.TimeInterval{Start: fromMillis(start), End: fromMillis(end)}
	b.Status = model.BookingStatus(status)
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	if cancelledAt.Valid {
		t := fromMillis(cancelledAt.Int64)
		b.CancelledAt = &t
	}
	return &b, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
