// Package intervals defines the persistence contracts for booked intervals
// and the catalog the availability engine reads from.
//
// Backends live in the sqlstore and mongostore subpackages; both must pass
// the storetest suite.
package intervals

import (
	"context"
	"errors"
	"time"

	"bureau/pkg/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("interval overlaps a confirmed booking")
	// ErrNotConfirmed is returned when a write needs a confirmed booking.
	ErrNotConfirmed = errors.New("booking is not confirmed")
)

// Store owns every persisted booking interval. Only confirmed bookings take
// part in overlap checks.
type Store interface {
	// FindOverlapping returns confirmed bookings in scope whose interval
	// overlaps iv, skipping excludeID when set.
	FindOverlapping(ctx context.Context, scope model.ResourceScope, iv model.TimeInterval, excludeID string) ([]*model.Booking, error)

	// FindFreeResources returns, in input order, the candidates with no
	// overlapping confirmed booking.
	FindFreeResources(ctx context.Context, candidates []model.ResourceScope, iv model.TimeInterval) ([]model.ResourceScope, error)

	// Commit checks the advisor (and room, when set) for overlap and
	// inserts b atomically. It fails with ErrConflict when a concurrent
	// writer got there first.
	Commit(ctx context.Context, b *model.Booking) error

	// Move re-checks the same advisor and room against to, excluding the
	// booking itself, and updates its interval atomically.
	Move(ctx context.Context, id string, to model.TimeInterval, at time.Time) (*model.Booking, error)

	// Cancel marks a booking cancelled. Cancelling twice is a no-op that
	// returns the stored booking.
	Cancel(ctx context.Context, id string, at time.Time) (*model.Booking, error)

	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetByToken(ctx context.Context, cancelToken string) (*model.Booking, error)
}

// Catalog is the read side used during resolution, plus the upserts used by
// seeding and administration.
type Catalog interface {
	EventType(ctx context.Context, id string) (*model.EventType, error)
	Advisor(ctx context.Context, id string) (*model.Advisor, error)
	Group(ctx context.Context, id string) (*model.Group, error)
	// GroupAdvisors returns the group's advisors in roster order.
	GroupAdvisors(ctx context.Context, groupID string) ([]model.Advisor, error)
	// Rooms returns rooms of site in insertion order; an empty site
	// returns every room.
	Rooms(ctx context.Context, site string) ([]model.Room, error)
	Templates(ctx context.Context, advisorID string) ([]model.WeeklyAvailabilityTemplate, error)
	Template(ctx context.Context, id string) (*model.WeeklyAvailabilityTemplate, error)
	AvailabilityBlocks(ctx context.Context, advisorID string, window model.TimeInterval) ([]model.AvailabilityBlock, error)

	SaveEventType(ctx context.Context, et model.EventType) error
	SaveAdvisor(ctx context.Context, a model.Advisor) error
	SaveGroup(ctx context.Context, g model.Group) error
	SaveRoom(ctx context.Context, r model.Room) error
	SaveTemplate(ctx context.Context, t model.WeeklyAvailabilityTemplate) error
	DeleteTemplate(ctx context.Context, id string) error
	SaveAvailabilityBlock(ctx context.Context, b model.AvailabilityBlock) error
}

// CredentialStore persists the delegated calendar credential of an advisor.
type CredentialStore interface {
	Credential(ctx context.Context, advisorID string) (*model.Credential, error)
	SaveCredential(ctx context.Context, advisorID string, c model.Credential) error
}

// Backend is what a concrete store provides.
type Backend interface {
	Store
	Catalog
	CredentialStore
}

// Scopes lists the resources a booking occupies.
func Scopes(b *model.Booking) []model.ResourceScope {
	scopes := []model.ResourceScope{model.AdvisorScope(b.AdvisorID)}
	if b.RoomID != "" {
		scopes = append(scopes, model.RoomScope(b.RoomID))
	}
	return scopes
}
