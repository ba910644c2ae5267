// Package availability decides which advisor and room can take a slot.
//
// Resolution is read-only. Local checks run first against the interval
// store; the remote calendar is consulted only for candidates that passed
// them, and any remote failure excludes the candidate.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bureau/internal/calendar"
	"bureau/internal/intervals"
	"bureau/pkg/logger"
	"bureau/pkg/model"
)

var (
	ErrAdvisorRequired = errors.New("event type is not round-robin and needs a named advisor")
	ErrInvalidRequest  = errors.New("resolution request needs an event type and a valid interval")
)

// Gateway is the slice of the remote calendar the resolver needs.
type Gateway interface {
	CheckAdvisors(ctx context.Context, advisors []model.Advisor, iv model.TimeInterval) []calendar.Result
	CheckRooms(ctx context.Context, principalID string, rooms []model.Room, iv model.TimeInterval) []calendar.Result
}

type Options struct {
	// Location is the business time zone templates are expanded in.
	Location *time.Location
}

type Request struct {
	EventType *model.EventType
	// AdvisorID names the advisor for fixed event types. For round-robin
	// types it narrows the group to that member.
	AdvisorID string
	// RoomID pins the room, used when moving an existing booking.
	RoomID   string
	Interval model.TimeInterval
	// ExcludeBookingID ignores one booking in local overlap checks.
	ExcludeBookingID string
}

type Resolver struct {
	catalog intervals.Catalog
	store   intervals.Store
	gateway Gateway
	opts    Options
	log     *logger.Logger
}

func NewResolver(catalog intervals.Catalog, store intervals.Store, gateway Gateway, opts Options, log *logger.Logger) *Resolver {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Resolver{
		catalog: catalog,
		store:   store,
		gateway: gateway,
		opts:    opts,
		log:     log,
	}
}

// Resolve returns the first advisor in pool order that is free locally and
// remotely, paired with the first free room when the event type needs one.
// A nil Availability with a nil error means nothing is available.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*model.Availability, error) {
	if req.EventType == nil || !req.Interval.Valid() {
		return nil, ErrInvalidRequest
	}
	et := req.EventType
	iv := req.Interval
	log := r.log.With("event_type_id", et.ID, "start", iv.Start, "end", iv.End)

	pool, err := r.advisorPool(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		log.Debug("No advisors in pool")
		return nil, nil
	}

	var rooms []model.Room
	if et.RequiresRoom {
		rooms, err = r.localFreeRooms(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(rooms) == 0 {
			log.Debug("No locally free rooms")
			return nil, nil
		}
	}

	eligible, err := r.locallyEligible(ctx, pool, iv, req.ExcludeBookingID)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		log.Debug("No locally eligible advisors", "pool_size", len(pool))
		return nil, nil
	}

	remote := r.gateway.CheckAdvisors(ctx, eligible, iv)
	for i, advisor := range eligible {
		if !remote[i].Available() {
			continue
		}
		if !et.RequiresRoom {
			return &model.Availability{Advisor: advisor}, nil
		}
		results := r.gateway.CheckRooms(ctx, advisor.ID, rooms, iv)
		for j, room := range rooms {
			if results[j].Available() {
				return &model.Availability{Advisor: advisor, Room: &room}, nil
			}
		}
	}

	log.Debug("No candidate cleared remote checks", "eligible", len(eligible))
	return nil, nil
}

func (r *Resolver) advisorPool(ctx context.Context, req Request) ([]model.Advisor, error) {
	et := req.EventType
	if !et.IsRoundRobin {
		if req.AdvisorID == "" {
			return nil, ErrAdvisorRequired
		}
		a, err := r.catalog.Advisor(ctx, req.AdvisorID)
		if errors.Is(err, intervals.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load advisor: %w", err)
		}
		return []model.Advisor{*a}, nil
	}

	group, err := r.catalog.GroupAdvisors(ctx, et.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group advisors: %w", err)
	}
	if req.AdvisorID == "" {
		return group, nil
	}
	for _, a := range group {
		if a.ID == req.AdvisorID {
			return []model.Advisor{a}, nil
		}
	}
	return nil, nil
}

func (r *Resolver) localFreeRooms(ctx context.Context, req Request) ([]model.Room, error) {
	candidates, err := r.catalog.Rooms(ctx, req.EventType.Site)
	if err != nil {
		return nil, fmt.Errorf("failed to load rooms: %w", err)
	}
	if req.RoomID != "" {
		var pinned []model.Room
		for _, room := range candidates {
			if room.ID == req.RoomID {
				pinned = append(pinned, room)
			}
		}
		candidates = pinned
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if req.ExcludeBookingID != "" {
		var free []model.Room
		for _, room := range candidates {
			overlapping, err := r.store.FindOverlapping(ctx, model.RoomScope(room.ID), req.Interval, req.ExcludeBookingID)
			if err != nil {
				return nil, fmt.Errorf("failed to check room %s: %w", room.ID, err)
			}
			if len(overlapping) == 0 {
				free = append(free, room)
			}
		}
		return free, nil
	}

	scopes := make([]model.ResourceScope, len(candidates))
	for i, room := range candidates {
		scopes[i] = model.RoomScope(room.ID)
	}
	freeScopes, err := r.store.FindFreeResources(ctx, scopes, req.Interval)
	if err != nil {
		return nil, fmt.Errorf("failed to check rooms: %w", err)
	}
	byID := make(map[string]model.Room, len(candidates))
	for _, room := range candidates {
		byID[room.ID] = room
	}
	free := make([]model.Room, 0, len(freeScopes))
	for _, s := range freeScopes {
		free = append(free, byID[s.ID])
	}
	return free, nil
}

// locallyEligible keeps pool order.
func (r *Resolver) locallyEligible(ctx context.Context, pool []model.Advisor, iv model.TimeInterval, excludeID string) ([]model.Advisor, error) {
	var out []model.Advisor
	for _, a := range pool {
		open, err := r.IsWithinAvailability(ctx, a.ID, iv)
		if err != nil {
			return nil, err
		}
		if !open {
			continue
		}
		overlapping, err := r.store.FindOverlapping(ctx, model.AdvisorScope(a.ID), iv, excludeID)
		if err != nil {
			return nil, fmt.Errorf("failed to check advisor %s: %w", a.ID, err)
		}
		if len(overlapping) == 0 {
			out = append(out, a)
		}
	}
	return out, nil
}

// IsWithinAvailability reports whether iv fits inside the advisor's weekly
// templates or ad-hoc blocks. Adjacent windows are joined first, so a slot
// may span two back-to-back templates.
func (r *Resolver) IsWithinAvailability(ctx context.Context, advisorID string, iv model.TimeInterval) (bool, error) {
	templates, err := r.catalog.Templates(ctx, advisorID)
	if err != nil {
		return false, fmt.Errorf("failed to load templates: %w", err)
	}
	blocks, err := r.catalog.AvailabilityBlocks(ctx, advisorID, iv)
	if err != nil {
		return false, fmt.Errorf("failed to load availability blocks: %w", err)
	}

	windows := model.ExpandTemplates(templates, iv, r.opts.Location)
	for _, b := range blocks {
		if b.Interval.Overlaps(iv) {
			windows = append(windows, b.Interval)
		}
	}
	return model.Covered(iv, mergeWindows(windows)), nil
}

func mergeWindows(windows []model.TimeInterval) []model.TimeInterval {
	if len(windows) < 2 {
		return windows
	}
	sorted := make([]model.TimeInterval, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []model.TimeInterval{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if w.Start.After(last.End) {
			merged = append(merged, w)
			continue
		}
		if w.End.After(last.End) {
			last.End = w.End
		}
	}
	return merged
}
