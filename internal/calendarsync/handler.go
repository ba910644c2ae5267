// Package calendarsync retries remote calendar registrations that failed
// after a booking was committed.
package calendarsync

import (
	"context"
	"errors"
	"fmt"

	"bureau/internal/calendar"
	"bureau/internal/intervals"
	"bureau/pkg/kafka"
	"bureau/pkg/logger"
	"bureau/pkg/model"

	"github.com/goccy/go-json"
)

type Registrar interface {
	RegisterEvent(ctx context.Context, advisor model.Advisor, b *model.Booking, details calendar.EventDetails) bool
}

type Handler struct {
	store    intervals.Store
	catalog  intervals.Catalog
	calendar Registrar
	log      *logger.Logger
}

func NewHandler(store intervals.Store, catalog intervals.Catalog, calendar Registrar, log *logger.Logger) *Handler {
	return &Handler{
		store:    store,
		catalog:  catalog,
		calendar: calendar,
		log:      log,
	}
}

// Handle consumes booking events. Only sync failures are acted on; other
// event types on the topic are acknowledged untouched.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	if msg.GetEventType() != model.EventBookingCalendarSyncFailed {
		return nil
	}

	var event model.BookingEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return kafka.NewPermanentError("decode booking event", err)
	}
	if event.BookingID == "" {
		return kafka.NewPermanentError("booking event without booking id", nil)
	}

	b, err := h.store.GetByID(ctx, event.BookingID)
	if err != nil {
		if errors.Is(err, intervals.ErrNotFound) {
			return kafka.NewPermanentError("booking not found", err)
		}
		return kafka.NewTransientError("load booking", err)
	}
	if !b.IsConfirmed() {
		h.log.Info("Skipping calendar sync for cancelled booking", "booking_id", b.ID)
		return nil
	}
	if !b.Interval.Start.Equal(event.Start) {
		// A later reschedule issued its own registration.
		h.log.Info("Skipping stale calendar sync", "booking_id", b.ID, "event_start", event.Start, "booking_start", b.Interval.Start)
		return nil
	}

	advisor, err := h.catalog.Advisor(ctx, b.AdvisorID)
	if err != nil {
		if errors.Is(err, intervals.ErrNotFound) {
			return kafka.NewPermanentError("advisor not found", err)
		}
		return kafka.NewTransientError("load advisor", err)
	}
	if !advisor.HasCredential() {
		h.log.Info("Skipping calendar sync for advisor without credential", "booking_id", b.ID, "advisor_id", b.AdvisorID)
		return nil
	}

	details, err := h.details(ctx, b)
	if err != nil {
		return kafka.NewTransientError("load event details", err)
	}

	if !h.calendar.RegisterEvent(ctx, *advisor, b, details) {
		return kafka.NewTransientError(fmt.Sprintf("register event for booking %s", b.ID), calendar.ErrRemoteUnavailable)
	}
	h.log.Info("Calendar sync recovered", "booking_id", b.ID, "advisor_id", b.AdvisorID)
	return nil
}

func (h *Handler) details(ctx context.Context, b *model.Booking) (calendar.EventDetails, error) {
	var details calendar.EventDetails

	et, err := h.catalog.EventType(ctx, b.EventTypeID)
	switch {
	case err == nil:
		details.Title = et.Title
	case !errors.Is(err, intervals.ErrNotFound):
		return details, err
	}

	if b.RoomID == "" {
		return details, nil
	}
	rooms, err := h.catalog.Rooms(ctx, "")
	if err != nil {
		return details, err
	}
	for i := range rooms {
		if rooms[i].ID == b.RoomID {
			details.Room = &rooms[i]
			break
		}
	}
	return details, nil
}
