package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"bureau/internal/availability"
	bookingserrors "bureau/internal/bookings/errors"
	"bureau/internal/bookings/validator"
	"bureau/internal/calendar"
	"bureau/internal/intervals"
	apperrors "bureau/pkg/errors"
	"bureau/pkg/kafka"
	"bureau/pkg/logger"
	"bureau/pkg/model"
	"bureau/pkg/sanitizer"

	"github.com/google/uuid"
)

const (
	cancelTokenBytes      = 32
	defaultPublishTimeout = 10 * time.Second
	eventSource      = "bookings"
	schemaVersion    = "1"
)

type BookingService interface {
	BookSlot(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	CheckAvailability(ctx context.Context, q *model.AvailabilityQuery) (*model.AvailabilityResult, error)
	GetByToken(ctx context.Context, token string) (*model.Booking, error)
	Cancel(ctx context.Context, token string) (*model.Booking, error)
	Reschedule(ctx context.Context, token string, req *model.RescheduleRequest) (*model.Booking, error)
	AdminCancel(ctx context.Context, id string) (*model.Booking, error)
	// Wait blocks until background publications and calendar
	// registrations finish.
	Wait()
}

type Resolver interface {
	Resolve(ctx context.Context, req availability.Request) (*model.Availability, error)
}

type CalendarRegistrar interface {
	RegisterEvent(ctx context.Context, advisor model.Advisor, b *model.Booking, details calendar.EventDetails) bool
}

type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// NoopPublisher drops events when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, kafka.Message) error { return nil }

type Options struct {
	// SyncTimeout bounds the background calendar registration.
	SyncTimeout time.Duration
	// PublishTimeout bounds each background event publication.
	PublishTimeout time.Duration
	PhoneRegion string
	Now         func() time.Time
}

type bookingService struct {
	store     intervals.Store
	catalog   intervals.Catalog
	resolver  Resolver
	calendar  CalendarRegistrar
	publisher EventPublisher
	validator *validator.BookingValidator
	opts      Options
	log       *logger.Logger
	syncs     sync.WaitGroup
}

func NewBookingService(
	store intervals.Store,
	catalog intervals.Catalog,
	resolver Resolver,
	calendar CalendarRegistrar,
	publisher EventPublisher,
	validator *validator.BookingValidator,
	opts Options,
	log *logger.Logger,
) BookingService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &bookingService{
		store:     store,
		catalog:   catalog,
		resolver:  resolver,
		calendar:  calendar,
		publisher: publisher,
		validator: validator,
		opts:      opts,
		log:       log,
	}
}

func (s *bookingService) BookSlot(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	if err := s.sanitize(req); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		s.log.Warn("Booking validation failed", "event_type_id", req.EventTypeID, "error", err)
		return nil, validationError(err)
	}

	et, err := s.eventType(ctx, req.EventTypeID)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	if err := s.validator.ValidateWindow(req.Start, et, now); err != nil {
		return nil, validationError(err)
	}

	iv := model.TimeInterval{Start: req.Start.UTC(), End: req.Start.UTC().Add(et.Duration())}
	avail, err := s.resolve(ctx, availability.Request{EventType: et, AdvisorID: req.AdvisorID, Interval: iv})
	if err != nil {
		return nil, err
	}
	if avail == nil {
		s.log.Info("No availability for slot", "event_type_id", et.ID, "advisor_id", req.AdvisorID, "start", iv.Start)
		return nil, apperrors.NoAvailability()
	}

	token, err := newCancelToken()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate cancel token", err)
	}
	booking := &model.Booking{
		ID:            uuid.NewString(),
		Interval:      iv,
		EventTypeID:   et.ID,
		AdvisorID:     avail.Advisor.ID,
		ClientContact: req.ClientContact,
		CancelToken:   token,
		Status:        model.BookingStatusConfirmed,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	if avail.Room != nil {
		booking.RoomID = avail.Room.ID
	}

	if err := s.store.Commit(ctx, booking); err != nil {
		if errors.Is(err, intervals.ErrConflict) {
			s.log.Info("Slot taken by concurrent booking", "advisor_id", booking.AdvisorID, "room_id", booking.RoomID, "start", iv.Start)
			return nil, apperrors.SlotTaken(err)
		}
		s.log.Error("Failed to commit booking", "error", err)
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	s.log.Info("Booking created successfully",
		"booking_id", booking.ID,
		"event_type_id", booking.EventTypeID,
		"advisor_id", booking.AdvisorID,
		"room_id", booking.RoomID,
		"start", booking.Interval.Start,
	)
	s.afterCommit(ctx, model.EventBookingConfirmed, booking, &registration{
		advisor: avail.Advisor,
		details: calendar.EventDetails{Title: et.Title, Room: avail.Room},
	})
	return booking, nil
}

func (s *bookingService) CheckAvailability(ctx context.Context, q *model.AvailabilityQuery) (*model.AvailabilityResult, error) {
	if err := s.validator.ValidateQuery(q); err != nil {
		return nil, validationError(err)
	}
	et, err := s.eventType(ctx, q.EventTypeID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateWindow(q.Start, et, s.opts.Now()); err != nil {
		return nil, validationError(err)
	}

	iv := model.TimeInterval{Start: q.Start.UTC(), End: q.Start.UTC().Add(et.Duration())}
	avail, err := s.resolve(ctx, availability.Request{EventType: et, AdvisorID: q.AdvisorID, Interval: iv})
	if err != nil {
		return nil, err
	}

	result := &model.AvailabilityResult{Start: iv.Start, End: iv.End}
	if avail != nil {
		result.Available = true
		result.AdvisorID = avail.Advisor.ID
		if avail.Room != nil {
			result.RoomID = avail.Room.ID
		}
	}
	return result, nil
}

func (s *bookingService) GetByToken(ctx context.Context, token string) (*model.Booking, error) {
	return s.byToken(ctx, token)
}

// Cancel is idempotent: a cancelled booking is returned as is, even after
// the cutoff. The cutoff instant itself still permits cancellation.
func (s *bookingService) Cancel(ctx context.Context, token string) (*model.Booking, error) {
	b, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !b.IsConfirmed() {
		return b, nil
	}

	if err := s.checkCutoff(ctx, b); err != nil {
		return nil, err
	}
	return s.cancel(ctx, b.ID)
}

func (s *bookingService) AdminCancel(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, intervals.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	if !b.IsConfirmed() {
		return b, nil
	}
	return s.cancel(ctx, id)
}

func (s *bookingService) cancel(ctx context.Context, id string) (*model.Booking, error) {
	cancelled, err := s.store.Cancel(ctx, id, s.opts.Now().UTC())
	if err != nil {
		if errors.Is(err, intervals.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		s.log.Error("Failed to cancel booking", "booking_id", id, "error", err)
		return nil, apperrors.Internal("Failed to cancel booking", err)
	}
	s.log.Info("Booking cancelled", "booking_id", id, "advisor_id", cancelled.AdvisorID)
	s.afterCommit(ctx, model.EventBookingCancelled, cancelled, nil)
	return cancelled, nil
}

// Reschedule keeps advisor and room and moves the booking to a new start.
func (s *bookingService) Reschedule(ctx context.Context, token string, req *model.RescheduleRequest) (*model.Booking, error) {
	if err := s.validator.ValidateReschedule(req); err != nil {
		return nil, validationError(err)
	}
	b, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !b.IsConfirmed() {
		return nil, cancelledError()
	}

	et, err := s.eventType(ctx, b.EventTypeID)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	if cutoff := et.Cutoff(b.Interval.Start); now.After(cutoff) {
		return nil, apperrors.CutoffExceeded(cutoff)
	}
	if err := s.validator.ValidateWindow(req.Start, et, now); err != nil {
		return nil, validationError(err)
	}

	iv := model.TimeInterval{Start: req.Start.UTC(), End: req.Start.UTC().Add(et.Duration())}
	avail, err := s.resolve(ctx, availability.Request{
		EventType:        et,
		AdvisorID:        b.AdvisorID,
		RoomID:           b.RoomID,
		Interval:         iv,
		ExcludeBookingID: b.ID,
	})
	if err != nil {
		return nil, err
	}
	if avail == nil || (b.RoomID != "" && (avail.Room == nil || avail.Room.ID != b.RoomID)) {
		return nil, apperrors.NoAvailability()
	}

	moved, err := s.store.Move(ctx, b.ID, iv, now.UTC())
	if err != nil {
		switch {
		case errors.Is(err, intervals.ErrConflict):
			return nil, apperrors.SlotTaken(err)
		case errors.Is(err, intervals.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Booking", b.ID)
		case errors.Is(err, intervals.ErrNotConfirmed):
			return nil, cancelledError()
		}
		s.log.Error("Failed to move booking", "booking_id", b.ID, "error", err)
		return nil, apperrors.Internal("Failed to reschedule booking", err)
	}

	s.log.Info("Booking rescheduled", "booking_id", moved.ID, "from", b.Interval.Start, "to", moved.Interval.Start)
	s.afterCommit(ctx, model.EventBookingRescheduled, moved, &registration{
		advisor: avail.Advisor,
		details: calendar.EventDetails{Title: et.Title, Room: avail.Room},
	})
	return moved, nil
}

func (s *bookingService) Wait() {
	s.syncs.Wait()
}

func (s *bookingService) checkCutoff(ctx context.Context, b *model.Booking) error {
	et, err := s.eventType(ctx, b.EventTypeID)
	if err != nil {
		return err
	}
	if cutoff := et.Cutoff(b.Interval.Start); s.opts.Now().After(cutoff) {
		s.log.Info("Modification after cutoff rejected", "booking_id", b.ID, "cutoff", cutoff)
		return apperrors.CutoffExceeded(cutoff)
	}
	return nil
}

func (s *bookingService) byToken(ctx context.Context, token string) (*model.Booking, error) {
	if !validToken(token) {
		return nil, apperrors.InvalidInput(bookingserrors.ErrInvalidToken.Error())
	}
	b, err := s.store.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, intervals.ErrNotFound) {
			return nil, apperrors.NotFound("Booking")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return b, nil
}

func (s *bookingService) eventType(ctx context.Context, id string) (*model.EventType, error) {
	et, err := s.catalog.EventType(ctx, id)
	if err != nil {
		if errors.Is(err, intervals.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Event type", id)
		}
		return nil, apperrors.Internal("Failed to load event type", err)
	}
	return et, nil
}

func (s *bookingService) resolve(ctx context.Context, req availability.Request) (*model.Availability, error) {
	avail, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		if errors.Is(err, availability.ErrAdvisorRequired) {
			return nil, apperrors.Validation("Invalid booking input", map[string]any{
				"fields": map[string]string{"advisor_id": "advisor_id is required for this event type"},
			})
		}
		s.log.Error("Availability resolution failed", "event_type_id", req.EventType.ID, "error", err)
		return nil, apperrors.Internal("Failed to resolve availability", err)
	}
	return avail, nil
}

func (s *bookingService) sanitize(req *model.BookingRequest) error {
	contact, phoneOK := sanitizer.Contact(req.ClientContact, s.opts.PhoneRegion)
	req.ClientContact = contact
	if !phoneOK {
		return apperrors.Validation("Invalid booking input", map[string]any{
			"fields": map[string]string{"phone": "phone is not a valid phone number"},
		})
	}
	req.EventTypeID = sanitizer.TrimAndNormalize(req.EventTypeID)
	req.AdvisorID = sanitizer.TrimAndNormalize(req.AdvisorID)
	return nil
}

type registration struct {
	advisor model.Advisor
	details calendar.EventDetails
}

// afterCommit publishes the booking event and, when reg is set, registers
// the calendar event. Both run detached from the request; their outcome never
// reaches the caller. A failed registration is published for the retry worker.
func (s *bookingService) afterCommit(ctx context.Context, eventType string, b *model.Booking, reg *registration) {
	snapshot := *b
	event, ok := s.message(eventType, &snapshot)
	if reg != nil && (s.calendar == nil || !reg.advisor.HasCredential()) {
		// Advisors without a delegated credential have no writable calendar.
		reg = nil
	}
	var failed kafka.Message
	var failedOK bool
	if reg != nil {
		failed, failedOK = s.message(model.EventBookingCalendarSyncFailed, &snapshot)
	}
	bg := context.WithoutCancel(ctx)

	s.syncs.Add(1)
	go func() {
		defer s.syncs.Done()
		if ok {
			s.publish(bg, event)
		}
		if reg == nil {
			return
		}

		syncCtx, cancel := context.WithTimeout(bg, s.opts.SyncTimeout)
		defer cancel()
		if s.calendar.RegisterEvent(syncCtx, reg.advisor, &snapshot, reg.details) {
			return
		}
		s.log.Warn("Calendar sync failed, booking stands",
			"booking_id", snapshot.ID,
			"advisor_id", snapshot.AdvisorID,
		)
		if failedOK {
			s.publish(bg, failed)
		}
	}()
}

func (s *bookingService) message(eventType string, b *model.Booking) (kafka.Message, bool) {
	msg, err := kafka.NewMessage().
		WithKey(b.ID).
		WithValue(model.NewBookingEvent(b, s.opts.Now())).
		WithEventType(eventType).
		WithSchemaVersion(schemaVersion).
		WithSource(eventSource).
		Build()
	if err != nil {
		s.log.Error("Failed to build booking event", "booking_id", b.ID, "event_type", eventType, "error", err)
		return kafka.Message{}, false
	}
	return msg, true
}

func (s *bookingService) publish(ctx context.Context, msg kafka.Message) {
	pubCtx, cancel := context.WithTimeout(ctx, s.opts.PublishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, msg); err != nil {
		s.log.Warn("Failed to publish booking event",
			"booking_id", msg.Key,
			"event_type", msg.Headers[kafka.HeaderEventType],
			"error", err,
		)
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Invalid booking input", map[string]any{"fields": verrs.Fields()})
	}
	return apperrors.Validation("Invalid booking input", map[string]any{"error": err.Error()})
}

func cancelledError() error {
	return apperrors.Validation("Cancelled bookings cannot be rescheduled", map[string]any{
		"error": bookingserrors.ErrCancelled.Error(),
	})
}

func newCancelToken() (string, error) {
	buf := make([]byte, cancelTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func validToken(token string) bool {
	if token == "" || len(token) > 128 {
		return false
	}
	for _, r := range token {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum && r != '-' && r != '_' {
			return false
		}
	}
	return true
}
