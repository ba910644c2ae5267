package model

import "time"

const (
	EventBookingConfirmed          = "booking.confirmed"
	EventBookingCancelled          = "booking.cancelled"
	EventBookingRescheduled        = "booking.rescheduled"
	EventBookingCalendarSyncFailed = "booking.calendar_sync_failed"
)

// BookingEvent is the payload published on the booking events topic.
type BookingEvent struct {
	BookingID   string        `json:"booking_id"`
	EventTypeID string        `json:"event_type_id"`
	AdvisorID   string        `json:"advisor_id"`
	RoomID      string        `json:"room_id,omitempty"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	Status      BookingStatus `json:"status"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

func NewBookingEvent(b *Booking, at time.Time) BookingEvent {
	return BookingEvent{
		BookingID:   b.ID,
		EventTypeID: b.EventTypeID,
		AdvisorID:   b.AdvisorID,
		RoomID:      b.RoomID,
		Start:       b.Interval.Start,
		End:         b.Interval.End,
		Status:      b.Status,
		OccurredAt:  at.UTC(),
	}
}
