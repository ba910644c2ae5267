package model

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type ClientContact struct {
	Name  string `json:"name" bson:"name" validate:"required,max=200"`
	Email string `json:"email" bson:"email" validate:"required,email,max=254"`
	Phone string `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
	Notes string `json:"notes,omitempty" bson:"notes,omitempty" validate:"max=2000"`
}

type Booking struct {
	ID            string        `json:"id" bson:"_id"`
	Interval      TimeInterval  `json:"interval" bson:",inline"`
	EventTypeID   string        `json:"event_type_id" bson:"event_type_id"`
	AdvisorID     string        `json:"advisor_id" bson:"advisor_id"`
	RoomID        string        `json:"room_id,omitempty" bson:"room_id,omitempty"`
	ClientContact ClientContact `json:"client_contact" bson:"client_contact"`
	CancelToken   string        `json:"cancel_token" bson:"cancel_token"`
	Status        BookingStatus `json:"status" bson:"status"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" bson:"updated_at"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingStatusConfirmed
}

// Availability is a resolved advisor/room pair. Room is nil when the event
// type does not use rooms.
type Availability struct {
	Advisor Advisor
	Room    *Room
}
