package model

import "time"

// BookingRequest is the inbound self-service booking. The end of the slot
// is always derived from the event type duration.
type BookingRequest struct {
	EventTypeID   string        `json:"event_type_id" validate:"required,max=100"`
	AdvisorID     string        `json:"advisor_id,omitempty" validate:"max=100"`
	Start         time.Time     `json:"start" validate:"required"`
	ClientContact ClientContact `json:"client_contact"`
}

type RescheduleRequest struct {
	Start time.Time `json:"start" validate:"required"`
}

type AvailabilityQuery struct {
	EventTypeID string    `json:"event_type_id" validate:"required,max=100"`
	AdvisorID   string    `json:"advisor_id,omitempty" validate:"max=100"`
	Start       time.Time `json:"start" validate:"required"`
}

type AvailabilityResult struct {
	Available bool      `json:"available"`
	AdvisorID string    `json:"advisor_id,omitempty"`
	RoomID    string    `json:"room_id,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}
