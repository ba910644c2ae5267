package model

import "time"

type EventType struct {
	ID                      string `json:"id" bson:"_id" validate:"required"`
	Title                   string `json:"title" bson:"title"`
	DurationMinutes         int    `json:"duration_minutes" bson:"duration_minutes" validate:"min=1"`
	GroupID                 string `json:"group_id" bson:"group_id"`
	IsRoundRobin            bool   `json:"is_round_robin" bson:"is_round_robin"`
	BookingHorizonMonths    int    `json:"booking_horizon_months" bson:"booking_horizon_months" validate:"min=1"`
	ModificationCutoffHours int    `json:"modification_cutoff_hours" bson:"modification_cutoff_hours" validate:"min=0"`
	Site                    string `json:"site,omitempty" bson:"site,omitempty"`
	RequiresRoom            bool   `json:"requires_room" bson:"requires_room"`
}

func (e EventType) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// Horizon is the latest instant a slot may start when booked at now.
func (e EventType) Horizon(now time.Time) time.Time {
	return now.AddDate(0, e.BookingHorizonMonths, 0)
}

// Cutoff is the last instant client self-service may change a booking
// starting at start. The instant itself is still permitted.
func (e EventType) Cutoff(start time.Time) time.Time {
	return start.Add(-time.Duration(e.ModificationCutoffHours) * time.Hour)
}
