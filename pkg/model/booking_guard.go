package model

import "time"

// BookingGuard is a per-resource document touched inside every booking
// transaction so concurrent writers on the same advisor or room collide.
type BookingGuard struct {
	ID        string    `bson:"_id" json:"id"`
	Version   int64     `bson:"version" json:"version"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func GuardKey(scope ResourceScope) string {
	return "guard_" + string(scope.Kind) + "_" + scope.ID
}
