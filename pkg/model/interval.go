package model

import (
	"errors"
	"time"
)

var ErrInvalidInterval = errors.New("interval start must be before end")

// TimeInterval is the half-open range [Start, End).
type TimeInterval struct {
	Start time.Time `json:"start" bson:"start_time"`
	End   time.Time `json:"end" bson:"end_time"`
}

func NewInterval(start, end time.Time) (TimeInterval, error) {
	if !start.Before(end) {
		return TimeInterval{}, ErrInvalidInterval
	}
	return TimeInterval{Start: start, End: end}, nil
}

func (i TimeInterval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps reports whether i and o share at least one instant.
// Touching intervals (i.End == o.Start) do not overlap.
func (i TimeInterval) Overlaps(o TimeInterval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely within i.
func (i TimeInterval) Contains(o TimeInterval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

func (i TimeInterval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i TimeInterval) UTC() TimeInterval {
	return TimeInterval{Start: i.Start.UTC(), End: i.End.UTC()}
}
