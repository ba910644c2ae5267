package model

import (
	"sort"
	"time"
)

// ClockLayout is the HH:MM wall-clock format of template bounds.
const ClockLayout = "15:04"

// WeeklyAvailabilityTemplate is a recurring window. Weekday follows ISO
// numbering, 1 is Monday and 7 is Sunday.
type WeeklyAvailabilityTemplate struct {
	ID        string `json:"id" bson:"_id"`
	AdvisorID string `json:"advisor_id" bson:"advisor_id" validate:"required"`
	Weekday   int    `json:"weekday" bson:"weekday" validate:"iso_weekday"`
	StartTime string `json:"start_time" bson:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" bson:"end_time" validate:"required,clock"`
	Locked    bool   `json:"locked" bson:"locked"`
}

// AvailabilityBlock is a one-off availability window for an advisor.
type AvailabilityBlock struct {
	ID        string       `json:"id" bson:"_id"`
	AdvisorID string       `json:"advisor_id" bson:"advisor_id"`
	Interval  TimeInterval `json:"interval" bson:",inline"`
}

func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Occurrence expands the template on the calendar date of day in loc.
// ok is false when the weekday does not match or the template is malformed.
func (t WeeklyAvailabilityTemplate) Occurrence(day time.Time, loc *time.Location) (TimeInterval, bool) {
	if loc == nil {
		loc = time.UTC
	}
	local := day.In(loc)
	if ISOWeekday(local) != t.Weekday {
		return TimeInterval{}, false
	}
	from, err := time.Parse(ClockLayout, t.StartTime)
	if err != nil {
		return TimeInterval{}, false
	}
	to, err := time.Parse(ClockLayout, t.EndTime)
	if err != nil {
		return TimeInterval{}, false
	}
	y, mo, d := local.Date()
	start := time.Date(y, mo, d, from.Hour(), from.Minute(), 0, 0, loc)
	end := time.Date(y, mo, d, to.Hour(), to.Minute(), 0, 0, loc)
	if !start.Before(end) {
		return TimeInterval{}, false
	}
	return TimeInterval{Start: start, End: end}, true
}

// ExpandTemplates returns every concrete occurrence that intersects
// window, ordered by start.
func ExpandTemplates(templates []WeeklyAvailabilityTemplate, window TimeInterval, loc *time.Location) []TimeInterval {
	if loc == nil {
		loc = time.UTC
	}
	var out []TimeInterval
	first := window.Start.In(loc)
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	// One extra day back so windows crossing midnight still see the
	// previous day's occurrence.
	for d := day.AddDate(0, 0, -1); d.Before(window.End); d = d.AddDate(0, 0, 1) {
		for _, t := range templates {
			occ, ok := t.Occurrence(d, loc)
			if ok && occ.Overlaps(window) {
				out = append(out, occ)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Covered reports whether target lies fully inside one of windows.
func Covered(target TimeInterval, windows []TimeInterval) bool {
	for _, w := range windows {
		if w.Contains(target) {
			return true
		}
	}
	return false
}
