package model

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2030, time.March, 4, h, m, 0, 0, time.UTC)
}

func TestTimeInterval_Overlaps(t *testing.T) {
	base := TimeInterval{Start: at(10, 0), End: at(11, 0)}

	tests := []struct {
		name  string
		other TimeInterval
		want  bool
	}{
		{"identical", TimeInterval{Start: at(10, 0), End: at(11, 0)}, true},
		{"partial overlap at start", TimeInterval{Start: at(9, 30), End: at(10, 30)}, true},
		{"partial overlap at end", TimeInterval{Start: at(10, 30), End: at(11, 30)}, true},
		{"contained", TimeInterval{Start: at(10, 15), End: at(10, 45)}, true},
		{"containing", TimeInterval{Start: at(9, 0), End: at(12, 0)}, true},
		{"touching after", TimeInterval{Start: at(11, 0), End: at(12, 0)}, false},
		{"touching before", TimeInterval{Start: at(9, 0), End: at(10, 0)}, false},
		{"disjoint", TimeInterval{Start: at(13, 0), End: at(14, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.other.Overlaps(base); got != tt.want {
				t.Errorf("Overlaps() is not symmetric for %s", tt.name)
			}
			predicate := base.Start.Before(tt.other.End) && tt.other.Start.Before(base.End)
			if predicate != tt.want {
				t.Errorf("predicate mismatch for %s", tt.name)
			}
		})
	}
}

func TestNewInterval(t *testing.T) {
	if _, err := NewInterval(at(10, 0), at(10, 0)); err != ErrInvalidInterval {
		t.Errorf("expected ErrInvalidInterval for empty interval, got %v", err)
	}
	if _, err := NewInterval(at(11, 0), at(10, 0)); err != ErrInvalidInterval {
		t.Errorf("expected ErrInvalidInterval for reversed interval, got %v", err)
	}
	iv, err := NewInterval(at(10, 0), at(11, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iv.Duration() != time.Hour {
		t.Errorf("Duration() = %s, want 1h", iv.Duration())
	}
}

func TestTimeInterval_Contains(t *testing.T) {
	window := TimeInterval{Start: at(9, 0), End: at(17, 0)}
	if !window.Contains(TimeInterval{Start: at(9, 0), End: at(10, 0)}) {
		t.Error("window should contain an interval sharing its start")
	}
	if !window.Contains(TimeInterval{Start: at(16, 0), End: at(17, 0)}) {
		t.Error("window should contain an interval sharing its end")
	}
	if window.Contains(TimeInterval{Start: at(16, 30), End: at(17, 30)}) {
		t.Error("window should not contain an interval crossing its end")
	}
}
