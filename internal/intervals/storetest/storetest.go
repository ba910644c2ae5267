// Package storetest holds the behaviour every intervals.Backend must show.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bureau/internal/intervals"
	"bureau/pkg/model"

	"github.com/google/uuid"
)

// Factory returns an empty, migrated backend.
type Factory func(t *testing.T) intervals.Backend

// Base is a Monday.
var Base = time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)

func At(h, m int) time.Time {
	return Base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func Span(h1, m1, h2, m2 int) model.TimeInterval {
	return model.TimeInterval{Start: At(h1, m1), End: At(h2, m2)}
}

func NewBooking(advisorID, roomID string, iv model.TimeInterval) *model.Booking {
	now := Base.Add(-24 * time.Hour)
	return &model.Booking{
		ID:            uuid.NewString(),
		Interval:      iv,
		EventTypeID:   "consult",
		AdvisorID:     advisorID,
		RoomID:        roomID,
		ClientContact: model.ClientContact{Name: "Ada Client", Email: "ada@example.com"},
		CancelToken:   uuid.NewString(),
		Status:        model.BookingStatusConfirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func Run(t *testing.T, factory Factory) {
	t.Run("FindOverlapping", func(t *testing.T) { testFindOverlapping(t, factory(t)) })
	t.Run("FindFreeResources", func(t *testing.T) { testFindFreeResources(t, factory(t)) })
	t.Run("Commit", func(t *testing.T) { testCommit(t, factory(t)) })
	t.Run("ConcurrentCommit", func(t *testing.T) { testConcurrentCommit(t, factory(t)) })
	t.Run("Cancel", func(t *testing.T) { testCancel(t, factory(t)) })
	t.Run("Move", func(t *testing.T) { testMove(t, factory(t)) })
	t.Run("Lookup", func(t *testing.T) { testLookup(t, factory(t)) })
	t.Run("Catalog", func(t *testing.T) { testCatalog(t, factory(t)) })
	t.Run("Credentials", func(t *testing.T) { testCredentials(t, factory(t)) })
}

func mustCommit(t *testing.T, s intervals.Store, b *model.Booking) {
	t.Helper()
	if err := s.Commit(context.Background(), b); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func testFindOverlapping(t *testing.T, s intervals.Backend) {
	ctx := context.Background()
	existing := NewBooking("adv-a", "room-1", Span(10, 0, 11, 0))
	mustCommit(t, s, existing)

	tests := []struct {
		name      string
		scope     model.ResourceScope
		iv        model.TimeInterval
		excludeID string
		want      int
	}{
		{"inside", model.AdvisorScope("adv-a"), Span(10, 15, 10, 45), "", 1},
		{"straddles start", model.AdvisorScope("adv-a"), Span(9, 30, 10, 30), "", 1},
		{"straddles end", model.AdvisorScope("adv-a"), Span(10, 30, 11, 30), "", 1},
		{"contains", model.AdvisorScope("adv-a"), Span(9, 0, 12, 0), "", 1},
		{"touches end", model.AdvisorScope("adv-a"), Span(11, 0, 12, 0), "", 0},
		{"touches start", model.AdvisorScope("adv-a"), Span(9, 0, 10, 0), "", 0},
		{"other advisor", model.AdvisorScope("adv-b"), Span(10, 0, 11, 0), "", 0},
		{"room scope", model.RoomScope("room-1"), Span(10, 30, 10, 45), "", 1},
		{"other room", model.RoomScope("room-2"), Span(10, 30, 10, 45), "", 0},
		{"excluded self", model.AdvisorScope("adv-a"), Span(10, 0, 11, 0), existing.ID, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindOverlapping(ctx, tt.scope, tt.iv, tt.excludeID)
			if err != nil {
				t.Fatalf("FindOverlapping() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("FindOverlapping() returned %d bookings, want %d", len(got), tt.want)
			}
		})
	}
}

func testFindFreeResources(t *testing.T, s intervals.Backend) {
	ctx := context.Background()
	mustCommit(t, s, NewBooking("adv-a", "room-2", Span(9, 0, 10, 0)))

	candidates := []model.ResourceScope{
		model.RoomScope("room-3"),
		model.RoomScope("room-2"),
		model.RoomScope("room-1"),
		model.AdvisorScope("adv-a"),
	}
	free, err := s.FindFreeResources(ctx, candidates, Span(9, 30, 10, 30))
	if err != nil {
		t.Fatalf("FindFreeResources() error = %v", err)
	}
	want := []model.ResourceScope{model.RoomScope("room-3"), model.RoomScope("room-1")}
	if len(free) != len(want) {
		t.Fatalf("FindFreeResources() = %v, want %v", free, want)
	}
	for i := range want {
		if free[i] != want[i] {
			t.Errorf("free[%d] = %v, want %v", i, free[i], want[i])
		}
	}
}

func testCommit(t *testing.T, s intervals.Backend) {
	ctx := context.Background()
	mustCommit(t, s, NewBooking("adv-a", "room-1", Span(10, 0, 11, 0)))

	tests := []struct {
		name    string
		booking *model.Booking
		wantErr error
	}{
		{"same advisor overlap", NewBooking("adv-a", "", Span(10, 30, 11, 30)), intervals.ErrConflict},
		{"same room overlap", NewBooking("adv-b", "room-1", Span(10, 30, 11, 30)), intervals.ErrConflict},
		{"adjacent slot", NewBooking("adv-a", "room-1", Span(11, 0, 12, 0)), nil},
		{"other advisor and room", NewBooking("adv-b", "room-2", Span(10, 0, 11, 0)), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Commit(ctx, tt.booking)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Commit() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	dup := NewBooking("adv-c", "", Span(14, 0, 15, 0))
	mustCommit(t, s, dup)
	again := NewBooking("adv-c", "", Span(16, 0, 17, 0))
	again.CancelToken = dup.CancelToken
	if err := s.Commit(ctx, again); !errors.Is(err, intervals.ErrConflict) {
		t.Errorf("Commit() with reused cancel token error = %v, want ErrConflict", err)
	}
}

func testConcurrentCommit(t *testing.T, s intervals.Backend) {
	const attempts = 12
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := s.Commit(ctx, NewBooking("adv-race", "room-race", Span(13, 0, 14, 0)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, intervals.ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || conflicts != attempts-1 {
		t.Fatalf("successes = %d, conflicts = %d, want 1 and %d", successes, conflicts, attempts-1)
	}

	got, err := s.FindOverlapping(ctx, model.AdvisorScope("adv-race"), Span(0, 0, 23, 0), "")
	if err != nil {
		t.Fatalf("FindOverlapping() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("confirmed bookings = %d, want 1", len(got))
	}
}

func testCancel(t *testing.T, s intervals.Backend) {
	ctx := context.Background()
	b := NewBooking("adv-a", "room-1", Span(10, 0, 11, 0))
	mustCommit(t, s, b)

	at := Base.Add(-time.Hour)
	first, err := s.Cancel(ctx, b.ID, at)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if first.Status != model.BookingStatusCancelled || first.CancelledAt == nil {
		t.Fatalf("Cancel() = %+v, want cancelled with timestamp", first)
	}

	second, err := s.Cancel(ctx, b.ID, at.Add(time.Minute))
	if err != nil {
		t.Fatalf("second Cancel() error = %v", err)
	}
	if second.Status != first.Status || !second.CancelledAt.Equal(*first.CancelledAt) {
		t.Errorf("second Cancel() changed state: %+v vs %+v", second, first)
	}

	busy, err := s.FindOverlapping(ctx, model.AdvisorScope("adv-a"), b.Interval, "")
	if err != nil {
		t.Fatalf("FindOverlapping() error = %v", err)
	}
	if len(busy) != 0 {
		t.Errorf("cancelled booking still overlaps")
	}
	mustCommit(t, s, NewBooking("adv-a", "room-1", b.Interval))

	if _, err := s.Cancel(ctx, "missing", at); !errors.Is(err, intervals.ErrNotFound) {
		t.Errorf("Cancel(missing) error = %v, want ErrNotFound", err)
	}
}

func testMove(t *testing.T, s intervals.Backend) {
	ctx := context.Background()
	b := NewBooking("adv-a", "room-1", Span(10, 0, 11, 0))
	mustCommit(t, s, b)
	mustCommit(t, s, NewBooking("adv-a", "", Span(12, 0, 13, 0)))

	moved, err := s.Move(ctx, b.ID, Span(10, 30, 11, 30), Base)
	if err != nil {
		t.Fatalf("Move() overlapping only itself error = %v", err)
	}
	if !moved.Interval.Start.Equal(At(10, 30)) {
		t.Errorf("moved start = %s", moved.Interval.Start)
	}

	if _, err := s.Move(ctx, b.ID, Span(12, 30, 13, 30), Base); !errors.Is(err, intervals.ErrConflict) {
		t.Errorf("Move() onto another booking error = %v, want ErrConflict", err)
	}
	if _, err := s.Move(ctx, "missing", Span(15, 0, 16, 0), Base); !errors.Is(err, intervals.ErrNotFound) {
		t.Errorf("Move(missing) error = %v, want ErrNotFound", err)
	}

	gone := NewBooking("adv-b", "", Span(14, 0, 15, 0))
	mustCommit(t, s, gone)
	if _, err := s.Cancel(ctx, gone.ID, Base); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if _, err := s.Move(ctx, gone.ID, Span(15, 0, 16, 0), Base); !errors.Is(err, intervals.ErrNotConfirmed) {
		t.Errorf("Move(cancelled) error = %v, want ErrNotConfirmed", err)
	}
	if stored, err := s.GetByID(ctx, gone.ID); err != nil || !stored.Interval.Start.Equal(At(14, 0)) || stored.IsConfirmed() {
		t.Errorf("cancelled booking after Move = %+v, %v; want unchanged", stored, err)
	}

	stored, err := s.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !stored.Interval.Start.Equal(At(10, 30)) || !stored.Interval.End.Equal(At(11, 30)) {
		t.Errorf("stored interval = %+v", stored.Interval)
	}
}

func testLookup(t *testing.T, s intervals.Backend) {
	ctx := context.Background()
	b := NewBooking("adv-a", "", Span(10, 0, 11, 0))
	b.ClientContact.Phone = "+16502530000"
	mustCommit(t, s, b)

	got, err := s.GetByToken(ctx, b.CancelToken)
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if got.ID != b.ID || got.RoomID != "" || got.ClientContact.Phone != b.ClientContact.Phone {
		t.Errorf("GetByToken() = %+v", got)
	}
	if !got.Interval.Start.Equal(b.Interval.Start) || !got.Interval.End.Equal(b.Interval.End) {
		t.Errorf("interval = %+v, want %+v", got.Interval, b.Interval)
	}
	if _, err := s.GetByToken(ctx, "nope"); !errors.Is(err, intervals.ErrNotFound) {
		t.Errorf("GetByToken(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetByID(ctx, "nope"); !errors.Is(err, intervals.ErrNotFound) {
		t.Errorf("GetByID(unknown) error = %v, want ErrNotFound", err)
	}
}

func testCatalog(t *testing.T, s intervals.Backend) {
	ctx := context.Background()
	et := model.EventType{ID: "consult", Title: "Consultation", DurationMinutes: 60, GroupID: "g1",
		IsRoundRobin: true, BookingHorizonMonths: 3, ModificationCutoffHours: 24, Site: "HQ", RequiresRoom: true}
	for _, a := range []model.Advisor{{ID: "adv-c", Name: "C"}, {ID: "adv-a", Name: "A"}, {ID: "adv-b", Name: "B"}} {
		if err := s.SaveAdvisor(ctx, a); err != nil {
			t.Fatalf("SaveAdvisor() error = %v", err)
		}
	}
	if err := s.SaveEventType(ctx, et); err != nil {
		t.Fatalf("SaveEventType() error = %v", err)
	}
	if err := s.SaveGroup(ctx, model.Group{ID: "g1", Name: "Desk", AdvisorIDs: []string{"adv-b", "adv-c", "adv-a"}}); err != nil {
		t.Fatalf("SaveGroup() error = %v", err)
	}
	for _, r := range []model.Room{
		{ID: "r-hq-2", Name: "Two", Site: "HQ", Position: 2},
		{ID: "r-br-1", Name: "Branch", Site: "BR", Position: 1},
		{ID: "r-hq-1", Name: "One", Site: "HQ", Position: 1, ContactAddress: "one@rooms.example"},
	} {
		if err := s.SaveRoom(ctx, r); err != nil {
			t.Fatalf("SaveRoom() error = %v", err)
		}
	}

	gotET, err := s.EventType(ctx, "consult")
	if err != nil || *gotET != et {
		t.Errorf("EventType() = %+v, %v", gotET, err)
	}
	if _, err := s.EventType(ctx, "missing"); !errors.Is(err, intervals.ErrNotFound) {
		t.Errorf("EventType(missing) error = %v", err)
	}

	advisors, err := s.GroupAdvisors(ctx, "g1")
	if err != nil {
		t.Fatalf("GroupAdvisors() error = %v", err)
	}
	if len(advisors) != 3 || advisors[0].ID != "adv-b" || advisors[1].ID != "adv-c" || advisors[2].ID != "adv-a" {
		t.Errorf("GroupAdvisors() order = %+v", advisors)
	}
	g, err := s.Group(ctx, "g1")
	if err != nil || len(g.AdvisorIDs) != 3 || g.AdvisorIDs[0] != "adv-b" {
		t.Errorf("Group() = %+v, %v", g, err)
	}

	rooms, err := s.Rooms(ctx, "HQ")
	if err != nil {
		t.Fatalf("Rooms() error = %v", err)
	}
	if len(rooms) != 2 || rooms[0].ID != "r-hq-1" || rooms[1].ID != "r-hq-2" || !rooms[0].HasCalendar() {
		t.Errorf("Rooms(HQ) = %+v", rooms)
	}
	all, err := s.Rooms(ctx, "")
	if err != nil || len(all) != 3 {
		t.Errorf("Rooms(all) = %+v, %v", all, err)
	}

	tpl := model.WeeklyAvailabilityTemplate{ID: "t1", AdvisorID: "adv-a", Weekday: 1, StartTime: "09:00", EndTime: "17:00", Locked: true}
	if err := s.SaveTemplate(ctx, tpl); err != nil {
		t.Fatalf("SaveTemplate() error = %v", err)
	}
	tpls, err := s.Templates(ctx, "adv-a")
	if err != nil || len(tpls) != 1 || tpls[0] != tpl {
		t.Errorf("Templates() = %+v, %v", tpls, err)
	}
	if err := s.DeleteTemplate(ctx, "t1"); err != nil {
		t.Errorf("DeleteTemplate() error = %v", err)
	}
	if _, err := s.Template(ctx, "t1"); !errors.Is(err, intervals.ErrNotFound) {
		t.Errorf("Template(deleted) error = %v", err)
	}
	if err := s.DeleteTemplate(ctx, "t1"); !errors.Is(err, intervals.ErrNotFound) {
		t.Errorf("DeleteTemplate(missing) error = %v", err)
	}

	block := model.AvailabilityBlock{ID: "blk", AdvisorID: "adv-a", Interval: Span(18, 0, 20, 0)}
	if err := s.SaveAvailabilityBlock(ctx, block); err != nil {
		t.Fatalf("SaveAvailabilityBlock() error = %v", err)
	}
	blocks, err := s.AvailabilityBlocks(ctx, "adv-a", Span(19, 0, 21, 0))
	if err != nil || len(blocks) != 1 || !blocks[0].Interval.Start.Equal(At(18, 0)) {
		t.Errorf("AvailabilityBlocks() = %+v, %v", blocks, err)
	}
	none, err := s.AvailabilityBlocks(ctx, "adv-a", Span(20, 0, 21, 0))
	if err != nil || len(none) != 0 {
		t.Errorf("AvailabilityBlocks(after) = %+v, %v", none, err)
	}
}

func testCredentials(t *testing.T, s intervals.Backend) {
	ctx := context.Background()
	if err := s.SaveAdvisor(ctx, model.Advisor{ID: "adv-a", Name: "A"}); err != nil {
		t.Fatalf("SaveAdvisor() error = %v", err)
	}
	if _, err := s.Credential(ctx, "adv-a"); !errors.Is(err, intervals.ErrNotFound) {
		t.Errorf("Credential() before authorization error = %v, want ErrNotFound", err)
	}

	expires := Base.Add(time.Hour)
	if err := s.SaveCredential(ctx, "adv-a", model.Credential{AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: expires}); err != nil {
		t.Fatalf("SaveCredential() error = %v", err)
	}
	c, err := s.Credential(ctx, "adv-a")
	if err != nil {
		t.Fatalf("Credential() error = %v", err)
	}
	if c.AccessToken != "at-1" || c.RefreshToken != "rt-1" || !c.ExpiresAt.Equal(expires) {
		t.Errorf("Credential() = %+v", c)
	}

	a, err := s.Advisor(ctx, "adv-a")
	if err != nil || !a.HasCredential() {
		t.Errorf("Advisor() = %+v, %v", a, err)
	}
	// Re-saving catalog data without a credential keeps the stored one.
	if err := s.SaveAdvisor(ctx, model.Advisor{ID: "adv-a", Name: "Avery Renamed"}); err != nil {
		t.Fatalf("SaveAdvisor() error = %v", err)
	}
	a, err = s.Advisor(ctx, "adv-a")
	if err != nil || a.Name != "Avery Renamed" || !a.HasCredential() || a.Credential.RefreshToken != "rt-1" {
		t.Errorf("Advisor() after re-save = %+v, %v", a, err)
	}

	if err := s.SaveCredential(ctx, "missing", model.Credential{AccessToken: "x"}); !errors.Is(err, intervals.ErrNotFound) {
		t.Errorf("SaveCredential(missing) error = %v, want ErrNotFound", err)
	}
}
