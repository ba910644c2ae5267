// Package calendar talks to the remote calendar API on behalf of advisors.
//
// Every call runs under its own deadline and is throttled by a shared rate
// limiter. Checks across several resources never abort each other; each
// resource gets its own Result.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bureau/pkg/client"
	"bureau/pkg/logger"
	"bureau/pkg/model"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	schedulePath     = "/me/calendar/getSchedule"
	calendarViewPath = "/me/calendarView"
	eventsPath       = "/me/events"

	// availabilityViewInterval is the slot size in minutes of the
	// availabilityView string. The answer is read from scheduleItems, so
	// it only has to be an accepted value.
	availabilityViewInterval = 15

	utcPreference = `outlook.timezone="UTC"`
)

type Options struct {
	BaseURL      string
	CallTimeout  time.Duration
	RateLimitRPS float64
	MaxParallel  int
}

// Result is the outcome of one free/busy check. Err is set when the remote
// answer could not be obtained; Free is meaningless in that case.
type Result struct {
	Free bool
	Err  error
}

// Available is the fail-closed reading of a Result.
func (r Result) Available() bool {
	return r.Err == nil && r.Free
}

// EventDetails carries what the booking alone does not know.
type EventDetails struct {
	Title string
	Room  *model.Room
}

type Gateway struct {
	http    *client.HttpClient
	tokens  *TokenManager
	limiter *rate.Limiter
	opts    Options
	log     *logger.Logger
}

func New(opts Options, tokens *TokenManager, log *logger.Logger) *Gateway {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	limit := rate.Inf
	burst := 1
	if opts.RateLimitRPS > 0 {
		limit = rate.Limit(opts.RateLimitRPS)
		burst = max(1, int(opts.RateLimitRPS))
	}
	return &Gateway{
		http:    client.NewHttpClient(strings.TrimRight(opts.BaseURL, "/"), opts.CallTimeout),
		tokens:  tokens,
		limiter: rate.NewLimiter(limit, burst),
		opts:    opts,
		log:     log,
	}
}

type sendFunc func(ctx context.Context, headers map[string]string) (*client.Response, error)

// call sends one authenticated request. A 401 forces a single refresh and
// retry; any other non-2xx answer is ErrRemoteUnavailable.
func (g *Gateway) call(ctx context.Context, advisorID, resource string, send sendFunc) (*client.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
	defer cancel()

	token, err := g.tokens.AccessToken(ctx, advisorID)
	if errors.Is(err, ErrNoCredential) {
		return nil, err
	}
	if err != nil {
		return nil, remoteErr(resource, "token: %v", err)
	}

	for attempt := 0; ; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, remoteErr(resource, "throttled: %v", err)
		}

		headers := client.BearerHeader(token)
		headers["Prefer"] = utcPreference

		resp, err := send(ctx, headers)
		if err != nil {
			return nil, remoteErr(resource, "%v", err)
		}
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			token, err = g.tokens.Refresh(ctx, advisorID, token)
			if err != nil {
				return nil, remoteErr(resource, "refresh: %v", err)
			}
			continue
		}
		if !resp.OK() {
			return nil, remoteErr(resource, "status %d", resp.StatusCode)
		}
		return resp, nil
	}
}

// IsResourceFree asks the remote calendar whether address is free over iv,
// using the principal advisor's credential. An empty address is local-only
// and reported free without any call.
func (g *Gateway) IsResourceFree(ctx context.Context, principalID, address string, iv model.TimeInterval) (bool, error) {
	if address == "" {
		return true, nil
	}

	body := scheduleRequest{
		Schedules:                []string{address},
		StartTime:                toGraphTime(iv.Start),
		EndTime:                  toGraphTime(iv.End),
		AvailabilityViewInterval: availabilityViewInterval,
	}
	resp, err := g.call(ctx, principalID, address, func(ctx context.Context, h map[string]string) (*client.Response, error) {
		return g.http.POST(ctx, schedulePath, body, h)
	})
	if errors.Is(err, ErrNoCredential) {
		return false, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	if err != nil {
		return false, err
	}

	var out scheduleResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return false, remoteErr(address, "decode: %v", err)
	}
	return scheduleFree(out, address, iv)
}

func scheduleFree(out scheduleResponse, address string, iv model.TimeInterval) (bool, error) {
	var info *scheduleInformation
	for i := range out.Value {
		if strings.EqualFold(out.Value[i].ScheduleID, address) {
			info = &out.Value[i]
			break
		}
	}
	if info == nil {
		return false, remoteErr(address, "schedule missing from response")
	}
	if info.Error != nil {
		return false, remoteErr(address, "%s %s", info.Error.ResponseCode, info.Error.Message)
	}

	for _, item := range info.ScheduleItems {
		if isFreeStatus(item.Status) {
			continue
		}
		busy, err := parseSpan(item.Start, item.End)
		if err != nil {
			return false, remoteErr(address, "bad item time: %v", err)
		}
		if busy.Overlaps(iv) {
			return false, nil
		}
	}
	return true, nil
}

func parseSpan(start, end dateTimeTimeZone) (model.TimeInterval, error) {
	s, err := start.parse()
	if err != nil {
		return model.TimeInterval{}, err
	}
	e, err := end.parse()
	if err != nil {
		return model.TimeInterval{}, err
	}
	return model.TimeInterval{Start: s, End: e}, nil
}

// CheckRooms checks every room in parallel. Results are index-aligned with
// rooms.
func (g *Gateway) CheckRooms(ctx context.Context, principalID string, rooms []model.Room, iv model.TimeInterval) []Result {
	results := make([]Result, len(rooms))
	eg := &errgroup.Group{}
	eg.SetLimit(g.opts.MaxParallel)

	for i, room := range rooms {
		if !room.HasCalendar() {
			results[i] = Result{Free: true}
			continue
		}
		eg.Go(func() error {
			free, err := g.IsResourceFree(ctx, principalID, room.ContactAddress, iv)
			if err != nil {
				g.log.Warn("Room free/busy check failed", "room_id", room.ID, "advisor_id", principalID, "error", err)
			}
			results[i] = Result{Free: free, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

var errFound = errors.New("free resource found")

// HasAnyFreeResource reports whether at least one room is free. Remaining
// checks are cancelled once one answers free. It is the yes/no form of
// CheckRooms for callers that do not pick a room; the resolver needs the
// index-aligned results to choose one.
func (g *Gateway) HasAnyFreeResource(ctx context.Context, principalID string, rooms []model.Room, iv model.TimeInterval) bool {
	for _, room := range rooms {
		if !room.HasCalendar() {
			return true
		}
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.MaxParallel)
	for _, room := range rooms {
		eg.Go(func() error {
			free, err := g.IsResourceFree(gctx, principalID, room.ContactAddress, iv)
			if err != nil {
				if gctx.Err() == nil {
					g.log.Warn("Room free/busy check failed", "room_id", room.ID, "error", err)
				}
				return nil
			}
			if free {
				return errFound
			}
			return nil
		})
	}
	return errors.Is(eg.Wait(), errFound)
}

// IsAdvisorFree reads the advisor's own calendar. An advisor who never
// authorized calendar access is local-only and reported free.
func (g *Gateway) IsAdvisorFree(ctx context.Context, advisorID string, iv model.TimeInterval) (bool, error) {
	q := url.Values{}
	q.Set("startDateTime", iv.Start.UTC().Format(time.RFC3339))
	q.Set("endDateTime", iv.End.UTC().Format(time.RFC3339))
	q.Set("$select", "id,showAs,isCancelled,start,end")
	path := calendarViewPath + "?" + q.Encode()

	resp, err := g.call(ctx, advisorID, advisorID, func(ctx context.Context, h map[string]string) (*client.Response, error) {
		return g.http.GET(ctx, path, h)
	})
	if errors.Is(err, ErrNoCredential) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	var out calendarViewResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return false, remoteErr(advisorID, "decode: %v", err)
	}
	for _, ev := range out.Value {
		if ev.IsCancelled || isFreeStatus(ev.ShowAs) {
			continue
		}
		busy, err := parseSpan(ev.Start, ev.End)
		if err != nil {
			return false, remoteErr(advisorID, "bad event time: %v", err)
		}
		if busy.Overlaps(iv) {
			return false, nil
		}
	}
	return true, nil
}

// CheckAdvisors checks every advisor's calendar in parallel. Results are
// index-aligned with advisors.
func (g *Gateway) CheckAdvisors(ctx context.Context, advisors []model.Advisor, iv model.TimeInterval) []Result {
	results := make([]Result, len(advisors))
	eg := &errgroup.Group{}
	eg.SetLimit(g.opts.MaxParallel)

	for i, a := range advisors {
		eg.Go(func() error {
			free, err := g.IsAdvisorFree(ctx, a.ID, iv)
			if err != nil {
				g.log.Warn("Advisor free/busy check failed", "advisor_id", a.ID, "error", err)
			}
			results[i] = Result{Free: free, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// HasAnyAvailableAdvisor reports whether one advisor in pool is free. Like
// HasAnyFreeResource it answers yes/no only; use CheckAdvisors to select.
func (g *Gateway) HasAnyAvailableAdvisor(ctx context.Context, pool []model.Advisor, iv model.TimeInterval) bool {
	for _, r := range g.CheckAdvisors(ctx, pool, iv) {
		if r.Available() {
			return true
		}
	}
	return false
}

// RegisterEvent writes the booking into the advisor's calendar. It reports
// false on any failure and never panics past its boundary. The transactionId
// is derived from the booking and its start so a retried registration is not
// duplicated while a moved booking still gets its own event.
func (g *Gateway) RegisterEvent(ctx context.Context, advisor model.Advisor, b *model.Booking, details EventDetails) (ok bool) {
	log := g.log.With("booking_id", b.ID, "advisor_id", advisor.ID)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Calendar registration panicked", "panic", r)
			ok = false
		}
	}()

	body := eventRequest{
		Subject:       details.Title,
		Body:          itemBody{ContentType: "text", Content: contactSummary(b.ClientContact)},
		Start:         toGraphTime(b.Interval.Start),
		End:           toGraphTime(b.Interval.End),
		TransactionID: transactionID(b),
		ShowAs:        "busy",
	}
	if b.ClientContact.Email != "" {
		body.Attendees = append(body.Attendees, attendee{
			Type:         "required",
			EmailAddress: emailAddress{Address: b.ClientContact.Email, Name: b.ClientContact.Name},
		})
	}
	if details.Room != nil {
		body.Location = &location{DisplayName: details.Room.Name, LocationType: "conferenceRoom"}
		if details.Room.HasCalendar() {
			body.Attendees = append(body.Attendees, attendee{
				Type:         "resource",
				EmailAddress: emailAddress{Address: details.Room.ContactAddress, Name: details.Room.Name},
			})
		}
	}

	_, err := g.call(ctx, advisor.ID, advisor.ID, func(ctx context.Context, h map[string]string) (*client.Response, error) {
		return g.http.POST(ctx, eventsPath, body, h)
	})
	if err != nil {
		log.Warn("Calendar registration failed", "error", err)
		return false
	}
	log.Info("Calendar event registered")
	return true
}

func transactionID(b *model.Booking) string {
	return fmt.Sprintf("%s-%d", b.ID, b.Interval.Start.Unix())
}

func contactSummary(c model.ClientContact) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Client: %s\nEmail: %s\n", c.Name, c.Email)
	if c.Phone != "" {
		fmt.Fprintf(&sb, "Phone: %s\n", c.Phone)
	}
	if c.Notes != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", c.Notes)
	}
	return sb.String()
}
