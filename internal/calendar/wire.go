package calendar

import (
	"strings"
	"time"
)

const graphTimeFormat = "2006-01-02T15:04:05"

type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

func toGraphTime(t time.Time) dateTimeTimeZone {
	return dateTimeTimeZone{DateTime: t.UTC().Format(graphTimeFormat), TimeZone: "UTC"}
}

// parse reads a Graph timestamp. Fractional seconds are accepted by
// time.Parse even though the layout omits them.
func (d dateTimeTimeZone) parse() (time.Time, error) {
	loc := time.UTC
	if d.TimeZone != "" && !strings.EqualFold(d.TimeZone, "UTC") {
		if l, err := time.LoadLocation(d.TimeZone); err == nil {
			loc = l
		}
	}
	return time.ParseInLocation(graphTimeFormat, d.DateTime, loc)
}

type scheduleRequest struct {
	Schedules                []string         `json:"schedules"`
	StartTime                dateTimeTimeZone `json:"startTime"`
	EndTime                  dateTimeTimeZone `json:"endTime"`
	AvailabilityViewInterval int              `json:"availabilityViewInterval"`
}

type scheduleItem struct {
	Status string           `json:"status"`
	Start  dateTimeTimeZone `json:"start"`
	End    dateTimeTimeZone `json:"end"`
}

type scheduleError struct {
	Message      string `json:"message"`
	ResponseCode string `json:"responseCode"`
}

type scheduleInformation struct {
	ScheduleID    string         `json:"scheduleId"`
	ScheduleItems []scheduleItem `json:"scheduleItems"`
	Error         *scheduleError `json:"error,omitempty"`
}

type scheduleResponse struct {
	Value []scheduleInformation `json:"value"`
}

type calendarViewEvent struct {
	ID          string           `json:"id"`
	ShowAs      string           `json:"showAs"`
	IsCancelled bool             `json:"isCancelled"`
	Start       dateTimeTimeZone `json:"start"`
	End         dateTimeTimeZone `json:"end"`
}

type calendarViewResponse struct {
	Value []calendarViewEvent `json:"value"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type attendee struct {
	Type         string       `json:"type"`
	EmailAddress emailAddress `json:"emailAddress"`
}

type location struct {
	DisplayName  string `json:"displayName"`
	LocationType string `json:"locationType,omitempty"`
}

type eventRequest struct {
	Subject       string           `json:"subject"`
	Body          itemBody         `json:"body"`
	Start         dateTimeTimeZone `json:"start"`
	End           dateTimeTimeZone `json:"end"`
	Location      *location        `json:"location,omitempty"`
	Attendees     []attendee       `json:"attendees,omitempty"`
	TransactionID string           `json:"transactionId,omitempty"`
	ShowAs        string           `json:"showAs"`
}

// freeStatuses do not block a slot.
var freeStatuses = map[string]bool{
	"free":             true,
	"workingelsewhere": true,
}

func isFreeStatus(status string) bool {
	return freeStatuses[strings.ToLower(status)]
}
