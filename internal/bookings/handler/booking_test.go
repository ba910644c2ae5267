package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "bureau/pkg/errors"
	"bureau/pkg/logger"
	"bureau/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// Mock service for testing
type mockBookingService struct {
	bookSlotFunc          func(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	checkAvailabilityFunc func(ctx context.Context, q *model.AvailabilityQuery) (*model.AvailabilityResult, error)
	getByTokenFunc        func(ctx context.Context, token string) (*model.Booking, error)
	cancelFunc            func(ctx context.Context, token string) (*model.Booking, error)
	rescheduleFunc        func(ctx context.Context, token string, req *model.RescheduleRequest) (*model.Booking, error)
	adminCancelFunc       func(ctx context.Context, id string) (*model.Booking, error)
}

func (m *mockBookingService) BookSlot(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	if m.bookSlotFunc != nil {
		return m.bookSlotFunc(ctx, req)
	}
	return &model.Booking{}, nil
}

func (m *mockBookingService) CheckAvailability(ctx context.Context, q *model.AvailabilityQuery) (*model.AvailabilityResult, error) {
	if m.checkAvailabilityFunc != nil {
		return m.checkAvailabilityFunc(ctx, q)
	}
	return &model.AvailabilityResult{}, nil
}

func (m *mockBookingService) GetByToken(ctx context.Context, token string) (*model.Booking, error) {
	if m.getByTokenFunc != nil {
		return m.getByTokenFunc(ctx, token)
	}
	return &model.Booking{}, nil
}

func (m *mockBookingService) Cancel(ctx context.Context, token string) (*model.Booking, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, token)
	}
	return &model.Booking{}, nil
}

func (m *mockBookingService) Reschedule(ctx context.Context, token string, req *model.RescheduleRequest) (*model.Booking, error) {
	if m.rescheduleFunc != nil {
		return m.rescheduleFunc(ctx, token, req)
	}
	return &model.Booking{}, nil
}

func (m *mockBookingService) AdminCancel(ctx context.Context, id string) (*model.Booking, error) {
	if m.adminCancelFunc != nil {
		return m.adminCancelFunc(ctx, id)
	}
	return &model.Booking{}, nil
}

func (m *mockBookingService) Wait() {}

func newRouter(svc *mockBookingService) *httprouter.Router {
	router := httprouter.New()
	NewBookingHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return resp.Code
}

func TestCreate(t *testing.T) {
	start := time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "created",
			body:       `{"event_type_id":"intro","advisor_id":"adv-a","start":"2030-03-04T10:00:00Z","client_contact":{"name":"Ada","email":"ada@example.com"}}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed body",
			body:       `{"event_type_id":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.CodeInvalidInput,
		},
		{
			name:       "unknown field",
			body:       `{"event_type_id":"intro","end":"2030-03-04T11:00:00Z"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.CodeInvalidInput,
		},
		{
			name:       "no availability",
			body:       `{"event_type_id":"intro","start":"2030-03-04T10:00:00Z","client_contact":{"name":"Ada","email":"ada@example.com"}}`,
			serviceErr: apperrors.NoAvailability(),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeNoAvailability,
		},
		{
			name:       "slot taken",
			body:       `{"event_type_id":"intro","start":"2030-03-04T10:00:00Z","client_contact":{"name":"Ada","email":"ada@example.com"}}`,
			serviceErr: apperrors.SlotTaken(errors.New("overlap")),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var received *model.BookingRequest
			svc := &mockBookingService{
				bookSlotFunc: func(_ context.Context, req *model.BookingRequest) (*model.Booking, error) {
					received = req
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &model.Booking{ID: "b-1", CancelToken: "tok", Status: model.BookingStatusConfirmed}, nil
				},
			}

			w := serve(newRouter(svc), http.MethodPost, "/api/v1/bookings", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCode != "" {
				if got := errorCode(t, w); got != tt.wantCode {
					t.Errorf("code = %s, want %s", got, tt.wantCode)
				}
				return
			}

			if !received.Start.Equal(start) || received.ClientContact.Email != "ada@example.com" {
				t.Errorf("received = %+v", received)
			}
			var resp struct {
				Data model.Booking `json:"data"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Data.CancelToken != "tok" {
				t.Errorf("cancel token = %q", resp.Data.CancelToken)
			}
		})
	}
}

func TestTokenRoutes(t *testing.T) {
	var gotToken string
	svc := &mockBookingService{
		getByTokenFunc: func(_ context.Context, token string) (*model.Booking, error) {
			gotToken = token
			return &model.Booking{ID: "b-1"}, nil
		},
		cancelFunc: func(_ context.Context, token string) (*model.Booking, error) {
			gotToken = token
			return nil, apperrors.CutoffExceeded(time.Date(2030, 3, 3, 10, 0, 0, 0, time.UTC))
		},
		rescheduleFunc: func(_ context.Context, token string, req *model.RescheduleRequest) (*model.Booking, error) {
			gotToken = token
			return &model.Booking{ID: "b-1", Interval: model.TimeInterval{Start: req.Start}}, nil
		},
	}
	router := newRouter(svc)

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"get", http.MethodGet, "", http.StatusOK},
		{"cancel after cutoff", http.MethodDelete, "", http.StatusForbidden},
		{"reschedule", http.MethodPatch, `{"start":"2030-03-04T12:00:00Z"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotToken = ""
			w := serve(router, tt.method, "/api/v1/bookings/token/abc_123", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if gotToken != "abc_123" {
				t.Errorf("token = %q", gotToken)
			}
		})
	}
}

func TestCancelAndAdminCancel_NoContent(t *testing.T) {
	var adminID string
	svc := &mockBookingService{
		adminCancelFunc: func(_ context.Context, id string) (*model.Booking, error) {
			adminID = id
			return &model.Booking{ID: id, Status: model.BookingStatusCancelled}, nil
		},
	}
	router := newRouter(svc)

	if w := serve(router, http.MethodDelete, "/api/v1/bookings/token/tok", ""); w.Code != http.StatusNoContent {
		t.Errorf("cancel status = %d", w.Code)
	}
	if w := serve(router, http.MethodDelete, "/api/v1/admin/bookings/b-9", ""); w.Code != http.StatusNoContent {
		t.Errorf("admin cancel status = %d", w.Code)
	}
	if adminID != "b-9" {
		t.Errorf("admin id = %q", adminID)
	}
}

func TestCheckAvailability(t *testing.T) {
	svc := &mockBookingService{
		checkAvailabilityFunc: func(_ context.Context, q *model.AvailabilityQuery) (*model.AvailabilityResult, error) {
			return &model.AvailabilityResult{Available: true, AdvisorID: "adv-" + q.AdvisorID, Start: q.Start}, nil
		},
	}

	w := serve(newRouter(svc), http.MethodPost, "/api/v1/availability", `{"event_type_id":"intro","advisor_id":"a","start":"2030-03-04T10:00:00Z"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	var resp struct {
		Data model.AvailabilityResult `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Data.Available || resp.Data.AdvisorID != "adv-a" {
		t.Errorf("result = %+v", resp.Data)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
	}{
		{"ready", nil, http.StatusOK},
		{"store down", errors.New("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := httprouter.New()
			NewHealthHandler(stubPinger{err: tt.pingErr}, logger.Discard()).RegisterRoutes(router)

			if w := serve(router, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
				t.Errorf("health status = %d", w.Code)
			}
			if w := serve(router, http.MethodGet, "/ready", ""); w.Code != tt.wantStatus {
				t.Errorf("ready status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
