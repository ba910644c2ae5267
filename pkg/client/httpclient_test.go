package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHttpClient_POST(t *testing.T) {
	var gotAuth, gotType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"evt-1"}`))
	}))
	defer server.Close()

	c := NewHttpClient(server.URL, time.Second)
	resp, err := c.POST(context.Background(), "/events", map[string]string{"subject": "hi"}, BearerHeader("tok"))
	if err != nil {
		t.Fatalf("POST() error = %v", err)
	}
	if !resp.OK() || resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotBody != `{"subject":"hi"}` {
		t.Errorf("body = %q", gotBody)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := resp.DecodeJSON(&out); err != nil || out.ID != "evt-1" {
		t.Errorf("DecodeJSON() = %+v, %v", out, err)
	}
}

func TestHttpClient_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := NewHttpClient(server.URL, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.GET(ctx, "/slow", nil); err == nil {
		t.Fatal("GET() expected deadline error")
	}
}

func TestHttpClient_ResponseTooLarge(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"at limit", `{"id":"e-1"}    `, false},
		{"over limit", `{"id":"evt-12345"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewHttpClient(server.URL, time.Second)
			c.MaxResponseBytes = 16
			resp, err := c.GET(context.Background(), "/events", nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("GET() = %d bytes, want error", len(resp.Body))
				}
				return
			}
			if err != nil || string(resp.Body) != tt.body {
				t.Fatalf("GET() = %v, %v", resp, err)
			}
		})
	}
}
