package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type mockUserCounter struct {
	count int
	err   error
}

func (m *mockUserCounter) Count(ctx context.Context) (int, error) {
	return m.count, m.err
}

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name        string
		counter     *mockUserCounter
		devMode     bool
		wantStatus  int
		wantMessage string
		wantDetail  bool
	}{
		{
			name:        "healthy",
			counter:     &mockUserCounter{count: 42},
			wantStatus:  http.StatusOK,
			wantMessage: "Database connection healthy",
		},
		{
			name:        "database down",
			counter:     &mockUserCounter{err: errors.New("dial tcp: connection refused")},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Database connection failed",
		},
		{
			name:        "database down in development",
			counter:     &mockUserCounter{err: errors.New("dial tcp: connection refused")},
			devMode:     true,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Database connection failed",
			wantDetail:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.counter, tt.devMode)

			w := httptest.NewRecorder()
			h.Health(w, httptest.NewRequest(http.MethodGet, "/api/auth/health", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			env := decodeEnvelope(t, w)
			if env.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", env.Message, tt.wantMessage)
			}
			if env.Success != (tt.wantStatus == http.StatusOK) {
				t.Errorf("success = %v", env.Success)
			}

			hasDetail := strings.Contains(string(env.Errors), "connection refused")
			if hasDetail != tt.wantDetail {
				t.Errorf("errors = %s, want detail = %v", env.Errors, tt.wantDetail)
			}

			if tt.wantStatus == http.StatusOK {
				var data map[string]int
				if err := json.Unmarshal(env.Data, &data); err != nil {
					t.Fatalf("failed to decode data: %v", err)
				}
				if data["userCount"] != tt.counter.count {
					t.Errorf("userCount = %d, want %d", data["userCount"], tt.counter.count)
				}
			}
		})
	}
}
