package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"payoff/internal/log"
)

type observation struct {
	method, route string
	code          int
}

func newTestMiddleware(buf *bytes.Buffer, seen *[]observation) *Middleware {
	logger := log.New(log.Config{Component: log.ComponentHTTP, Output: buf})
	return NewMiddleware(logger,
		func(*http.Request) string { return "10.0.0.1" },
		func(method, route string, code int, _ time.Duration) {
			*seen = append(*seen, observation{method, route, code})
		})
}

func TestMiddleware_RequestID(t *testing.T) {
	var buf bytes.Buffer
	var seen []observation
	m := newTestMiddleware(&buf, &seen)

	var fromCtx string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = GetRequestID(r.Context())
		log.FromContext(r.Context()).Info("Inside handler")
	}))

	tests := []struct {
		name     string
		inbound  string
		generate bool
	}{
		{"generated", "", true},
		{"reused", "abc-123", false},
		{"rejected", "bad id with spaces", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			r := httptest.NewRequest(http.MethodGet, "/debts", nil)
			if tt.inbound != "" {
				r.Header.Set(HeaderRequestID, tt.inbound)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)

			got := rec.Header().Get(HeaderRequestID)
			if got != fromCtx {
				t.Errorf("header %q differs from context %q", got, fromCtx)
			}
			if tt.generate {
				if _, err := uuid.Parse(got); err != nil {
					t.Errorf("expected a generated uuid, got %q", got)
				}
			} else if got != tt.inbound {
				t.Errorf("request id = %q, want %q", got, tt.inbound)
			}
			if !strings.Contains(buf.String(), "request_id="+got) {
				t.Errorf("handler log should carry the request id: %s", buf.String())
			}
		})
	}
}

func TestMiddleware_ObservesRoute(t *testing.T) {
	var buf bytes.Buffer
	var seen []observation
	m := newTestMiddleware(&buf, &seen)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /runs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := m.Middleware(mux)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/42", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	want := []observation{
		{http.MethodGet, "GET /runs/{id}", http.StatusNotFound},
		{http.MethodGet, "unmatched", http.StatusNotFound},
	}
	if len(seen) != len(want) {
		t.Fatalf("observations = %+v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("observation %d = %+v, want %+v", i, seen[i], want[i])
		}
	}
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("404 should be logged at warn: %s", buf.String())
	}
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	_, _ = rw.Write([]byte("ok"))
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 once the body started", rw.statusCode)
	}
}
