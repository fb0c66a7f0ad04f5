package httpserver

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID(t *testing.T) {
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestIDFromContext(r.Context()) == "" {
			t.Error("expected request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates request ID when not provided", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		requestID := rec.Header().Get("X-Request-ID")
		if !strings.HasPrefix(requestID, "req-") || len(requestID) != len("req-")+26 {
			t.Errorf("expected req-<ulid>, got %s", requestID)
		}
	})

	t.Run("preserves existing request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", "existing-id-123")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got != "existing-id-123" {
			t.Errorf("expected 'existing-id-123', got %s", got)
		}
	})
}

func TestChain(t *testing.T) {
	var order []int
	step := func(n int) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, n)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			order = append(order, 4)
			w.WriteHeader(http.StatusOK)
		}),
		step(1), step(2), step(3),
	)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))

	expected := []int{1, 2, 3, 4}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d", len(expected), len(order))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("expected order[%d] = %d, got %d", i, v, order[i])
		}
	}
}

func TestRateLimit(t *testing.T) {
	send := func(h http.Handler, addr string) int {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("limits requests from same IP", func(t *testing.T) {
		handler := RateLimit(2)(okHandler())
		for i := 0; i < 2; i++ {
			if code := send(handler, "10.0.0.99:12345"); code != http.StatusOK {
				t.Errorf("request %d: expected status 200, got %d", i+1, code)
			}
		}
		if code := send(handler, "10.0.0.99:12345"); code != http.StatusTooManyRequests {
			t.Errorf("expected status 429, got %d", code)
		}
	})

	t.Run("different IPs have separate limits", func(t *testing.T) {
		handler := RateLimit(1)(okHandler())
		if code := send(handler, "192.168.100.1:12345"); code != http.StatusOK {
			t.Errorf("first IP: expected status 200, got %d", code)
		}
		if code := send(handler, "192.168.100.2:12345"); code != http.StatusOK {
			t.Errorf("second IP: expected status 200, got %d", code)
		}
	})

	t.Run("tokens refill over time", func(t *testing.T) {
		handler := RateLimit(10)(okHandler())
		for i := 0; i < 10; i++ {
			send(handler, "10.0.0.88:12345")
		}
		if code := send(handler, "10.0.0.88:12345"); code != http.StatusTooManyRequests {
			t.Errorf("expected status 429, got %d", code)
		}

		time.Sleep(200 * time.Millisecond)

		if code := send(handler, "10.0.0.88:12345"); code != http.StatusOK {
			t.Errorf("after refill: expected status 200, got %d", code)
		}
	})

	t.Run("rejection carries an error code", func(t *testing.T) {
		handler := RateLimit(1)(okHandler())
		send(handler, "10.0.0.77:1")

		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "10.0.0.77:1"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Header().Get("X-Error-Code") != "PN-SYS-4290" || rec.Header().Get("Retry-After") != "1" {
			t.Errorf("headers = %v", rec.Header())
		}
	})
}

func TestRateLimitConcurrency(t *testing.T) {
	handler := RateLimit(100)(okHandler())

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount, failCount := 0, 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			mu.Lock()
			if rec.Code == http.StatusOK {
				successCount++
			} else {
				failCount++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if successCount == 0 {
		t.Error("expected some successful requests")
	}
	if failCount == 0 {
		t.Error("expected some rate-limited requests")
	}
}

func TestRecover(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("recovers from panic", func(t *testing.T) {
		handler := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("test panic")
		}))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["code"] != "PN-SYS-5000" {
			t.Errorf("code = %q", body["code"])
		}
	})

	t.Run("passes through normal requests", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Recover(logger)(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), RequestID(), AccessLog(logger))

	req := httptest.NewRequest("GET", "/missing", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"level=WARN", "request_id=req-abc", "path=/missing", "status=404"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"X-Forwarded-For", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "192.168.1.1:12345", "10.0.0.1"},
		{"X-Real-IP", map[string]string{"X-Real-IP": "10.0.0.1"}, "192.168.1.1:12345", "10.0.0.1"},
		{"RemoteAddr", nil, "192.168.1.1:12345", "192.168.1.1"},
		{"IPv6 RemoteAddr", nil, "[::1]:8080", "::1"},
		{"RemoteAddr without port", nil, "192.168.1.1", "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			req.RemoteAddr = tt.remote
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	wrapped.WriteHeader(http.StatusCreated)

	if wrapped.statusCode != http.StatusCreated {
		t.Errorf("expected status 201, got %d", wrapped.statusCode)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("underlying recorder status = %d", rec.Code)
	}
}
