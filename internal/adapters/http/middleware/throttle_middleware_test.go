package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestThrottle_DisabledWhenRPSZero(t *testing.T) {
	handler := NewThrottleMiddleware(0, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 100; i++ {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected pass-through with throttle disabled, got %d", recorder.Code)
		}
	}
}

func TestThrottle_RejectsBeyondBurst(t *testing.T) {
	// 1 token per 100s with burst 2: only the first two requests pass.
	handler := NewThrottleMiddleware(0.01, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/chat", nil))
		codes = append(codes, recorder.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("expected the burst to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected the third request to be throttled, got %v", codes)
	}
}
