package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// NewThrottleMiddleware aplica um token bucket global do processo na frente
// do gate de admissão. É um guarda grosso contra rajadas que nem valem uma
// ida ao store; o controle por identidade acontece depois, no gate.
func NewThrottleMiddleware(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSONError(w, http.StatusTooManyRequests, map[string]any{
					"error": "Server is overloaded, slow down",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
