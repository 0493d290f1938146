package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/8848man/gemini-api-server/internal/core/domain"
	"github.com/8848man/gemini-api-server/internal/core/ports"
)

// maxFingerprintBytes limita quanto do corpo entra no fingerprint; o corpo
// completo continua disponível para o handler.
const maxFingerprintBytes = 64 << 10

// NewAdmissionMiddleware submete cada requisição ao gate de admissão e
// traduz o veredito em resposta HTTP. Em caso de admissão, a liberação da
// vaga de concorrência é garantida por defer em todo caminho de saída,
// inclusive panic do handler e desconexão do cliente.
func NewAdmissionMiddleware(gate ports.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate == nil {
				next.ServeHTTP(w, r)
				return
			}

			identity := ClientIdentity(r)
			route := r.Method + " " + r.URL.Path

			payload, err := bufferPayload(r)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}

			decision, err := gate.Admit(r.Context(), identity, route, payload)
			if err != nil {
				log.Printf("admission gate failed for %s: %v", route, err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			switch decision.Verdict {
			case domain.VerdictAllowed:
				defer decision.Release()
				writeRateHeaders(w, decision)
				next.ServeHTTP(w, r)
			case domain.VerdictDeniedDuplicate:
				writeJSONError(w, http.StatusConflict, map[string]any{
					"error": "Duplicate request detected. Please wait before retrying.",
				})
			case domain.VerdictDeniedRateLimited:
				w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				writeJSONError(w, http.StatusTooManyRequests, map[string]any{
					"error":       "Rate limit exceeded",
					"retry_after": decision.RetryAfterSeconds,
					"limit":       decision.Limit,
				})
			case domain.VerdictDeniedConcurrency:
				writeJSONError(w, http.StatusTooManyRequests, map[string]any{
					"error":          "Too many concurrent requests",
					"max_concurrent": decision.Limit,
				})
			default:
				writeJSONError(w, http.StatusServiceUnavailable, map[string]any{
					"error": "Admission temporarily unavailable",
				})
			}
		})
	}
}

// bufferPayload lê o corpo para o fingerprint e o devolve à requisição.
// Retorna nil para requisições sem corpo, o que dispensa o check de
// duplicata no gate.
func bufferPayload(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFingerprintBytes))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))

	return body, nil
}

func writeRateHeaders(w http.ResponseWriter, decision domain.Decision) {
	if decision.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
}

func writeJSONError(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
