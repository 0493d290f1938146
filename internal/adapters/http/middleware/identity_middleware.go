// Package middleware disponibiliza middlewares HTTP específicos da aplicação.
package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

type contextKey struct{ name string }

var identityContextKey = contextKey{"client-identity"}

// ClientIdentity retorna a identidade resolvida para a requisição, ou vazio
// quando o IdentityMiddleware não rodou.
func ClientIdentity(r *http.Request) string {
	identity, _ := r.Context().Value(identityContextKey).(string)
	return identity
}

// NewIdentityMiddleware resolve a identidade estável do cliente e a anexa ao
// contexto da requisição, na ordem: hash da API key, subject do JWT, IP.
//
// A verificação criptográfica de API key e JWT acontece antes desta camada;
// aqui o token já chegou aprovado e só extraímos dele um identificador.
func NewIdentityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), identityContextKey, resolveIdentity(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveIdentity(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get("X-API-Key")); apiKey != "" {
		sum := sha256.Sum256([]byte(apiKey))
		return "api_key:" + hex.EncodeToString(sum[:])[:12]
	}

	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			if sub := jwtSubject(strings.TrimSpace(token)); sub != "" {
				return "user:" + sub
			}
		}
	}

	return "ip:" + extractIP(r)
}

// jwtSubject extrai a claim sub do payload do token, sem validar assinatura.
func jwtSubject(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ""
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ""
	}

	var claims struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ""
	}
	return strings.TrimSpace(claims.Sub)
}

func extractIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
			return strings.TrimSpace(parts[0])
		}
	}

	xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if xRealIP != "" {
		return xRealIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil || host == "" {
		if r.RemoteAddr != "" {
			return strings.TrimSpace(r.RemoteAddr)
		}
		return "unknown"
	}
	return host
}
