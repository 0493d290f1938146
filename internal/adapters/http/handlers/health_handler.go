package handlers

import (
	"context"
	"net/http"
)

// Pinger expõe o teste de saúde do store compartilhado.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// NewHealthHandler reporta a saúde do serviço e da conexão com o store.
// Degradação não derruba o endpoint: o processo continua respondendo e o
// gate decide sozinho o que fazer sem store (fail-open/fail-closed).
func NewHealthHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "healthy", Store: "connected"}

		if store != nil {
			if err := store.Ping(r.Context()); err != nil {
				resp.Status = "degraded"
				resp.Store = "error"
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
