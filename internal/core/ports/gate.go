// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"

	"github.com/8848man/gemini-api-server/internal/core/domain"
)

// Gate é o ponto de entrada único de admissão consumido pela camada HTTP.
//
// route participa do fingerprint de duplicata (método + caminho), de modo que
// o mesmo corpo enviado a endpoints diferentes não colide. payload nil marca
// uma requisição sem corpo, que nunca sofre supressão de duplicata.
type Gate interface {
	Admit(ctx context.Context, identity, route string, payload []byte) (domain.Decision, error)
}
