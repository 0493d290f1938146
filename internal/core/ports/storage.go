// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"
)

// Storage expõe as primitivas atômicas do store compartilhado usadas pelos
// três mecanismos de admissão. Todas as operações devem ser atômicas no
// próprio store: os processos do servidor não compartilham memória entre si
// e o store é o único ponto de sincronização.
type Storage interface {
	// IncrementWindow incrementa atomicamente o contador da chave, aplicando
	// o TTL da janela na criação. Retorna o valor pós-incremento e o tempo
	// restante até a janela expirar.
	IncrementWindow(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)

	// AcquireSlot incrementa o contador de vagas apenas se o resultado não
	// ultrapassar max; um incremento acima do teto é desfeito dentro da mesma
	// operação atômica. O TTL de segurança é aplicado quando a chave nasce.
	AcquireSlot(ctx context.Context, key string, max int, ttl time.Duration) (acquired bool, err error)

	// ReleaseSlot decrementa o contador de vagas, removendo a chave ao chegar
	// a zero e renovando o TTL de segurança caso contrário. Liberar uma chave
	// já expirada é um no-op silencioso.
	ReleaseSlot(ctx context.Context, key string, ttl time.Duration) error

	// SetIfAbsent grava a chave sentinela com TTL somente se ela ainda não
	// existir. Retorna true quando a gravação aconteceu.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (wasSet bool, err error)
}
