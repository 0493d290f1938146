package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/8848man/gemini-api-server/internal/core/domain"
	"github.com/8848man/gemini-api-server/internal/core/ports"
)

// ConcurrencyLimiterService limita requisições simultâneas em voo por
// identidade usando um contador de vagas no store compartilhado.
//
// O TTL de segurança da chave é gravado na criação e renovado apenas pelo
// release explícito — nunca por atividade — para que a vaga de um processo
// que morreu seja recuperada após o período de graça em vez de vazar para
// sempre.
type ConcurrencyLimiterService struct {
	storage ports.Storage
	max     int
	slotTTL time.Duration
}

func NewConcurrencyLimiterService(storage ports.Storage, max int, slotTTL time.Duration) (*ConcurrencyLimiterService, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if max <= 0 {
		return nil, fmt.Errorf("max concurrent must be positive, got %d", max)
	}
	if slotTTL <= 0 {
		return nil, fmt.Errorf("slot ttl must be positive, got %s", slotTTL)
	}
	return &ConcurrencyLimiterService{storage: storage, max: max, slotTTL: slotTTL}, nil
}

// Max retorna o teto configurado de requisições simultâneas.
func (s *ConcurrencyLimiterService) Max() int { return s.max }

// Acquire tenta ocupar uma vaga para a identidade. A negação é imediata;
// ninguém fica bloqueado esperando outra requisição liberar.
//
// O release retornado é idempotente e desacoplado do contexto da requisição:
// mesmo que o chamador tenha sido cancelado, a devolução da vaga ainda
// precisa alcançar o store.
func (s *ConcurrencyLimiterService) Acquire(ctx context.Context, identity string) (domain.ReleaseFunc, bool, error) {
	key := slotKey(identity)

	acquired, err := s.storage.AcquireSlot(ctx, key, s.max, s.slotTTL)
	if err != nil {
		return nil, false, fmt.Errorf("slot acquire: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := s.storage.ReleaseSlot(releaseCtx, key, s.slotTTL); err != nil {
				// A vaga presa ainda é recuperada pelo TTL de segurança.
				log.Printf("failed to release concurrency slot for %s: %v", identity, err)
			}
		})
	}

	return release, true, nil
}

func slotKey(identity string) string {
	return "concurrency:" + identity
}
