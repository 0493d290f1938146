package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/8848man/gemini-api-server/internal/core/ports"
)

// RateLimiterService aplica o limite de requisições por janela fixa por
// identidade.
//
// A janela é alinhada ao relógio de parede: a chave carrega o início da
// janela e expira sozinha via TTL do store. O colapso conhecido dessa
// estratégia — até 2N requisições atravessando a fronteira entre duas
// janelas adjacentes — é aceito em troca da atomicidade nativa do store.
type RateLimiterService struct {
	storage ports.Storage
	limit   int
	window  time.Duration

	now func() time.Time
}

// RateResult descreve o resultado de uma passada pelo limiter.
type RateResult struct {
	Allowed           bool
	Limit             int
	Remaining         int
	RetryAfterSeconds int
}

func NewRateLimiterService(storage ports.Storage, limit int, window time.Duration) (*RateLimiterService, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("rate window must be positive, got %s", window)
	}
	return &RateLimiterService{storage: storage, limit: limit, window: window, now: time.Now}, nil
}

// CheckAndConsume incrementa o contador da janela corrente e compara com o
// limite. O incremento acontece mesmo quando a resposta é negativa, de
// propósito: corridas na fronteira do limite nunca subcontam. A chamada é
// segura de executar exatamente uma vez por requisição.
func (s *RateLimiterService) CheckAndConsume(ctx context.Context, identity string) (RateResult, error) {
	key := s.windowKey(identity)

	count, ttl, err := s.storage.IncrementWindow(ctx, key, s.window)
	if err != nil {
		return RateResult{}, fmt.Errorf("rate window increment: %w", err)
	}

	if count > int64(s.limit) {
		return RateResult{
			Allowed:           false,
			Limit:             s.limit,
			RetryAfterSeconds: retryAfterSeconds(ttl, s.window),
		}, nil
	}

	return RateResult{
		Allowed:   true,
		Limit:     s.limit,
		Remaining: s.limit - int(count),
	}, nil
}

func (s *RateLimiterService) windowKey(identity string) string {
	windowSeconds := int64(s.window / time.Second)
	windowStart := s.now().Unix()
	if windowSeconds > 0 {
		windowStart -= windowStart % windowSeconds
	}
	return fmt.Sprintf("ratelimit:%s:%d", identity, windowStart)
}

func retryAfterSeconds(ttl, window time.Duration) int {
	if ttl <= 0 {
		ttl = window
	}
	seconds := int(math.Ceil(ttl.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
