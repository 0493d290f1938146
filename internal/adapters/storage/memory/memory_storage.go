// Package memory disponibiliza um storage em memória para desenvolvimento e
// testes. Vale apenas para um único processo: sem um store externo, as
// invariantes de admissão não atravessam instâncias do servidor.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/8848man/gemini-api-server/internal/core/ports"
)

type entry struct {
	value     int64
	expiresAt time.Time
}

type Storage struct {
	mu      sync.Mutex
	entries map[string]*entry

	now          func() time.Time
	cleanupEvery time.Duration
}

var _ ports.Storage = (*Storage)(nil)

type Option func(*Storage)

// WithClock troca a fonte de tempo; usado em testes para simular expiração.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

func WithCleanupEvery(d time.Duration) Option {
	return func(s *Storage) { s.cleanupEvery = d }
}

func New(opts ...Option) *Storage {
	s := &Storage{
		entries:      make(map[string]*entry),
		now:          time.Now,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// live retorna a entry da chave, descartando-a se o TTL já venceu.
// Chamar com o mutex em mãos.
func (s *Storage) live(key string) (*entry, bool) {
	ent, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !s.now().Before(ent.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return ent, true
}

func (s *Storage) IncrementWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.live(key)
	if !ok {
		ent = &entry{expiresAt: s.now().Add(window)}
		s.entries[key] = ent
	}
	ent.value++
	return ent.value, ent.expiresAt.Sub(s.now()), nil
}

func (s *Storage) AcquireSlot(_ context.Context, key string, max int, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.live(key)
	if !ok {
		ent = &entry{expiresAt: s.now().Add(ttl)}
		s.entries[key] = ent
	}
	if ent.value >= int64(max) {
		return false, nil
	}
	ent.value++
	return true, nil
}

func (s *Storage) ReleaseSlot(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.live(key)
	if !ok {
		return nil
	}
	if ent.value <= 1 {
		delete(s.entries, key)
		return nil
	}
	ent.value--
	ent.expiresAt = s.now().Add(ttl)
	return nil
}

func (s *Storage) SetIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = &entry{value: 1, expiresAt: s.now().Add(ttl)}
	return true, nil
}

// Ping existe para satisfazer o health check; memória local nunca está fora
// do ar.
func (s *Storage) Ping(context.Context) error { return nil }

func (s *Storage) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, ent := range s.entries {
		if !now.Before(ent.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// StartJanitor remove entradas expiradas periodicamente até o contexto
// encerrar. A expiração lazy em live já garante correção; o janitor só
// impede crescimento de memória com chaves que nunca mais são tocadas.
func (s *Storage) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	ticker := time.NewTicker(s.cleanupEvery)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}
