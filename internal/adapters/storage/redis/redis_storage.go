// Package redis disponibiliza a implementação do storage baseada em Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/8848man/gemini-api-server/internal/core/ports"
)

// Storage implementa ports.Storage sobre um Redis compartilhado por todos os
// processos do servidor. Toda invariante de admissão depende das operações
// serem atômicas no Redis; nada aqui pode fazer read-modify-write no cliente.
type Storage struct {
	client *redis.Client
}

var _ ports.Storage = (*Storage)(nil)

type Config struct {
	Addr     string
	Password string
	DB       int
}

// acquireSlotScript incrementa o contador de vagas e desfaz o incremento na
// mesma operação quando ele estoura o teto. O TTL de segurança só é aplicado
// quando a chave nasce; atividade posterior nunca o renova.
var acquireSlotScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
	redis.call('DECR', KEYS[1])
	return 0
end
return 1
`)

// releaseSlotScript decrementa o contador, removendo a chave ao zerar e
// renovando o TTL de segurança caso contrário. Chave ausente (release depois
// do TTL recolher a vaga) é no-op.
var releaseSlotScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == false then
	return 0
end
if tonumber(current) <= 1 then
	redis.call('DEL', KEYS[1])
	return 0
end
redis.call('DECR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return 1
`)

func New(cfg Config) (*Storage, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Storage{client: client}, nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping verifica a saúde da conexão; usado pelo health check.
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := s.client.TxPipeline()
	counter := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("redis incr %q: %w", key, err)
	}
	return counter.Val(), ttl.Val(), nil
}

func (s *Storage) AcquireSlot(ctx context.Context, key string, max int, ttl time.Duration) (bool, error) {
	result, err := acquireSlotScript.Run(ctx, s.client, []string{key}, max, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis slot acquire %q: %w", key, err)
	}
	return result == 1, nil
}

func (s *Storage) ReleaseSlot(ctx context.Context, key string, ttl time.Duration) error {
	if _, err := releaseSlotScript.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Result(); err != nil {
		return fmt.Errorf("redis slot release %q: %w", key, err)
	}
	return nil
}

func (s *Storage) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	wasSet, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %q: %w", key, err)
	}
	return wasSet, nil
}
