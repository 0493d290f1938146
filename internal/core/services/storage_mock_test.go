package services

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errStoreDown = errors.New("connection refused")

// mockStorage emula as primitivas atômicas do store em memória, com um
// relógio controlável para simular expiração de janelas e de vagas.
type mockStorage struct {
	mu sync.Mutex

	counters map[string]int64
	slots    map[string]int64
	dedup    map[string]struct{}
	expiry   map[string]time.Time

	clock time.Time

	// failing simula o store fora do ar.
	failing bool

	// writes conta operações que mutaram estado, para verificar que uma
	// falha não deixa escrita parcial para trás.
	writes int
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		counters: make(map[string]int64),
		slots:    make(map[string]int64),
		dedup:    make(map[string]struct{}),
		expiry:   make(map[string]time.Time),
		clock:    time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *mockStorage) advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(d)
}

func (m *mockStorage) now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock
}

func (m *mockStorage) expireStale(key string) {
	if at, ok := m.expiry[key]; ok && !m.clock.Before(at) {
		delete(m.counters, key)
		delete(m.slots, key)
		delete(m.dedup, key)
		delete(m.expiry, key)
	}
}

func (m *mockStorage) IncrementWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return 0, 0, errStoreDown
	}

	m.expireStale(key)
	if _, ok := m.counters[key]; !ok {
		m.expiry[key] = m.clock.Add(window)
	}
	m.counters[key]++
	m.writes++
	return m.counters[key], m.expiry[key].Sub(m.clock), nil
}

func (m *mockStorage) AcquireSlot(_ context.Context, key string, max int, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return false, errStoreDown
	}

	m.expireStale(key)
	if m.slots[key] >= int64(max) {
		return false, nil
	}
	if _, ok := m.slots[key]; !ok {
		m.expiry[key] = m.clock.Add(ttl)
	}
	m.slots[key]++
	m.writes++
	return true, nil
}

func (m *mockStorage) ReleaseSlot(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return errStoreDown
	}

	m.expireStale(key)
	current, ok := m.slots[key]
	if !ok {
		return nil
	}
	if current <= 1 {
		delete(m.slots, key)
		delete(m.expiry, key)
		return nil
	}
	m.slots[key] = current - 1
	m.expiry[key] = m.clock.Add(ttl)
	return nil
}

func (m *mockStorage) SetIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return false, errStoreDown
	}

	m.expireStale(key)
	if _, ok := m.dedup[key]; ok {
		return false, nil
	}
	m.dedup[key] = struct{}{}
	m.expiry[key] = m.clock.Add(ttl)
	m.writes++
	return true, nil
}

func (m *mockStorage) windowCount(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key]
}

func (m *mockStorage) slotCount(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[key]
}

func (m *mockStorage) totalWindowCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, v := range m.counters {
		total += v
	}
	return total
}
