package services

import (
	"context"
	"testing"
	"time"
)

func newTestConcurrencyLimiter(t *testing.T, storage *mockStorage, max int, slotTTL time.Duration) *ConcurrencyLimiterService {
	t.Helper()
	service, err := NewConcurrencyLimiterService(storage, max, slotTTL)
	if err != nil {
		t.Fatalf("failed to create concurrency limiter service: %v", err)
	}
	return service
}

func TestConcurrencyLimiter_DeniesBeyondCap(t *testing.T) {
	storage := newMockStorage()
	service := newTestConcurrencyLimiter(t, storage, 2, 5*time.Minute)

	ctx := context.Background()

	releaseFirst, ok, err := service.Acquire(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	_, ok, err = service.Acquire(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected second acquire to succeed, ok=%v err=%v", ok, err)
	}

	_, ok, err = service.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error on third acquire: %v", err)
	}
	if ok {
		t.Fatalf("expected third concurrent acquire to be denied")
	}

	releaseFirst()

	_, ok, err = service.Acquire(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected acquire after release to succeed, ok=%v err=%v", ok, err)
	}
}

func TestConcurrencyLimiter_ReleaseIsIdempotent(t *testing.T) {
	storage := newMockStorage()
	service := newTestConcurrencyLimiter(t, storage, 1, 5*time.Minute)

	ctx := context.Background()

	release, ok, err := service.Acquire(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected acquire to succeed, ok=%v err=%v", ok, err)
	}

	release()
	release()

	// The double release must not have freed a slot that was never held.
	_, ok, err = service.Acquire(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected acquire after release to succeed, ok=%v err=%v", ok, err)
	}
	_, ok, err = service.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected second concurrent acquire to be denied after double release")
	}
}

func TestConcurrencyLimiter_ReleaseAfterSafetyTTLIsNoop(t *testing.T) {
	storage := newMockStorage()
	service := newTestConcurrencyLimiter(t, storage, 1, time.Minute)

	ctx := context.Background()

	release, ok, err := service.Acquire(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected acquire to succeed, ok=%v err=%v", ok, err)
	}

	// Simulate a crashed holder: the safety TTL reclaims the slot first.
	storage.advance(2 * time.Minute)

	release()

	if got := storage.slotCount(slotKey("u1")); got != 0 {
		t.Fatalf("expected slot counter to stay at zero, got %d", got)
	}

	_, ok, err = service.Acquire(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected acquire after reclamation to succeed, ok=%v err=%v", ok, err)
	}
}

func TestConcurrencyLimiter_IdentitiesAreIndependent(t *testing.T) {
	storage := newMockStorage()
	service := newTestConcurrencyLimiter(t, storage, 1, time.Minute)

	ctx := context.Background()

	if _, ok, err := service.Acquire(ctx, "u1"); err != nil || !ok {
		t.Fatalf("expected u1 acquire to succeed, ok=%v err=%v", ok, err)
	}
	if _, ok, err := service.Acquire(ctx, "u2"); err != nil || !ok {
		t.Fatalf("expected u2 acquire to be unaffected by u1, ok=%v err=%v", ok, err)
	}
}
