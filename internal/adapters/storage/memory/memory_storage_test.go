package memory

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestIncrementWindow_CountsAndExpires(t *testing.T) {
	clock := newFakeClock()
	storage := New(WithClock(clock.Now))
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, ttl, err := storage.IncrementWindow(ctx, "ratelimit:u1:0", time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != want {
			t.Fatalf("expected count=%d, got %d", want, count)
		}
		if ttl <= 0 || ttl > time.Minute {
			t.Fatalf("expected ttl within (0, 1m], got %s", ttl)
		}
	}

	clock.Advance(time.Minute)

	count, _, err := storage.IncrementWindow(ctx, "ratelimit:u1:0", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected counter to restart after expiry, got %d", count)
	}
}

func TestAcquireSlot_EnforcesCap(t *testing.T) {
	storage := New()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := storage.AcquireSlot(ctx, "concurrency:u1", 2, time.Minute)
		if err != nil || !ok {
			t.Fatalf("expected acquire %d to succeed, ok=%v err=%v", i+1, ok, err)
		}
	}

	ok, err := storage.AcquireSlot(ctx, "concurrency:u1", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected acquire above the cap to be denied")
	}

	if err := storage.ReleaseSlot(ctx, "concurrency:u1", time.Minute); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}

	ok, err = storage.AcquireSlot(ctx, "concurrency:u1", 2, time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected acquire after release to succeed, ok=%v err=%v", ok, err)
	}
}

func TestAcquireSlot_SafetyTTLReclaimsCrashedHolder(t *testing.T) {
	clock := newFakeClock()
	storage := New(WithClock(clock.Now))
	ctx := context.Background()

	if ok, err := storage.AcquireSlot(ctx, "concurrency:u1", 1, time.Minute); err != nil || !ok {
		t.Fatalf("expected acquire to succeed, ok=%v err=%v", ok, err)
	}

	clock.Advance(2 * time.Minute)

	// Nobody released, but the grace period has passed.
	if ok, err := storage.AcquireSlot(ctx, "concurrency:u1", 1, time.Minute); err != nil || !ok {
		t.Fatalf("expected reclaimed slot to be acquirable, ok=%v err=%v", ok, err)
	}
}

func TestReleaseSlot_MissingKeyIsNoop(t *testing.T) {
	storage := New()
	if err := storage.ReleaseSlot(context.Background(), "concurrency:ghost", time.Minute); err != nil {
		t.Fatalf("expected release of a missing key to be a no-op, got %v", err)
	}
}

func TestSetIfAbsent_OnlyFirstWriteWins(t *testing.T) {
	clock := newFakeClock()
	storage := New(WithClock(clock.Now))
	ctx := context.Background()

	wasSet, err := storage.SetIfAbsent(ctx, "dedup:abc", 10*time.Minute)
	if err != nil || !wasSet {
		t.Fatalf("expected first set to win, wasSet=%v err=%v", wasSet, err)
	}
	wasSet, err = storage.SetIfAbsent(ctx, "dedup:abc", 10*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wasSet {
		t.Fatalf("expected second set to lose while the key lives")
	}

	clock.Advance(10*time.Minute + time.Second)

	wasSet, err = storage.SetIfAbsent(ctx, "dedup:abc", 10*time.Minute)
	if err != nil || !wasSet {
		t.Fatalf("expected set after expiry to win, wasSet=%v err=%v", wasSet, err)
	}
}

func TestStorage_ConcurrentAcquireNeverExceedsCap(t *testing.T) {
	storage := New()
	ctx := context.Background()

	const maxSlots = 5
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := storage.AcquireSlot(ctx, "concurrency:u1", maxSlots, time.Minute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != maxSlots {
		t.Fatalf("expected exactly %d grants without releases, got %d", maxSlots, granted)
	}
}

func TestCleanup_DropsExpiredEntries(t *testing.T) {
	clock := newFakeClock()
	storage := New(WithClock(clock.Now))
	ctx := context.Background()

	if _, _, err := storage.IncrementWindow(ctx, "ratelimit:u1:0", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(2 * time.Minute)
	storage.cleanup()

	storage.mu.Lock()
	remaining := len(storage.entries)
	storage.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected cleanup to drop expired entries, %d left", remaining)
	}
}
