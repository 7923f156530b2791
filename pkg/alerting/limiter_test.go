package alerting

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRateLimiterStore_Basic(t *testing.T) {
	store := NewRateLimiterStore(1, 2)

	limiter := store.GetLimiter("tenant1")
	if limiter == nil {
		t.Fatal("expected limiter, got nil")
	}
	if limiter.Limit() != 1 {
		t.Errorf("expected limit 1, got %v", limiter.Limit())
	}
}

func TestRateLimiterStore_CustomLimit(t *testing.T) {
	store := NewRateLimiterStore(1, 2)

	store.SetLimiter("tenant2", 5, 10)
	limiter := store.GetLimiter("tenant2")

	if limiter.Limit() != 5 {
		t.Errorf("expected limit 5, got %v", limiter.Limit())
	}
	if limiter.Burst() != 10 {
		t.Errorf("expected burst 10, got %v", limiter.Burst())
	}
}

func TestRateLimiterStore_Concurrency(t *testing.T) {
	store := NewRateLimiterStore(10, 5)
	tenantID := uuid.NewString()

	var wg sync.WaitGroup

	// Launch 100 goroutines that access GetLimiter concurrently
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter := store.GetLimiter(tenantID)
			if limiter == nil {
				t.Error("expected limiter, got nil")
			}
		}()
	}

	wg.Wait()

	limiter := store.GetLimiter(tenantID)
	if limiter == nil {
		t.Error("expected limiter to exist after concurrent access")
	}
}

func TestRateLimiter_Enforcement(t *testing.T) {
	store := NewRateLimiterStore(2, 2) // 2 events/sec

	tenantID := uuid.NewString()
	limiter := store.GetLimiter(tenantID)

	// Consume two tokens
	firstTry := limiter.Allow()
	secondTry := limiter.Allow()
	if !firstTry || !secondTry {
		t.Fatal("expected first two calls to be allowed")
	}

	// This call should fail immediately
	if limiter.Allow() {
		t.Error("expected third call to be rate limited")
	}

	// Wait for refill
	time.Sleep(600 * time.Millisecond)
	if !limiter.Allow() {
		t.Error("expected one token to be available after refill")
	}
}

func TestDispatchLimiterStore(t *testing.T) {
	store := NewDispatchLimiterStore()
	tenantID := uuid.NewString()

	// hourly refill is negligible inside a test, only the burst matters
	if !store.Allow(tenantID, 2) {
		t.Fatal("expected first notification to be allowed")
	}
	if !store.Allow(tenantID, 2) {
		t.Fatal("expected second notification to be allowed")
	}
	if store.Allow(tenantID, 2) {
		t.Error("expected third notification to be rate limited")
	}

	// no cap configured means always allowed
	if !store.Allow(uuid.NewString(), 0) {
		t.Error("expected uncapped tenant to be allowed")
	}

	// raising the cap rebuilds the bucket
	if !store.Allow(tenantID, 5) {
		t.Error("expected allowance after cap change")
	}
}

func TestTenantLockStore(t *testing.T) {
	store := NewTenantLockStore()
	tenantID := uuid.NewString()

	release, ok := store.TryAcquire(tenantID)
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}

	if _, ok := store.TryAcquire(tenantID); ok {
		t.Error("expected second acquire to fail while held")
	}

	// another tenant is unaffected
	otherRelease, ok := store.TryAcquire(uuid.NewString())
	if !ok {
		t.Error("expected other tenant acquire to succeed")
	}
	otherRelease()

	release()

	release2, ok := store.TryAcquire(tenantID)
	if !ok {
		t.Error("expected acquire to succeed after release")
	}
	release2()
}
