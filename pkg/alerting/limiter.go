package alerting

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterStore manages per-tenant rate limiters: tenant_id -> rate limiter
type RateLimiterStore struct {
	limiters     map[string]*rate.Limiter
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
}

func NewRateLimiterStore(defaultRate rate.Limit, defaultBurst int) *RateLimiterStore {
	return &RateLimiterStore{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  defaultRate,
		defaultBurst: defaultBurst,
	}
}

func (s *RateLimiterStore) GetLimiter(tenantID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[tenantID]
	if !exists {
		limiter = rate.NewLimiter(s.defaultRate, s.defaultBurst)
		s.limiters[tenantID] = limiter
	}
	return limiter
}

func (s *RateLimiterStore) SetLimiter(tenantID string, tenantRate rate.Limit, tenantBurst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiters[tenantID] = rate.NewLimiter(tenantRate, tenantBurst)
}

// DispatchLimiterStore enforces the per-tenant max_alerts_per_hour cap for the
// dispatcher. The bucket refills at maxPerHour/hour and holds at most
// maxPerHour tokens; when settings change the bucket is rebuilt.
type DispatchLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*dispatchLimiter
}

type dispatchLimiter struct {
	maxPerHour int
	limiter    *rate.Limiter
}

func NewDispatchLimiterStore() *DispatchLimiterStore {
	return &DispatchLimiterStore{limiters: make(map[string]*dispatchLimiter)}
}

// Allow consumes one notification token for the tenant. maxPerHour <= 0 means
// no cap is configured.
func (s *DispatchLimiterStore) Allow(tenantID string, maxPerHour int) bool {
	if maxPerHour <= 0 {
		return true
	}

	s.mu.Lock()
	entry, exists := s.limiters[tenantID]
	if !exists || entry.maxPerHour != maxPerHour {
		entry = &dispatchLimiter{
			maxPerHour: maxPerHour,
			limiter:    rate.NewLimiter(rate.Limit(float64(maxPerHour)/3600.0), maxPerHour),
		}
		s.limiters[tenantID] = entry
	}
	s.mu.Unlock()

	return entry.limiter.Allow()
}

// TenantLockStore hands out the per-tenant mutual-exclusion token that keeps
// evaluation runs from overlapping. TryAcquire never blocks; a busy tenant
// means the tick is skipped, not queued.
type TenantLockStore struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTenantLockStore() *TenantLockStore {
	return &TenantLockStore{locks: make(map[string]*sync.Mutex)}
}

func (s *TenantLockStore) TryAcquire(tenantID string) (release func(), ok bool) {
	s.mu.Lock()
	lock, exists := s.locks[tenantID]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[tenantID] = lock
	}
	s.mu.Unlock()

	if !lock.TryLock() {
		return nil, false
	}
	return lock.Unlock, true
}
