package auth

import (
	"sync"
	"time"

	"github.com/vibevault/vibevault/internal/common"
)

const (
	// failureThreshold is how many consecutive failed unlocks trip the
	// limiter.
	failureThreshold = 5
	// baseCooldown is the first cooldown, doubling with every further
	// failure.
	baseCooldown = 30 * time.Second
	// maxCooldown caps the exponential growth.
	maxCooldown = 15 * time.Minute
)

type attemptState struct {
	failures    int
	lastFailure time.Time
}

// RateLimiter tracks consecutive failed unlocks per username and
// enforces an exponentially growing cooldown once the threshold trips.
type RateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptState
	now      func() time.Time
}

// NewRateLimiter returns a limiter with an empty attempt table.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		attempts: make(map[string]*attemptState),
		now:      time.Now,
	}
}

// cooldownFor returns the cooldown in force after n consecutive failures.
func cooldownFor(n int) time.Duration {
	d := baseCooldown
	for i := failureThreshold; i < n; i++ {
		d *= 2
		if d >= maxCooldown {
			return maxCooldown
		}
	}
	return d
}

// Check fails fast with TooManyAttemptsError while the cooldown for the
// given username is in force.
func (l *RateLimiter) Check(username string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.attempts[username]
	if st == nil || st.failures < failureThreshold {
		return nil
	}

	cooldown := cooldownFor(st.failures)
	elapsed := l.now().Sub(st.lastFailure)
	if elapsed < cooldown {
		return &common.TooManyAttemptsError{RetryAfter: cooldown - elapsed}
	}
	return nil
}

// RecordFailure counts a failed unlock for the username.
func (l *RateLimiter) RecordFailure(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.attempts[username]
	if st == nil {
		st = &attemptState{}
		l.attempts[username] = st
	}
	st.failures++
	st.lastFailure = l.now()
}

// Reset clears the counter after a successful unlock.
func (l *RateLimiter) Reset(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, username)
}
