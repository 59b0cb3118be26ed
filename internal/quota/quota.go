// Package quota implements the Quota Gate: a per-(user, model, day) call
// counter consulted before each provider dispatch.
package quota

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrExceeded is returned by Gate.Check when a caller has reached its daily
// call limit for a model.
var ErrExceeded = errors.New("quota exceeded")

// ExceededError carries the counts behind an ErrExceeded result.
type ExceededError struct {
	UserID string
	Model  string
	Limit  int
	Count  int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for user %q model %q: %d/%d calls today", e.UserID, e.Model, e.Count, e.Limit)
}

func (e *ExceededError) Unwrap() error { return ErrExceeded }

// counterKey identifies one user/model/day bucket.
type counterKey struct {
	userID string
	model  string
	day    string
}

// Gate tracks call counts and rejects requests once a caller's daily limit
// for a model is reached. The counter map is guarded by a single mutex
// covering the read-modify-write of Check, so a burst of concurrent
// requests for the same key can never overshoot the limit by more than the
// one call already in flight when the limit was reached.
type Gate struct {
	mu     sync.Mutex
	counts map[counterKey]int
	limit  int
	now    func() time.Time
}

// NewGate creates a Gate enforcing dailyLimit calls per (user, model, day).
func NewGate(dailyLimit int) *Gate {
	if dailyLimit <= 0 {
		dailyLimit = 1000
	}
	return &Gate{
		counts: make(map[counterKey]int),
		limit:  dailyLimit,
		now:    time.Now,
	}
}

// Check increments the call count for (userID, model) on the current UTC
// day and returns ExceededError if doing so would put the caller over the
// configured limit. The increment happens unconditionally on success so a
// caller that proceeds past Check has already been counted; a rejected
// call is not counted again.
func (g *Gate) Check(userID, model string) error {
	key := counterKey{userID: userID, model: model, day: g.now().UTC().Format("2006-01-02")}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.counts[key] >= g.limit {
		return &ExceededError{UserID: userID, Model: model, Limit: g.limit, Count: g.counts[key]}
	}
	g.counts[key]++
	return nil
}

// Count returns the current call count for (userID, model) on the current
// UTC day, for diagnostics and tests.
func (g *Gate) Count(userID, model string) int {
	key := counterKey{userID: userID, model: model, day: g.now().UTC().Format("2006-01-02")}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[key]
}

// Reset clears every counter. Intended for tests; production callers rely
// on the day component of the key to roll counts over naturally.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counts = make(map[counterKey]int)
}
