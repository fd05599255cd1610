// Package usage persists the append-only sliding-window usage events backing
// admission checks. The count-and-append step is atomic in every
// implementation so two concurrent requests cannot both observe count ==
// limit-1 and slip past the cap.
package usage

import (
	"context"
	"sync"
	"time"

	"cortex/internal/ratelimit/models"
	"cortex/pkg/requestcontext"
)

// InMemoryStore implements the usage store with per-key timestamp slices.
// A single mutex makes the check-then-append atomic.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
}

type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

// pruneExpired drops events that fell out of the window. An event at exactly
// the window start still counts, so only strictly older ones go.
func (sw *slidingWindow) pruneExpired(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if !sw.timestamps[i].Before(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		windows: make(map[string]*slidingWindow),
	}
}

// Allow prunes expired events, counts the window, and appends one event when
// under the limit. The whole sequence runs under the store mutex.
func (s *InMemoryStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.windows[key]
	if !ok {
		sw = &slidingWindow{window: window}
		s.windows[key] = sw
	}
	sw.window = window
	sw.pruneExpired(now)

	if len(sw.timestamps) >= limit {
		resetAt := sw.timestamps[0].Add(window)
		return &models.Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(resetAt, now),
		}, nil
	}

	sw.timestamps = append(sw.timestamps, now)
	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
	}, nil
}

// Reset clears all events for a key.
func (s *InMemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// CurrentCount returns the number of in-window events for a key.
func (s *InMemoryStore) CurrentCount(ctx context.Context, key string) (int, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.windows[key]
	if !ok {
		return 0, nil
	}
	sw.pruneExpired(now)
	return len(sw.timestamps), nil
}

// DeleteOlderThan drops events older than the cutoff across all keys and
// returns how many were removed. Used by the retention worker.
func (s *InMemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, sw := range s.windows {
		kept := sw.timestamps[:0]
		for _, ts := range sw.timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			} else {
				deleted++
			}
		}
		sw.timestamps = kept
		if len(sw.timestamps) == 0 {
			delete(s.windows, key)
		}
	}
	return deleted, nil
}

func retryAfterSeconds(resetAt, now time.Time) int {
	seconds := int(resetAt.Sub(now).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}
