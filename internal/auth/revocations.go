package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RevocationStore persists revoked token IDs.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Revocations is the set of signed-out token IDs. Entries are kept until the
// token would have expired anyway. Lookups are cached in memory in front of
// the optional persistent store.
type Revocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	persist RevocationStore
	now     func() time.Time
}

// NewRevocations returns an empty revocation set backed by persist. A nil
// persist keeps revocations in memory only.
func NewRevocations(persist RevocationStore) *Revocations {
	return &Revocations{revoked: make(map[string]time.Time), persist: persist, now: time.Now}
}

// Revoke marks the token jti as signed out until expiresAt.
func (r *Revocations) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if r.persist != nil {
		if err := r.persist.Revoke(ctx, jti, expiresAt); err != nil {
			return err
		}
	}
	r.remember(jti, expiresAt)
	return nil
}

// IsRevoked reports whether jti was revoked.
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	r.mu.Lock()
	_, ok := r.revoked[jti]
	r.mu.Unlock()
	if ok || r.persist == nil {
		return ok, nil
	}

	revoked, err := r.persist.IsRevoked(ctx, jti)
	if err != nil {
		return false, err
	}
	if revoked {
		// The stored expiry is not needed; no token outlives TokenExpiry.
		r.remember(jti, r.now().Add(TokenExpiry))
	}
	return revoked, nil
}

func (r *Revocations) remember(jti string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[jti] = expiresAt
}

// Sweep drops entries whose tokens have expired and returns how many it
// removed, counting the persistent store when there is one.
func (r *Revocations) Sweep(ctx context.Context) (int, error) {
	now := r.now()

	r.mu.Lock()
	removed := 0
	for jti, exp := range r.revoked {
		if exp.Before(now) {
			delete(r.revoked, jti)
			removed++
		}
	}
	r.mu.Unlock()

	if r.persist == nil {
		return removed, nil
	}
	return r.persist.Sweep(ctx, now)
}

// Len returns the number of revoked tokens cached in memory.
func (r *Revocations) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.revoked)
}

// StartSweeper runs Sweep every interval until ctx is done.
func (r *Revocations) StartSweeper(ctx context.Context, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := r.Sweep(ctx)
				if err != nil {
					log.Warn("failed to sweep token revocations", zap.Error(err))
					continue
				}
				if n > 0 {
					log.Info("swept expired token revocations", zap.Int("removed", n))
				}
			}
		}
	}()
}
