package store

import (
	"context"
	"fmt"
	"time"
)

// RevokedTokensCollection holds the IDs of signed-out API tokens.
const RevokedTokensCollection = "revoked-tokens"

const fieldExpiresAt = "expiresAt"

// TokenRevocations keeps revoked token IDs in the backend so that a logout
// outlives a server restart.
type TokenRevocations struct {
	backend Backend
	now     func() time.Time
}

// NewTokenRevocations returns the revocation list stored on b.
func NewTokenRevocations(b Backend) *TokenRevocations {
	return &TokenRevocations{backend: b, now: time.Now}
}

// Revoke adds a token's JTI to the revocation list. Revoking twice is not an error.
func (t *TokenRevocations) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	err := t.backend.Insert(ctx, RevokedTokensCollection, jti, Document{
		FieldCreatedAt: FormatTime(t.now()),
		fieldExpiresAt: FormatTime(expiresAt),
	})
	if err == nil {
		return nil
	}
	if revoked, lookupErr := t.IsRevoked(ctx, jti); lookupErr == nil && revoked {
		return nil
	}
	return fmt.Errorf("revoking token: %w", err)
}

// IsRevoked checks if a token's JTI has been revoked.
func (t *TokenRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	doc, err := t.backend.FindOne(ctx, RevokedTokensCollection, jti)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return doc != nil, nil
}

// Sweep deletes revocations whose tokens expired before now and returns how
// many it removed.
func (t *TokenRevocations) Sweep(ctx context.Context, now time.Time) (int, error) {
	docs, err := t.backend.FindAll(ctx, RevokedTokensCollection)
	if err != nil {
		return 0, fmt.Errorf("listing token revocations: %w", err)
	}

	cutoff := FormatTime(now)
	removed := 0
	for _, doc := range docs {
		exp, _ := doc[fieldExpiresAt].(string)
		id, _ := doc[FieldID].(string)
		if exp == "" || exp >= cutoff {
			continue
		}
		if err := t.backend.Delete(ctx, RevokedTokensCollection, id); err != nil {
			return removed, fmt.Errorf("deleting token revocation: %w", err)
		}
		removed++
	}
	return removed, nil
}
