package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const jwtSecretID = "jwt_secret"

// GetJWTSecret retrieves the JWT signing secret from the settings collection.
// If no secret exists, it generates one, stores it, and returns it.
// A failed insert is re-read so that a concurrent first start wins once.
func GetJWTSecret(ctx context.Context, b Backend) (string, error) {
	if secret, err := readSecret(ctx, b); err != nil || secret != "" {
		return secret, err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	insertErr := b.Insert(ctx, settingsCollection, jwtSecretID, Document{"value": candidate})

	// Always read back (either our insert or the existing value).
	secret, err := readSecret(ctx, b)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", fmt.Errorf("storing jwt_secret: %w", insertErr)
	}
	return secret, nil
}

func readSecret(ctx context.Context, b Backend) (string, error) {
	doc, err := b.FindOne(ctx, settingsCollection, jwtSecretID)
	if err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}
	if doc == nil {
		return "", nil
	}
	secret, _ := doc["value"].(string)
	return secret, nil
}
