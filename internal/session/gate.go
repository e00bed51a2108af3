// Package session holds the signed-in identity of the back office and keeps
// it across restarts in a local key/value file.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// userKey is the key/value entry that mirrors the signed-in identity.
const userKey = "user"

var (
	// ErrSignedOut is returned by Require when nobody is signed in.
	ErrSignedOut = errors.New("not signed in")
	// ErrClosed is returned by operations on a closed gate.
	ErrClosed = errors.New("session gate closed")
)

// Identity is the signed-in user.
type Identity struct {
	Username string `json:"username"`
}

// Checker verifies a username and password pair.
type Checker interface {
	Check(username, password string) error
}

// KV is the local persistence behind a Gate.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Gate is the session state machine: signed out, or signed in as an Identity.
// Every transition is written to the KV before it takes effect.
type Gate struct {
	checker Checker
	kv      KV
	log     *zap.Logger

	mu      sync.RWMutex
	current *Identity
	closed  bool
}

// NewGate returns a signed-out gate. Call Open to restore a persisted session.
func NewGate(checker Checker, kv KV, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{checker: checker, kv: kv, log: log}
}

// Open restores the identity persisted by a previous run, if any. A corrupt
// entry is discarded and leaves the gate signed out.
func (g *Gate) Open() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}

	raw, ok, err := g.kv.Get(userKey)
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}
	if !ok {
		g.current = nil
		return nil
	}

	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil || id.Username == "" {
		g.log.Warn("discarding unreadable session entry", zap.Error(err))
		if err := g.kv.Delete(userKey); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
		g.current = nil
		return nil
	}

	g.current = &id
	g.log.Debug("session restored", zap.String("username", id.Username))
	return nil
}

// Login signs in when the pair is accepted by the checker. A rejected pair
// returns the checker's error and leaves the gate unchanged.
func (g *Gate) Login(username, password string) (Identity, error) {
	if err := g.checker.Check(username, password); err != nil {
		g.log.Info("login rejected", zap.String("username", username))
		return Identity{}, err
	}

	id := Identity{Username: username}
	raw, err := json.Marshal(id)
	if err != nil {
		return Identity{}, fmt.Errorf("encoding session: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return Identity{}, ErrClosed
	}
	if err := g.kv.Set(userKey, raw); err != nil {
		return Identity{}, fmt.Errorf("saving session: %w", err)
	}
	g.current = &id
	g.log.Info("signed in", zap.String("username", username))
	return id, nil
}

// Logout signs out. It succeeds when already signed out.
func (g *Gate) Logout() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if err := g.kv.Delete(userKey); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	if g.current != nil {
		g.log.Info("signed out", zap.String("username", g.current.Username))
	}
	g.current = nil
	return nil
}

// Current returns the signed-in identity and whether there is one.
func (g *Gate) Current() (Identity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.current == nil {
		return Identity{}, false
	}
	return *g.current, true
}

// Require returns the signed-in identity or ErrSignedOut.
func (g *Gate) Require() (Identity, error) {
	id, ok := g.Current()
	if !ok {
		return Identity{}, ErrSignedOut
	}
	return id, nil
}

// Close releases the KV. The persisted identity is kept for the next Open.
func (g *Gate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	if c, ok := g.kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
