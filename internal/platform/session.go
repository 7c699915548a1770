package platform

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type sessionEntry struct {
	token     string
	expiresAt time.Time
}

// SessionCache holds platform session tokens per account with a bounded TTL.
// Get has get-or-refresh semantics: an expired or missing entry triggers a
// single login even under concurrent readers.
type SessionCache struct {
	mu      sync.RWMutex
	entries map[uint]sessionEntry
	ttl     time.Duration
	group   singleflight.Group
}

// NewSessionCache creates a cache with the given token lifetime.
func NewSessionCache(ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SessionCache{
		entries: make(map[uint]sessionEntry),
		ttl:     ttl,
	}
}

// Get returns a cached session token for the account, logging in via the
// given function when no valid token is cached.
func (sc *SessionCache) Get(accountID uint, login func() (string, error)) (string, error) {
	sc.mu.RLock()
	entry, ok := sc.entries[accountID]
	sc.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.token, nil
	}

	token, err, _ := sc.group.Do(fmt.Sprintf("login:%d", accountID), func() (interface{}, error) {
		// Another caller may have refreshed while we waited for the flight.
		sc.mu.RLock()
		entry, ok := sc.entries[accountID]
		sc.mu.RUnlock()
		if ok && time.Now().Before(entry.expiresAt) {
			return entry.token, nil
		}

		fresh, err := login()
		if err != nil {
			return "", err
		}

		sc.mu.Lock()
		sc.entries[accountID] = sessionEntry{token: fresh, expiresAt: time.Now().Add(sc.ttl)}
		sc.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// Invalidate drops the cached token for an account, forcing the next Get to
// log in again. Called when the platform reports an expired session.
func (sc *SessionCache) Invalidate(accountID uint) {
	sc.mu.Lock()
	delete(sc.entries, accountID)
	sc.mu.Unlock()
}
