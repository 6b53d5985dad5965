package billing

import (
	"context"
	"sync"
	"time"
)

// sessionBuffer is subtracted from the session TTL so a session is refreshed
// before the provider actually expires it mid-request.
const sessionBuffer = 5 * time.Minute

// SessionCache caches the provider session id across requests so each API
// call does not pay for a login round trip. Sessions are refreshed when they
// come within the expiry buffer and can be invalidated on a 401.
type SessionCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	sessionID string
	expiresAt time.Time
}

// NewSessionCache builds a cache for sessions valid for ttl.
func NewSessionCache(ttl time.Duration) *SessionCache {
	return &SessionCache{ttl: ttl, now: time.Now}
}

// Get returns a cached session id, or calls login to obtain a fresh one.
// Login runs under the cache lock so concurrent callers share one login.
func (c *SessionCache) Get(ctx context.Context, login func(ctx context.Context) (string, error)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID != "" && c.now().Add(sessionBuffer).Before(c.expiresAt) {
		return c.sessionID, nil
	}

	sessionID, err := login(ctx)
	if err != nil {
		return "", err
	}
	c.sessionID = sessionID
	c.expiresAt = c.now().Add(c.ttl)
	return sessionID, nil
}

// Invalidate drops the cached session if it still matches the given id. A
// stale invalidation must not evict a session another caller just refreshed.
func (c *SessionCache) Invalidate(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == sessionID {
		c.sessionID = ""
		c.expiresAt = time.Time{}
	}
}
