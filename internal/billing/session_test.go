package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionCacheReusesSession(t *testing.T) {
	cache := NewSessionCache(35 * time.Minute)
	logins := 0
	login := func(context.Context) (string, error) {
		logins++
		return "sess-1", nil
	}

	for i := 0; i < 3; i++ {
		id, err := cache.Get(context.Background(), login)
		require.NoError(t, err)
		require.Equal(t, "sess-1", id)
	}
	require.Equal(t, 1, logins)
}

func TestSessionCacheRefreshesInsideBuffer(t *testing.T) {
	cache := NewSessionCache(35 * time.Minute)
	clock := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }

	logins := 0
	login := func(context.Context) (string, error) {
		logins++
		return "sess", nil
	}

	_, err := cache.Get(context.Background(), login)
	require.NoError(t, err)

	// 31 minutes in: the session has 4 minutes left, inside the 5 minute
	// buffer, so it must be refreshed.
	clock = clock.Add(31 * time.Minute)
	_, err = cache.Get(context.Background(), login)
	require.NoError(t, err)
	require.Equal(t, 2, logins)
}

func TestSessionCacheInvalidate(t *testing.T) {
	cache := NewSessionCache(35 * time.Minute)
	logins := 0
	login := func(context.Context) (string, error) {
		logins++
		return "sess", nil
	}

	id, err := cache.Get(context.Background(), login)
	require.NoError(t, err)

	cache.Invalidate(id)
	_, err = cache.Get(context.Background(), login)
	require.NoError(t, err)
	require.Equal(t, 2, logins)

	// Invalidating a stale id must not evict the fresh session.
	cache.Invalidate("sess-old")
	_, err = cache.Get(context.Background(), login)
	require.NoError(t, err)
	require.Equal(t, 2, logins)
}

func TestSessionCacheLoginFailure(t *testing.T) {
	cache := NewSessionCache(35 * time.Minute)
	boom := errors.New("provider down")

	_, err := cache.Get(context.Background(), func(context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)

	// A failed login leaves nothing cached.
	logins := 0
	_, err = cache.Get(context.Background(), func(context.Context) (string, error) {
		logins++
		return "sess", nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, logins)
}
