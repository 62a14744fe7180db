package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nsvirk/profileapi/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSessionStore struct {
	sessions map[string]*models.SessionModel
	reads    int
	readErr  error
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[string]*models.SessionModel{}}
}

func (m *memSessionStore) CreateSession(_ context.Context, s *models.SessionModel) error {
	m.sessions[s.Token] = s
	return nil
}

func (m *memSessionStore) ReadSession(_ context.Context, token string) (*models.SessionModel, error) {
	m.reads++
	if m.readErr != nil {
		return nil, m.readErr
	}
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *memSessionStore) TouchSession(_ context.Context, token string, at time.Time) error {
	if s, ok := m.sessions[token]; ok {
		s.LastInteraction = at
	}
	return nil
}

func (m *memSessionStore) DeleteSession(_ context.Context, token string) (int64, error) {
	if _, ok := m.sessions[token]; !ok {
		return 0, nil
	}
	delete(m.sessions, token)
	return 1, nil
}

func (m *memSessionStore) DeleteUserSessions(_ context.Context, userID string) ([]string, error) {
	var tokens []string
	for token, s := range m.sessions {
		if s.User == userID {
			tokens = append(tokens, token)
			delete(m.sessions, token)
		}
	}
	return tokens, nil
}

func (m *memSessionStore) PurgeExpiredSessions(_ context.Context, before time.Time) ([]string, error) {
	var tokens []string
	for token, s := range m.sessions {
		if s.LastInteraction.Before(before) {
			tokens = append(tokens, token)
			delete(m.sessions, token)
		}
	}
	return tokens, nil
}

func newCachedStore(t *testing.T) (*CachedSessionStore, *memSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	backing := newMemSessionStore()
	return NewCachedSessionStore(backing, client, time.Minute), backing, mr
}

func TestCachedSessionStore_ReadThrough(t *testing.T) {
	store, backing, mr := newCachedStore(t)
	ctx := context.Background()
	backing.sessions["abc"] = &models.SessionModel{ID: "s1", User: "u1", Token: "abc"}

	first, err := store.ReadSession(ctx, "abc")
	require.NoError(t, err)
	second, err := store.ReadSession(ctx, "abc")
	require.NoError(t, err)

	assert.Equal(t, "u1", first.User)
	assert.Equal(t, first.User, second.User)
	assert.Equal(t, 1, backing.reads)
	assert.True(t, mr.Exists(sessionCacheKey("abc")))
	assert.Equal(t, time.Minute, mr.TTL(sessionCacheKey("abc")))
}

func TestCachedSessionStore_NotFoundIsNotCached(t *testing.T) {
	store, backing, mr := newCachedStore(t)

	_, err := store.ReadSession(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists(sessionCacheKey("nope")))
	assert.Equal(t, 1, backing.reads)
}

func TestCachedSessionStore_StoreErrorPropagates(t *testing.T) {
	store, backing, _ := newCachedStore(t)
	backing.readErr = &StoreError{Op: "read session", Err: errors.New("db down")}

	_, err := store.ReadSession(context.Background(), "abc")
	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
}

func TestCachedSessionStore_DeleteEvicts(t *testing.T) {
	store, _, mr := newCachedStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, &models.SessionModel{ID: "s1", User: "u1", Token: "abc"}))
	assert.True(t, mr.Exists(sessionCacheKey("abc")))

	n, err := store.DeleteSession(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, mr.Exists(sessionCacheKey("abc")))

	_, err = store.ReadSession(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedSessionStore_DeleteUserSessionsEvicts(t *testing.T) {
	store, _, mr := newCachedStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, &models.SessionModel{ID: "s1", User: "u1", Token: "a"}))
	require.NoError(t, store.CreateSession(ctx, &models.SessionModel{ID: "s2", User: "u1", Token: "b"}))
	require.NoError(t, store.CreateSession(ctx, &models.SessionModel{ID: "s3", User: "u2", Token: "c"}))

	tokens, err := store.DeleteUserSessions(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, tokens)
	assert.False(t, mr.Exists(sessionCacheKey("a")))
	assert.False(t, mr.Exists(sessionCacheKey("b")))
	assert.True(t, mr.Exists(sessionCacheKey("c")))
}

func TestCachedSessionStore_RedisDownFallsBack(t *testing.T) {
	store, backing, mr := newCachedStore(t)
	backing.sessions["abc"] = &models.SessionModel{ID: "s1", User: "u1", Token: "abc"}
	mr.Close()

	session, err := store.ReadSession(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "u1", session.User)
}

func TestCachedSessionStore_CorruptEntryFallsBack(t *testing.T) {
	store, backing, mr := newCachedStore(t)
	backing.sessions["abc"] = &models.SessionModel{ID: "s1", User: "u1", Token: "abc"}
	require.NoError(t, mr.Set(sessionCacheKey("abc"), "{not json"))

	session, err := store.ReadSession(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "u1", session.User)
	assert.Equal(t, 1, backing.reads)
}
