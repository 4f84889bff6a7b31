package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore(ttl time.Duration) (*Store, *clock) {
	c := &clock{t: time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)}
	s := NewStore(ttl)
	s.now = c.now
	return s, c
}

func TestStore_ExpiresAfterTTL(t *testing.T) {
	s, c := newTestStore(10 * time.Minute)

	stored := s.Put(Session{ConversationID: "tg:1", Awaiting: "amount"})
	assert.Equal(t, c.t.Add(10*time.Minute), stored.ExpiresAt)

	c.t = c.t.Add(9 * time.Minute)
	got, ok := s.Active("tg:1")
	require.True(t, ok)
	assert.Equal(t, "amount", got.Awaiting)

	c.t = c.t.Add(time.Minute)
	raw, ok := s.Get("tg:1")
	require.True(t, ok)
	assert.True(t, raw.Expired(c.t))

	_, ok = s.Active("tg:1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStore_PutRenewsExpiry(t *testing.T) {
	s, c := newTestStore(time.Minute)
	s.Put(Session{ConversationID: "web:a"})

	c.t = c.t.Add(50 * time.Second)
	sess, ok := s.Active("web:a")
	require.True(t, ok)
	s.Put(sess)

	c.t = c.t.Add(50 * time.Second)
	_, ok = s.Active("web:a")
	assert.True(t, ok)
}

func TestStore_Sweep(t *testing.T) {
	s, c := newTestStore(time.Minute)
	s.Put(Session{ConversationID: "old"})
	c.t = c.t.Add(45 * time.Second)
	s.Put(Session{ConversationID: "new"})

	c.t = c.t.Add(30 * time.Second)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	_, ok := s.Get("new")
	assert.True(t, ok)
}

func TestStore_DefaultTTL(t *testing.T) {
	s, c := newTestStore(0)
	got := s.Put(Session{ConversationID: "x"})
	assert.Equal(t, c.t.Add(DefaultTTL), got.ExpiresAt)

	s.Delete("x")
	_, ok := s.Get("x")
	assert.False(t, ok)
}

func TestSession_ZeroExpiryNeverExpires(t *testing.T) {
	assert.False(t, Session{}.Expired(time.Now()))
}
