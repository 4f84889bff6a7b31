// Package session keeps per-conversation drafts between chat turns.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/dvloznov/finchat/internal/parser"
)

// DefaultTTL is how long an idle conversation keeps its draft.
const DefaultTTL = 10 * time.Minute

// Session is the pending state of one conversation.
type Session struct {
	ConversationID string

	// Text is the message the draft was parsed from.
	Text  string
	Draft parser.ParsedTransaction

	// CategoryID is set once the category was picked explicitly.
	CategoryID string

	// Awaiting names the field the last reply asked for, empty when the
	// draft waits for confirmation.
	Awaiting string

	// Warning is shown next to the confirmation prompt, e.g. a likely duplicate.
	Warning string

	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store is a concurrency-safe map of sessions keyed by conversation ID.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]Session
}

// NewStore creates a store whose sessions live for ttl after their last
// update. A non-positive ttl uses DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

// Get returns the stored session, expired or not. Callers check Expired.
func (s *Store) Get(conversationID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[conversationID]
	return sess, ok
}

// Active returns the session only when it has not expired. Expired
// sessions are dropped.
func (s *Store) Active(conversationID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[conversationID]
	if !ok {
		return Session{}, false
	}
	if sess.Expired(s.now()) {
		delete(s.sessions, conversationID)
		return Session{}, false
	}
	return sess, true
}

// Put stores sess and renews its expiry.
func (s *Store) Put(sess Session) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess.UpdatedAt = now
	sess.ExpiresAt = now.Add(s.ttl)
	s.sessions[sess.ConversationID] = sess
	return sess
}

// Delete forgets the conversation.
func (s *Store) Delete(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, conversationID)
}

// Sweep drops every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
