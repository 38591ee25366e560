package api

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/rescanio/rescan/internal/document"
	"github.com/rescanio/rescan/internal/page"
)

// Session binds an open document handle to a transport-level ID. The core
// packages never see session IDs; the registry lives here so the core stays
// stateless between calls.
type Session struct {
	ID       string
	Filename string
	Doc      *document.Document

	mu       sync.Mutex
	bounds   []page.BoundsResult
	lastUsed time.Time
}

// Bounds returns the cached bounds, extracting them on first use after the
// document is unlocked.
func (s *Session) Bounds() ([]page.BoundsResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bounds != nil {
		return s.bounds, nil
	}
	b, err := s.Doc.ExtractBounds()
	if err != nil {
		return nil, err
	}
	s.bounds = b
	return b, nil
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Session) idle() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastUsed)
}

// SessionStore is a thread-safe registry of open documents with TTL
// eviction. Evicted and deleted sessions close their document handle.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

func (st *SessionStore) Put(s *Session) {
	s.touch()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

func (st *SessionStore) Get(id string) *Session {
	st.mu.Lock()
	s := st.sessions[id]
	st.mu.Unlock()
	if s != nil {
		s.touch()
	}
	return s
}

// Delete removes a session and closes its document.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	s := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if s != nil {
		s.Doc.Close()
	}
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Cleanup evicts idle sessions.
func (st *SessionStore) Cleanup() {
	st.mu.Lock()
	var evict []*Session
	for id, s := range st.sessions {
		if s.idle() > st.ttl {
			evict = append(evict, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()
	for _, s := range evict {
		s.Doc.Close()
	}
}

// CloseAll closes every open session; used on shutdown.
func (st *SessionStore) CloseAll() {
	st.mu.Lock()
	sessions := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()
	for _, s := range sessions {
		s.Doc.Close()
	}
}

// NewSessionID derives a session ID from upload content and time.
func NewSessionID(data []byte, filename string) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s-%d-%x", filename, time.Now().UnixNano(), sha256.Sum256(data)))
	return fmt.Sprintf("%x", h[:12])
}
