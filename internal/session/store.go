// Package session keeps per-session chat transcripts in process memory.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tablechat/tablechat/internal/chat"
)

type Transcript struct {
	ID        string
	Messages  []chat.Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Seeded reports whether the transcript already carries its system turn.
func (t *Transcript) Seeded() bool {
	return len(t.Messages) > 0
}

func (t *Transcript) clone() Transcript {
	cloned := *t
	cloned.Messages = append([]chat.Message(nil), t.Messages...)
	return cloned
}

type Store interface {
	// With runs fn while holding the exclusive lock of session id, creating
	// an empty transcript first if needed. Turns of one session never interleave.
	With(ctx context.Context, id string, fn func(*Transcript) error) error
	Get(id string) (Transcript, bool)
	Reset(id string) bool
	ResetAll() int
	IDs() []string
}

type Option func(*MemoryStore)

func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

type entry struct {
	mu         sync.Mutex
	transcript Transcript
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: map[string]*entry{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) With(ctx context.Context, id string, fn func(*Transcript) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	before := len(e.transcript.Messages)
	err := fn(&e.transcript)
	if len(e.transcript.Messages) != before {
		e.transcript.UpdatedAt = s.now()
	}
	return err
}

func (s *MemoryStore) Get(id string) (Transcript, bool) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return Transcript{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transcript.clone(), true
}

// Reset drops the transcript of id. A turn already running for id finishes
// against the dropped transcript.
func (s *MemoryStore) Reset(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func (s *MemoryStore) ResetAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := len(s.sessions)
	s.sessions = map[string]*entry{}
	return count
}

func (s *MemoryStore) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *MemoryStore) entry(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		now := s.now()
		e = &entry{transcript: Transcript{ID: id, CreatedAt: now, UpdatedAt: now}}
		s.sessions[id] = e
	}
	return e
}
