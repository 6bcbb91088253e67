package reconcile

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"smartasset/internal/cache"
)

// Sessions maps a session id to its buffer. Idle sessions expire after ttl and
// the least recently used session is dropped once max is exceeded.
type Sessions struct {
	mu      sync.Mutex // serialises get-or-create
	buffers *cache.LRUCache[*Buffer]
}

func NewSessions(max int, ttl time.Duration, opts ...cache.Option[*Buffer]) *Sessions {
	opts = append([]cache.Option[*Buffer]{cache.WithSlidingExpiry[*Buffer]()}, opts...)
	return &Sessions{buffers: cache.NewLRUCache[*Buffer](max, ttl, opts...)}
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// Get returns the buffer for id, creating an empty one on first use.
func (s *Sessions) Get(id string) *Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buffers.Get(id); ok {
		return b
	}
	b := NewBuffer()
	s.buffers.Set(id, b)
	return b
}

// Lookup returns the buffer for id without creating one.
func (s *Sessions) Lookup(id string) (*Buffer, bool) {
	return s.buffers.Get(id)
}

// End destroys the session and its pending drafts.
func (s *Sessions) End(id string) {
	s.buffers.Delete(id)
}

func (s *Sessions) Len() int {
	return s.buffers.Size()
}

// Cache exposes the backing cache so it can be registered for periodic cleanup.
func (s *Sessions) Cache() *cache.LRUCache[*Buffer] {
	return s.buffers
}
