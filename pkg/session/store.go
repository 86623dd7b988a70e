package session

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

type StoreConfig struct {
	TTL          time.Duration // idle time after which a session is dropped
	MemoryWindow int           // chain memory size in messages
	Now          func() time.Time
	Rand         *rand.Rand
}

// Store keeps sessions in memory. Nothing survives a restart.
type Store struct {
	config StoreConfig

	mu       sync.RWMutex
	sessions map[string]*Session
	randMu   sync.Mutex
}

func NewStore(config StoreConfig) *Store {
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	if config.MemoryWindow == 0 {
		config.MemoryWindow = 10
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Rand == nil {
		config.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Store{
		config:   config,
		sessions: make(map[string]*Session),
	}
}

func (st *Store) Create() *Session {
	// rand.Rand is not safe for concurrent use
	st.randMu.Lock()
	s := newSession(uuid.NewString(), st.config.MemoryWindow, st.config.Rand, st.config.Now())
	st.randMu.Unlock()

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns a live session and marks it as used. Expired sessions are
// removed and reported as not found.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	now := st.config.Now()
	if now.Sub(s.lastTouched()) >= st.config.TTL {
		st.Delete(id)
		return nil, ErrSessionNotFound
	}
	s.touch(now)
	return s, nil
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// NewRound starts a fresh game round for s using the store's random source.
func (st *Store) NewRound(s *Session) {
	st.randMu.Lock()
	defer st.randMu.Unlock()
	s.NewRound(st.config.Rand)
}

// Sweep drops every expired session and returns how many were removed.
func (st *Store) Sweep() int {
	now := st.config.Now()

	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if now.Sub(s.lastTouched()) >= st.config.TTL {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
