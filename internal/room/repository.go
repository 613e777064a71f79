package room

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"

	"github.com/mcdev12/quizroom/internal/models"
)

// codeAlphabet omits easily-confused characters (0/O, 1/I/L).
const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// Store is the in-memory collection of live rooms plus a reverse index from
// live connection id to room code, so disconnect cleanup is a single lookup
// instead of a scan over all rooms. Constructed once per process and owned by
// the lifecycle engine; nothing else writes it.
type Store struct {
	mu       sync.RWMutex
	rooms    map[string]*models.Room
	connRoom map[string]string
}

// NewStore creates an empty room store.
func NewStore() *Store {
	return &Store{
		rooms:    make(map[string]*models.Room),
		connRoom: make(map[string]string),
	}
}

// NormalizeCode uppercases a caller-supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewCode generates a room code that is unique among live rooms,
// regenerating on collision.
func (s *Store) NewCode() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for attempts := 0; attempts < 10; attempts++ {
		b := make([]byte, codeLength)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		code := make([]byte, codeLength)
		for i := range code {
			code[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
		}
		if _, taken := s.rooms[string(code)]; !taken {
			return string(code), nil
		}
	}
	return "", fmt.Errorf("could not generate a unique room code")
}

// Put inserts or replaces a room under its code.
func (s *Store) Put(r *models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.Code] = r
}

// Get returns the live room for a code, if any. The code is normalized first.
func (s *Store) Get(code string) (*models.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[NormalizeCode(code)]
	return r, ok
}

// Delete removes a room and every reverse-index entry pointing at it.
func (s *Store) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	for conn, c := range s.connRoom {
		if c == code {
			delete(s.connRoom, conn)
		}
	}
}

// Bind records which room a live connection belongs to.
func (s *Store) Bind(connID, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connRoom[connID] = code
}

// Unbind drops a connection from the reverse index.
func (s *Store) Unbind(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connRoom, connID)
}

// RoomCodeFor resolves the room a connection is bound to.
func (s *Store) RoomCodeFor(connID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.connRoom[connID]
	return code, ok
}

// Count returns the number of live rooms.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
