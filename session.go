package libris

import (
	"sync"

	"github.com/google/uuid"

	"github.com/libris-ai/libris/src/models"
)

// ReadingCursor tracks which book is open in the reader and the byte offset
// for the next chunk fetch. It lives only in process memory.
type ReadingCursor struct {
	BookID int64
	Offset int
}

// Session is the explicit per-conversation context: the turn history the
// loop reads and commits to, plus the reading cursor. It is created at
// session start and cleared on explicit reset; nothing here is persisted.
type Session struct {
	ID string

	mu      sync.Mutex
	turns   []models.Turn
	reading ReadingCursor
}

// NewSession creates an empty session with a fresh identifier.
func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// Turns returns a snapshot of the conversation history.
func (s *Session) Turns() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Turn(nil), s.turns...)
}

// Len reports the number of committed turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Reset clears the conversation history and the reading cursor.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.reading = ReadingCursor{}
}

// Reading returns the current reading cursor.
func (s *Session) Reading() ReadingCursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading
}

// SetReading replaces the reading cursor.
func (s *Session) SetReading(c ReadingCursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = c
}

func (s *Session) appendTurn(role models.Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, models.Turn{Role: role, Text: text})
}

// rollbackUser removes the most recent turn if it is a user turn, so a
// failed turn never pollutes the context sent on the next call.
func (s *Session) rollbackUser() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.turns); n > 0 && s.turns[n-1].Role == models.RoleUser {
		s.turns = s.turns[:n-1]
	}
}
