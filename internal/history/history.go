// Package history keeps a short rolling conversation per text channel.
package history

import (
	"sync"

	"github.com/foxseedlab/kotodama/internal/llm"
)

const DefaultMaxMessages = 6

type Store struct {
	mu       sync.Mutex
	max      int
	channels map[string][]llm.Message
}

func NewStore(maxMessages int) *Store {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Store{
		max:      maxMessages,
		channels: make(map[string][]llm.Message),
	}
}

// Push appends a turn and evicts the oldest ones beyond the limit.
func (s *Store) Push(channelID string, role llm.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.channels[channelID], llm.Message{Role: role, Content: content})
	if over := len(turns) - s.max; over > 0 {
		turns = append([]llm.Message(nil), turns[over:]...)
	}
	s.channels[channelID] = turns
}

// Get returns a copy of the channel's turns, oldest first.
func (s *Store) Get(channelID string) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.channels[channelID]
	out := make([]llm.Message, len(turns))
	copy(out, turns)
	return out
}

func (s *Store) Len(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels[channelID])
}

func (s *Store) Clear(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channelID)
}
