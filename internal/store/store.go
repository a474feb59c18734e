// Package store owns the canonical in-memory timeline for one channel.
// The owning session is the single logical writer; the mutex only protects
// against concurrent readers (render layer, realtime callbacks).
package store

import (
	"sort"
	"sync"

	"chatsync/internal/models"
)

// AppendListener is notified after a message is newly appended (not for
// dedupe no-ops or in-place updates).
type AppendListener func(models.Message)

// Store is the authoritative ordered collection of view models for one
// channel. Messages are kept sorted ascending by CreatedAt at all times;
// updates mutate fields in place and never reorder.
type Store struct {
	mu       sync.RWMutex
	messages []models.Message
	index    map[string]int
	onAppend AppendListener
}

func New() *Store {
	return &Store{
		index: make(map[string]int),
	}
}

// SetAppendListener registers the listener invoked for each new append.
// Must be called before the store is shared.
func (s *Store) SetAppendListener(fn AppendListener) {
	s.onAppend = fn
}

// ReplaceAll swaps in a full, internally consistent snapshot (a completed
// channel refetch). It returns the messages that were not present before,
// so the caller can drive unread accounting for arrivals discovered by the
// refetch rather than by a push event.
func (s *Store) ReplaceAll(messages []models.Message) []models.Message {
	s.mu.Lock()

	previous := s.index
	s.messages = make([]models.Message, len(messages))
	copy(s.messages, messages)
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
	s.reindex()

	var appended []models.Message
	for _, m := range s.messages {
		if _, existed := previous[m.ID]; !existed {
			appended = append(appended, m)
		}
	}
	listener := s.onAppend
	s.mu.Unlock()

	if listener != nil {
		for _, m := range appended {
			listener(m)
		}
	}
	return appended
}

// UpsertOne inserts a message in sorted position by CreatedAt. If a message
// with the same id already exists the call is a no-op and returns false;
// this guards the race where an optimistic local echo and the server's
// confirmed row both arrive for the same logical message.
func (s *Store) UpsertOne(m models.Message) bool {
	s.mu.Lock()

	if _, exists := s.index[m.ID]; exists {
		s.mu.Unlock()
		return false
	}

	pos := sort.Search(len(s.messages), func(i int) bool {
		return s.messages[i].CreatedAt.After(m.CreatedAt)
	})
	s.messages = append(s.messages, models.Message{})
	copy(s.messages[pos+1:], s.messages[pos:])
	s.messages[pos] = m
	s.reindexFrom(pos)

	listener := s.onAppend
	s.mu.Unlock()

	if listener != nil {
		listener(m)
	}
	return true
}

// UpdateOne refreshes an existing message's fields in place, keeping its
// position. Unknown ids are ignored (the next refetch reconciles).
func (s *Store) UpdateOne(m models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, exists := s.index[m.ID]
	if !exists {
		return false
	}
	// Position is keyed by CreatedAt, which never changes for a given id.
	m.CreatedAt = s.messages[pos].CreatedAt
	s.messages[pos] = m
	return true
}

// MarkDeleted tombstones a message. Deleted messages are excluded from
// Visible but retained so dedupe still holds for late echo events.
func (s *Store) MarkDeleted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, exists := s.index[id]
	if !exists {
		return false
	}
	s.messages[pos].IsDeleted = true
	return true
}

// Visible returns the rendered sequence: non-deleted messages ascending by
// CreatedAt. The slice is a copy and safe to hold across store mutations.
func (s *Store) Visible() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if !m.IsDeleted {
			out = append(out, m)
		}
	}
	return out
}

// Get returns a message by id, deleted or not.
func (s *Store) Get(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, exists := s.index[id]
	if !exists {
		return models.Message{}, false
	}
	return s.messages[pos], true
}

// IDs returns the ids of all stored messages in timeline order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.ID
	}
	return out
}

// Len counts all stored messages, tombstones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// LatestFrom returns the newest non-deleted message from the given sender.
func (s *Store) LatestFrom(senderID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].SenderID == senderID && !s.messages[i].IsDeleted {
			return s.messages[i], true
		}
	}
	return models.Message{}, false
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.messages))
	for i, m := range s.messages {
		s.index[m.ID] = i
	}
}

func (s *Store) reindexFrom(pos int) {
	for i := pos; i < len(s.messages); i++ {
		s.index[s.messages[i].ID] = i
	}
}
