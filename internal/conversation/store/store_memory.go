package store

import (
	"context"
	"sync"

	"fixdesk/internal/conversation/models"
	"fixdesk/pkg/platform/sentinel"
)

// InMemory keeps open conversations in process memory. Dialog state only
// ever represents not-yet-committed input, so losing it on restart is
// acceptable; use the Redis store when continuity across restarts matters.
type InMemory struct {
	mu    sync.RWMutex
	byPID map[int64]models.Conversation
}

func NewInMemory() *InMemory {
	return &InMemory{byPID: make(map[int64]models.Conversation)}
}

func (s *InMemory) Save(_ context.Context, conv models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPID[conv.PrincipalID] = conv.Clone()
	return nil
}

func (s *InMemory) Find(_ context.Context, principalID int64) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.byPID[principalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := conv.Clone()
	return &out, nil
}

// Delete closes the principal's conversation. Deleting an already closed
// conversation is a no-op.
func (s *InMemory) Delete(_ context.Context, principalID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byPID, principalID)
	return nil
}
