package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"fixdesk/internal/party/models"
	"fixdesk/pkg/platform/sentinel"
)

// InMemory keeps parties in process memory. It intentionally favors clarity
// over performance.
type InMemory struct {
	mu          sync.RWMutex
	byID        map[uuid.UUID]models.Party
	byPrincipal map[int64]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:        make(map[uuid.UUID]models.Party),
		byPrincipal: make(map[int64]uuid.UUID),
	}
}

// Create enforces the one-party-per-principal invariant.
func (s *InMemory) Create(_ context.Context, p *models.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPrincipal[p.PrincipalID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.byID[p.ID] = *p
	s.byPrincipal[p.PrincipalID] = p.ID
	return nil
}

func (s *InMemory) Update(_ context.Context, p *models.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[p.ID] = *p
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.byID[id]; ok {
		return &p, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByPrincipal(_ context.Context, principalID int64) (*models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byPrincipal[principalID]; ok {
		p := s.byID[id]
		return &p, nil
	}
	return nil, sentinel.ErrNotFound
}

// ListActiveByRole returns active parties with the role, in registration order.
func (s *InMemory) ListActiveByRole(_ context.Context, role models.Role) ([]models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Party
	for _, p := range s.byID {
		if p.Active && p.Role == role {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListActiveByAssignment returns active parties with the role whose
// region/district/institution triple matches exactly.
func (s *InMemory) ListActiveByAssignment(_ context.Context, role models.Role, region, district, institution string) ([]models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Party
	for _, p := range s.byID {
		if p.Active && p.Role == role && p.AssignedTo(region, district, institution) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
