package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fixdesk/internal/request/models"
	"fixdesk/pkg/platform/sentinel"
)

// InMemory is the process-local request store used in tests and dev runs.
type InMemory struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]models.Request
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[uuid.UUID]models.Request)}
}

func (s *InMemory) Create(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.byID[r.ID] = r.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := r.Clone()
	return &out, nil
}

// UpdateStatus persists the request's status, resolution and updated-at if
// the stored row still carries r.Version, then increments the version. A
// version mismatch means a concurrent transition won; the caller gets
// sentinel.ErrConflict and must refresh.
func (s *InMemory) UpdateStatus(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != r.Version {
		return sentinel.ErrConflict
	}
	next := r.Clone()
	next.Version++
	s.byID[r.ID] = next
	r.Version = next.Version
	return nil
}

// ListActive returns pending and in-progress requests, newest first.
// An empty institution means unscoped.
func (s *InMemory) ListActive(_ context.Context, institution string) ([]models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Request
	for _, r := range s.byID {
		if r.Status.Terminal() {
			continue
		}
		if institution != "" && r.Institution != institution {
			continue
		}
		out = append(out, r.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

// ListForSubmitter returns the submitter's most recent requests, newest
// first, capped at limit.
func (s *InMemory) ListForSubmitter(_ context.Context, submitterID uuid.UUID, limit int) ([]models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Request
	for _, r := range s.byID {
		if r.SubmitterID == submitterID {
			out = append(out, r.Clone())
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByStatus tallies one institution's requests per status.
func (s *InMemory) CountByStatus(_ context.Context, institution string) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Status]int, len(models.Statuses))
	for _, r := range s.byID {
		if institution != "" && r.Institution != institution {
			continue
		}
		counts[r.Status]++
	}
	return counts, nil
}

// ListCreatedBetween returns requests created within the closed interval,
// oldest first.
func (s *InMemory) ListCreatedBetween(_ context.Context, from, to time.Time) ([]models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Request
	for _, r := range s.byID {
		if r.CreatedAt.Before(from) || r.CreatedAt.After(to) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func sortNewestFirst(rs []models.Request) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].CreatedAt.After(rs[j].CreatedAt) })
}
