package store

import (
	"context"
	"sync"

	"fixdesk/internal/location/models"
	"fixdesk/pkg/platform/sentinel"
)

// InMemory keeps the catalog in process memory. It favors clarity over
// performance; catalog sizes are small by nature.
type InMemory struct {
	mu           sync.RWMutex
	nextID       int64
	regions      []models.Region
	districts    []models.District
	institutions []models.Institution
}

func NewInMemory() *InMemory {
	return &InMemory{nextID: 1}
}

func (s *InMemory) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *InMemory) ListRegions(_ context.Context) ([]models.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Region
	for _, r := range s.regions {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemory) ListDistrictsByRegion(_ context.Context, regionName string) ([]models.District, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.District
	for _, r := range s.regions {
		if !r.Active || r.Name != regionName {
			continue
		}
		for _, d := range s.districts {
			if d.Active && d.RegionID == r.ID {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

func (s *InMemory) ListInstitutionsByDistrict(_ context.Context, districtName string) ([]models.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Institution
	for _, d := range s.districts {
		if !d.Active || d.Name != districtName {
			continue
		}
		for _, inst := range s.institutions {
			if inst.Active && inst.DistrictID == d.ID {
				out = append(out, inst)
			}
		}
	}
	return out, nil
}

func (s *InMemory) FindRegionByName(_ context.Context, name string) (models.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.regions {
		if r.Active && r.Name == name {
			return r, nil
		}
	}
	return models.Region{}, sentinel.ErrNotFound
}

// FindDistrictsByName returns every active district carrying the name,
// regardless of region. Callers decide whether any of them nests correctly.
func (s *InMemory) FindDistrictsByName(_ context.Context, name string) ([]models.District, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.District
	for _, d := range s.districts {
		if d.Active && d.Name == name {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *InMemory) FindInstitutionsByName(_ context.Context, name string) ([]models.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Institution
	for _, inst := range s.institutions {
		if inst.Active && inst.Name == name {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (s *InMemory) CreateRegion(_ context.Context, name string) (models.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.regions {
		if r.Name == name {
			return models.Region{}, sentinel.ErrAlreadyUsed
		}
	}
	r := models.Region{ID: s.id(), Name: name, Active: true}
	s.regions = append(s.regions, r)
	return r, nil
}

func (s *InMemory) CreateDistrict(_ context.Context, regionID int64, name string) (models.District, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.districts {
		if d.RegionID == regionID && d.Name == name {
			return models.District{}, sentinel.ErrAlreadyUsed
		}
	}
	d := models.District{ID: s.id(), Name: name, RegionID: regionID, Active: true}
	s.districts = append(s.districts, d)
	return d, nil
}

func (s *InMemory) CreateInstitution(_ context.Context, districtID int64, name string) (models.Institution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.institutions {
		if inst.DistrictID == districtID && inst.Name == name && inst.Active {
			return models.Institution{}, sentinel.ErrAlreadyUsed
		}
	}
	inst := models.Institution{ID: s.id(), Name: name, DistrictID: districtID, Active: true}
	s.institutions = append(s.institutions, inst)
	return inst, nil
}

func (s *InMemory) DeactivateInstitution(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, inst := range s.institutions {
		if inst.ID == id && inst.Active {
			s.institutions[i].Active = false
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *InMemory) CountRegions(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regions), nil
}
