package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"fixdesk/internal/location/models"
	dErrors "fixdesk/pkg/domain-errors"
	"fixdesk/pkg/platform/sentinel"
)

// CatalogStore is the store surface the resolver consumes.
type CatalogStore interface {
	ListRegions(ctx context.Context) ([]models.Region, error)
	ListDistrictsByRegion(ctx context.Context, regionName string) ([]models.District, error)
	ListInstitutionsByDistrict(ctx context.Context, districtName string) ([]models.Institution, error)
	FindRegionByName(ctx context.Context, name string) (models.Region, error)
	FindDistrictsByName(ctx context.Context, name string) ([]models.District, error)
	FindInstitutionsByName(ctx context.Context, name string) ([]models.Institution, error)
	CreateInstitution(ctx context.Context, districtID int64, name string) (models.Institution, error)
	DeactivateInstitution(ctx context.Context, id int64) error
}

// Service validates and looks up region → district → institution chains.
type Service struct {
	store  CatalogStore
	logger *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New constructs a Service.
func New(store CatalogStore, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListRegions returns active regions in display order.
func (s *Service) ListRegions(ctx context.Context) ([]models.Region, error) {
	regions, err := s.store.ListRegions(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list regions")
	}
	return regions, nil
}

// ListDistricts returns active districts under the named region. An unknown
// region name yields an empty result, not an error—callers treat that as
// "no such region" and re-prompt.
func (s *Service) ListDistricts(ctx context.Context, regionName string) ([]models.District, error) {
	districts, err := s.store.ListDistrictsByRegion(ctx, strings.TrimSpace(regionName))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list districts")
	}
	return districts, nil
}

// ListInstitutions returns active institutions under the named district.
func (s *Service) ListInstitutions(ctx context.Context, districtName string) ([]models.Institution, error) {
	institutions, err := s.store.ListInstitutionsByDistrict(ctx, strings.TrimSpace(districtName))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list institutions")
	}
	return institutions, nil
}

// ResolveChain validates that the three names nest consistently: the
// institution's district must belong to the district's region. Used to
// validate admin-entered triples outside the guided dialog.
//
// An unknown region name is NotFound; names that exist but do not nest are
// InvalidChain, so callers can re-prompt with a precise message.
func (s *Service) ResolveChain(ctx context.Context, regionName, districtName, institutionName string) (*models.Chain, error) {
	regionName = strings.TrimSpace(regionName)
	districtName = strings.TrimSpace(districtName)
	institutionName = strings.TrimSpace(institutionName)

	region, err := s.store.FindRegionByName(ctx, regionName)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "region %q not found", regionName)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve region")
	}

	districts, err := s.store.FindDistrictsByName(ctx, districtName)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve district")
	}
	if len(districts) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "district %q not found", districtName)
	}
	district, ok := districtInRegion(districts, region.ID)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidChain, "district %q does not belong to region %q", districtName, regionName)
	}

	institutions, err := s.store.FindInstitutionsByName(ctx, institutionName)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve institution")
	}
	if len(institutions) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "institution %q not found", institutionName)
	}
	institution, ok := institutionInDistrict(institutions, district.ID)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidChain, "institution %q does not belong to district %q", institutionName, districtName)
	}

	return &models.Chain{Region: region, District: district, Institution: institution}, nil
}

// AddInstitution creates an institution under a validated region/district
// pair. Admin-only at the call site.
func (s *Service) AddInstitution(ctx context.Context, regionName, districtName, name string) (*models.Institution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "institution name cannot be empty")
	}

	region, err := s.store.FindRegionByName(ctx, strings.TrimSpace(regionName))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "region %q not found", regionName)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve region")
	}
	districts, err := s.store.FindDistrictsByName(ctx, strings.TrimSpace(districtName))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve district")
	}
	district, ok := districtInRegion(districts, region.ID)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidChain, "district %q does not belong to region %q", districtName, regionName)
	}

	inst, err := s.store.CreateInstitution(ctx, district.ID, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "institution %q already exists in %s", name, district.Name)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create institution")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "institution added",
			"region", region.Name, "district", district.Name, "institution", inst.Name)
	}
	return &inst, nil
}

// RemoveInstitution deactivates an institution resolved by its full chain.
// Existing requests keep their denormalized institution name.
func (s *Service) RemoveInstitution(ctx context.Context, regionName, districtName, name string) error {
	chain, err := s.ResolveChain(ctx, regionName, districtName, name)
	if err != nil {
		return err
	}
	if err := s.store.DeactivateInstitution(ctx, chain.Institution.ID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "institution %q not found", name)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove institution")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "institution removed",
			"region", chain.Region.Name, "district", chain.District.Name, "institution", name)
	}
	return nil
}

func districtInRegion(districts []models.District, regionID int64) (models.District, bool) {
	for _, d := range districts {
		if d.RegionID == regionID {
			return d, true
		}
	}
	return models.District{}, false
}

func institutionInDistrict(institutions []models.Institution, districtID int64) (models.Institution, bool) {
	for _, inst := range institutions {
		if inst.DistrictID == districtID {
			return inst, true
		}
	}
	return models.Institution{}, false
}
