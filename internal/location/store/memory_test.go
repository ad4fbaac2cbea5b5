package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"fixdesk/pkg/platform/sentinel"
)

type CatalogStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *CatalogStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.Require().NoError(SeedCatalog(s.ctx, s.store))
}

func TestCatalogStoreSuite(t *testing.T) {
	suite.Run(t, new(CatalogStoreSuite))
}

func (s *CatalogStoreSuite) TestSeedIsIdempotent() {
	before, err := s.store.CountRegions(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(SeedCatalog(s.ctx, s.store))

	after, err := s.store.CountRegions(s.ctx)
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *CatalogStoreSuite) TestListings() {
	s.Run("lists active regions", func() {
		regions, err := s.store.ListRegions(s.ctx)
		s.Require().NoError(err)
		s.Len(regions, 4)
	})

	s.Run("lists districts for a known region", func() {
		districts, err := s.store.ListDistrictsByRegion(s.ctx, "Tashkent")
		s.Require().NoError(err)
		s.Len(districts, 4)
	})

	s.Run("unknown region yields empty result, not error", func() {
		districts, err := s.store.ListDistrictsByRegion(s.ctx, "Atlantis")
		s.Require().NoError(err)
		s.Empty(districts)
	})

	s.Run("lists institutions for a known district", func() {
		institutions, err := s.store.ListInstitutionsByDistrict(s.ctx, "Mirabad District")
		s.Require().NoError(err)
		s.Len(institutions, 2)
	})
}

func (s *CatalogStoreSuite) TestInstitutionLifecycle() {
	districts, err := s.store.FindDistrictsByName(s.ctx, "Payarik District")
	s.Require().NoError(err)
	s.Require().Len(districts, 1)

	s.Run("creates a new institution", func() {
		inst, err := s.store.CreateInstitution(s.ctx, districts[0].ID, "School No. 11")
		s.Require().NoError(err)
		s.True(inst.Active)
	})

	s.Run("rejects a duplicate name within the district", func() {
		_, err := s.store.CreateInstitution(s.ctx, districts[0].ID, "School No. 10")
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("deactivation hides it from listings", func() {
		institutions, err := s.store.FindInstitutionsByName(s.ctx, "School No. 10")
		s.Require().NoError(err)
		s.Require().Len(institutions, 1)

		s.Require().NoError(s.store.DeactivateInstitution(s.ctx, institutions[0].ID))

		listed, err := s.store.ListInstitutionsByDistrict(s.ctx, "Payarik District")
		s.Require().NoError(err)
		for _, inst := range listed {
			s.NotEqual("School No. 10", inst.Name)
		}
	})

	s.Run("deactivating twice is NotFound", func() {
		institutions, err := s.store.FindInstitutionsByName(s.ctx, "Kindergarten No. 5")
		s.Require().NoError(err)
		s.Require().Len(institutions, 1)
		s.Require().NoError(s.store.DeactivateInstitution(s.ctx, institutions[0].ID))
		s.Require().ErrorIs(s.store.DeactivateInstitution(s.ctx, institutions[0].ID), sentinel.ErrNotFound)
	})
}
