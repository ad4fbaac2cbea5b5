package store

import (
	"context"
	"fmt"

	"fixdesk/internal/location/models"
)

// Seedable is the store surface first-run seeding needs. Both the memory and
// the postgres store satisfy it.
type Seedable interface {
	CountRegions(ctx context.Context) (int, error)
	CreateRegion(ctx context.Context, name string) (models.Region, error)
	CreateDistrict(ctx context.Context, regionID int64, name string) (models.District, error)
	CreateInstitution(ctx context.Context, districtID int64, name string) (models.Institution, error)
}

type seedDistrict struct {
	name         string
	institutions []string
}

type seedRegion struct {
	name      string
	districts []seedDistrict
}

var sampleCatalog = []seedRegion{
	{
		name: "Tashkent",
		districts: []seedDistrict{
			{name: "Mirabad District", institutions: []string{"Family Polyclinic No. 1", "Family Polyclinic No. 2"}},
			{name: "Yunusabad District", institutions: []string{"City Hospital No. 1", "City Hospital No. 2"}},
			{name: "Shaykhantakhur District", institutions: []string{"Ministry of Education"}},
			{name: "Chilanzar District", institutions: []string{"State University"}},
		},
	},
	{
		name: "Tashkent Region",
		districts: []seedDistrict{
			{name: "Yukorichirchik District", institutions: []string{"Kindergarten No. 5"}},
		},
	},
	{
		name: "Samarkand Region",
		districts: []seedDistrict{
			{name: "Payarik District", institutions: []string{"School No. 10"}},
		},
	},
	{
		name: "Bukhara Region",
	},
}

// SeedCatalog populates the sample region/district/institution catalog on an
// empty store. A store that already holds regions is left untouched.
func SeedCatalog(ctx context.Context, s Seedable) error {
	count, err := s.CountRegions(ctx)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, sr := range sampleCatalog {
		region, err := s.CreateRegion(ctx, sr.name)
		if err != nil {
			return fmt.Errorf("seed region %q: %w", sr.name, err)
		}
		for _, sd := range sr.districts {
			district, err := s.CreateDistrict(ctx, region.ID, sd.name)
			if err != nil {
				return fmt.Errorf("seed district %q: %w", sd.name, err)
			}
			for _, name := range sd.institutions {
				if _, err := s.CreateInstitution(ctx, district.ID, name); err != nil {
					return fmt.Errorf("seed institution %q: %w", name, err)
				}
			}
		}
	}
	return nil
}
