package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fixdesk/internal/location/models"
	"fixdesk/pkg/platform/sentinel"
)

// PostgresStore persists the location catalog in PostgreSQL.
// This store is pure I/O—chain validation belongs in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListRegions(ctx context.Context) ([]models.Region, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, is_active FROM regions
		WHERE is_active = TRUE
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer rows.Close()

	var out []models.Region
	for rows.Next() {
		var r models.Region
		if err := rows.Scan(&r.ID, &r.Name, &r.Active); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListDistrictsByRegion(ctx context.Context, regionName string) ([]models.District, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.name, d.region_id, d.is_active
		FROM districts d
		JOIN regions r ON r.id = d.region_id
		WHERE r.name = $1 AND r.is_active = TRUE AND d.is_active = TRUE
		ORDER BY d.id
	`, regionName)
	if err != nil {
		return nil, fmt.Errorf("list districts: %w", err)
	}
	defer rows.Close()

	var out []models.District
	for rows.Next() {
		var d models.District
		if err := rows.Scan(&d.ID, &d.Name, &d.RegionID, &d.Active); err != nil {
			return nil, fmt.Errorf("scan district: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListInstitutionsByDistrict(ctx context.Context, districtName string) ([]models.Institution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.name, i.district_id, i.is_active
		FROM institutions i
		JOIN districts d ON d.id = i.district_id
		WHERE d.name = $1 AND d.is_active = TRUE AND i.is_active = TRUE
		ORDER BY i.id
	`, districtName)
	if err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	defer rows.Close()

	var out []models.Institution
	for rows.Next() {
		var inst models.Institution
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.DistrictID, &inst.Active); err != nil {
			return nil, fmt.Errorf("scan institution: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindRegionByName(ctx context.Context, name string) (models.Region, error) {
	var r models.Region
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, is_active FROM regions
		WHERE name = $1 AND is_active = TRUE
	`, name).Scan(&r.ID, &r.Name, &r.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Region{}, sentinel.ErrNotFound
		}
		return models.Region{}, fmt.Errorf("find region: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindDistrictsByName(ctx context.Context, name string) ([]models.District, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, region_id, is_active FROM districts
		WHERE name = $1 AND is_active = TRUE
	`, name)
	if err != nil {
		return nil, fmt.Errorf("find districts by name: %w", err)
	}
	defer rows.Close()

	var out []models.District
	for rows.Next() {
		var d models.District
		if err := rows.Scan(&d.ID, &d.Name, &d.RegionID, &d.Active); err != nil {
			return nil, fmt.Errorf("scan district: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindInstitutionsByName(ctx context.Context, name string) ([]models.Institution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, district_id, is_active FROM institutions
		WHERE name = $1 AND is_active = TRUE
	`, name)
	if err != nil {
		return nil, fmt.Errorf("find institutions by name: %w", err)
	}
	defer rows.Close()

	var out []models.Institution
	for rows.Next() {
		var inst models.Institution
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.DistrictID, &inst.Active); err != nil {
			return nil, fmt.Errorf("scan institution: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateRegion(ctx context.Context, name string) (models.Region, error) {
	var r models.Region
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO regions (name, is_active) VALUES ($1, TRUE)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, is_active
	`, name).Scan(&r.ID, &r.Name, &r.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Region{}, sentinel.ErrAlreadyUsed
		}
		return models.Region{}, fmt.Errorf("create region: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) CreateDistrict(ctx context.Context, regionID int64, name string) (models.District, error) {
	var d models.District
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO districts (name, region_id, is_active) VALUES ($1, $2, TRUE)
		ON CONFLICT (region_id, name) DO NOTHING
		RETURNING id, name, region_id, is_active
	`, name, regionID).Scan(&d.ID, &d.Name, &d.RegionID, &d.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.District{}, sentinel.ErrAlreadyUsed
		}
		return models.District{}, fmt.Errorf("create district: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) CreateInstitution(ctx context.Context, districtID int64, name string) (models.Institution, error) {
	var inst models.Institution
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO institutions (name, district_id, is_active) VALUES ($1, $2, TRUE)
		ON CONFLICT (district_id, name) DO UPDATE SET is_active = TRUE
		WHERE institutions.is_active = FALSE
		RETURNING id, name, district_id, is_active
	`, name, districtID).Scan(&inst.ID, &inst.Name, &inst.DistrictID, &inst.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Institution{}, sentinel.ErrAlreadyUsed
		}
		return models.Institution{}, fmt.Errorf("create institution: %w", err)
	}
	return inst, nil
}

func (s *PostgresStore) DeactivateInstitution(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE institutions SET is_active = FALSE
		WHERE id = $1 AND is_active = TRUE
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate institution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate institution: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountRegions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM regions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count regions: %w", err)
	}
	return n, nil
}
