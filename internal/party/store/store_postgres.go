package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"fixdesk/internal/party/models"
	"fixdesk/pkg/platform/sentinel"
)

// PostgresStore persists parties in PostgreSQL.
// This store is pure I/O—role and location rules belong in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const partyColumns = `id, principal_id, role, region, district, institution, full_name, position, phone, is_active, created_at`

func scanParty(row interface{ Scan(...any) error }) (*models.Party, error) {
	var p models.Party
	err := row.Scan(&p.ID, &p.PrincipalID, &p.Role, &p.Region, &p.District,
		&p.Institution, &p.FullName, &p.Position, &p.Phone, &p.Active, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Party) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parties (`+partyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (principal_id) DO NOTHING
	`, p.ID, p.PrincipalID, p.Role, p.Region, p.District, p.Institution,
		p.FullName, p.Position, p.Phone, p.Active, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create party: %w", err)
	}
	// ON CONFLICT DO NOTHING swallows the duplicate; detect it explicitly so
	// the uniqueness invariant surfaces as a typed error.
	existing, err := s.FindByPrincipal(ctx, p.PrincipalID)
	if err != nil {
		return fmt.Errorf("create party readback: %w", err)
	}
	if existing.ID != p.ID {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Party) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE parties
		SET role = $2, region = $3, district = $4, institution = $5,
		    full_name = $6, position = $7, phone = $8, is_active = $9
		WHERE id = $1
	`, p.ID, p.Role, p.Region, p.District, p.Institution,
		p.FullName, p.Position, p.Phone, p.Active)
	if err != nil {
		return fmt.Errorf("update party: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update party: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	p, err := scanParty(s.db.QueryRowContext(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find party: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByPrincipal(ctx context.Context, principalID int64) (*models.Party, error) {
	p, err := scanParty(s.db.QueryRowContext(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE principal_id = $1`, principalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find party by principal: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListActiveByRole(ctx context.Context, role models.Role) ([]models.Party, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+partyColumns+` FROM parties
		WHERE role = $1 AND is_active = TRUE
		ORDER BY created_at
	`, role)
	if err != nil {
		return nil, fmt.Errorf("list parties by role: %w", err)
	}
	return collectParties(rows)
}

func (s *PostgresStore) ListActiveByAssignment(ctx context.Context, role models.Role, region, district, institution string) ([]models.Party, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+partyColumns+` FROM parties
		WHERE role = $1 AND is_active = TRUE
		  AND region = $2 AND district = $3 AND institution = $4
		ORDER BY created_at
	`, role, region, district, institution)
	if err != nil {
		return nil, fmt.Errorf("list parties by assignment: %w", err)
	}
	return collectParties(rows)
}

func collectParties(rows *sql.Rows) ([]models.Party, error) {
	defer rows.Close()
	var out []models.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
