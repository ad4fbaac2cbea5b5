package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fixdesk/internal/request/models"
	"fixdesk/pkg/platform/sentinel"
)

// PostgresStore persists requests in PostgreSQL. Transition serialization
// rides on the version column: UpdateStatus only matches the row at the
// caller's version, so of two concurrent transitions exactly one commits.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, submitter_id, region, district, institution, reason, floor_room,
	submitted_by, status, version, created_at, updated_at,
	resolved_by, resolution_equipment, resolution_narrative, resolved_at`

func scanRequest(row interface{ Scan(...any) error }) (*models.Request, error) {
	var (
		r          models.Request
		resolvedBy sql.Null[uuid.UUID]
		equipment  sql.NullString
		narrative  sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.SubmitterID, &r.Region, &r.District, &r.Institution,
		&r.Reason, &r.FloorRoom, &r.SubmittedBy, &r.Status, &r.Version,
		&r.CreatedAt, &r.UpdatedAt, &resolvedBy, &equipment, &narrative, &resolvedAt)
	if err != nil {
		return nil, err
	}
	if resolvedBy.Valid {
		r.Resolution = &models.Resolution{
			ResolvedBy: resolvedBy.V,
			Equipment:  equipment.String,
			Narrative:  narrative.String,
			ResolvedAt: resolvedAt.Time,
		}
	}
	return &r, nil
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Request) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, submitter_id, region, district, institution, reason,
			floor_room, submitted_by, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, r.ID, r.SubmitterID, r.Region, r.District, r.Institution, r.Reason,
		r.FloorRoom, r.SubmittedBy, r.Status, r.Version, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	return r, nil
}

// UpdateStatus commits a transition with an optimistic version check. A
// zero-row update against an existing request means another transition got
// there first; the caller gets sentinel.ErrConflict.
func (s *PostgresStore) UpdateStatus(ctx context.Context, r *models.Request) error {
	var (
		resolvedBy any
		equipment  any
		narrative  any
		resolvedAt any
	)
	if r.Resolution != nil {
		resolvedBy = r.Resolution.ResolvedBy
		equipment = r.Resolution.Equipment
		narrative = r.Resolution.Narrative
		resolvedAt = r.Resolution.ResolvedAt
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET status = $3, updated_at = $4, version = version + 1,
		    resolved_by = $5, resolution_equipment = $6,
		    resolution_narrative = $7, resolved_at = $8
		WHERE id = $1 AND version = $2
	`, r.ID, r.Version, r.Status, r.UpdatedAt, resolvedBy, equipment, narrative, resolvedAt)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if affected == 0 {
		if _, err := s.FindByID(ctx, r.ID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	r.Version++
	return nil
}

func (s *PostgresStore) ListActive(ctx context.Context, institution string) ([]models.Request, error) {
	query := `
		SELECT ` + requestColumns + ` FROM requests
		WHERE status IN ($1, $2)`
	args := []any{models.StatusPending, models.StatusInProgress}
	if institution != "" {
		query += ` AND institution = $3`
		args = append(args, institution)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active requests: %w", err)
	}
	return collectRequests(rows)
}

func (s *PostgresStore) ListForSubmitter(ctx context.Context, submitterID uuid.UUID, limit int) ([]models.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE submitter_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, submitterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list requests for submitter: %w", err)
	}
	return collectRequests(rows)
}

func (s *PostgresStore) CountByStatus(ctx context.Context, institution string) (map[models.Status]int, error) {
	query := `SELECT status, COUNT(*) FROM requests`
	var args []any
	if institution != "" {
		query += ` WHERE institution = $1`
		args = append(args, institution)
	}
	query += ` GROUP BY status`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count requests by status: %w", err)
	}
	defer rows.Close()
	counts := make(map[models.Status]int, len(models.Statuses))
	for rows.Next() {
		var (
			status models.Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStore) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]models.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list requests by range: %w", err)
	}
	return collectRequests(rows)
}

func collectRequests(rows *sql.Rows) ([]models.Request, error) {
	defer rows.Close()
	var out []models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
