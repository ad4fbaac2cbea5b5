//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"fixdesk/internal/platform/postgres"
	"fixdesk/internal/request/models"
	"fixdesk/pkg/platform/sentinel"
	"fixdesk/pkg/testutil/containers"
)

type PostgresRequestSuite struct {
	suite.Suite
	store       *PostgresStore
	pg          *containers.PostgresContainer
	submitterID uuid.UUID
}

func TestPostgresRequestSuite(t *testing.T) {
	suite.Run(t, new(PostgresRequestSuite))
}

func (s *PostgresRequestSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	require.NoError(s.T(), postgres.EnsureSchema(context.Background(), s.pg.DB))
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresRequestSuite) SetupTest() {
	_, err := s.pg.DB.Exec(`TRUNCATE requests, parties CASCADE`)
	require.NoError(s.T(), err)

	s.submitterID = uuid.New()
	_, err = s.pg.DB.Exec(`
		INSERT INTO parties (id, principal_id, role, region, district, institution,
			full_name, position, phone, is_active, created_at)
		VALUES ($1, $2, 'submitter', 'Tashkent', 'Mirabad District', 'School No. 10',
			'A. Submitter', 'Nurse', '', TRUE, NOW())
	`, s.submitterID, time.Now().UnixNano())
	require.NoError(s.T(), err)
}

func (s *PostgresRequestSuite) newRequest() *models.Request {
	r, err := models.NewRequest(uuid.New(), s.submitterID,
		"Tashkent", "Mirabad District", "School No. 10",
		"printer jam", "2nd floor, room 14", "D. Rashidov", time.Now().UTC())
	require.NoError(s.T(), err)
	return r
}

func (s *PostgresRequestSuite) TestCreateAndFindRoundTrip() {
	ctx := context.Background()
	r := s.newRequest()
	require.NoError(s.T(), s.store.Create(ctx, r))

	got, err := s.store.FindByID(ctx, r.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), r.Reason, got.Reason)
	require.Equal(s.T(), models.StatusPending, got.Status)
	require.Equal(s.T(), int64(1), got.Version)
	require.Nil(s.T(), got.Resolution)
}

func (s *PostgresRequestSuite) TestUpdateStatusVersionCheck() {
	ctx := context.Background()
	r := s.newRequest()
	require.NoError(s.T(), s.store.Create(ctx, r))

	first := r.Clone()
	second := r.Clone()

	first.Status = models.StatusCompleted
	first.Resolution = &models.Resolution{
		ResolvedBy: s.submitterID,
		Equipment:  "PC-14",
		Narrative:  "reinstalled driver",
		ResolvedAt: time.Now().UTC(),
	}
	first.UpdatedAt = time.Now().UTC()
	require.NoError(s.T(), s.store.UpdateStatus(ctx, &first))
	require.Equal(s.T(), int64(2), first.Version)

	// The second writer still holds version 1 and must lose.
	second.Status = models.StatusNotCompleted
	second.UpdatedAt = time.Now().UTC()
	err := s.store.UpdateStatus(ctx, &second)
	require.ErrorIs(s.T(), err, sentinel.ErrConflict)

	got, err := s.store.FindByID(ctx, r.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), models.StatusCompleted, got.Status)
	require.NotNil(s.T(), got.Resolution)
	require.Equal(s.T(), "PC-14", got.Resolution.Equipment)
}

func (s *PostgresRequestSuite) TestUpdateStatusMissingRequest() {
	r := s.newRequest()
	r.Status = models.StatusInProgress
	err := s.store.UpdateStatus(context.Background(), r)
	require.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *PostgresRequestSuite) TestListActiveScopedAndOrdered() {
	ctx := context.Background()

	older := s.newRequest()
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	older.UpdatedAt = older.CreatedAt
	require.NoError(s.T(), s.store.Create(ctx, older))

	newer := s.newRequest()
	require.NoError(s.T(), s.store.Create(ctx, newer))

	closed := s.newRequest()
	require.NoError(s.T(), s.store.Create(ctx, closed))
	closed.Status = models.StatusCompleted
	closed.Resolution = &models.Resolution{
		ResolvedBy: s.submitterID, Equipment: "x", Narrative: "y", ResolvedAt: time.Now().UTC(),
	}
	require.NoError(s.T(), s.store.UpdateStatus(ctx, closed))

	active, err := s.store.ListActive(ctx, "School No. 10")
	require.NoError(s.T(), err)
	require.Len(s.T(), active, 2)
	require.Equal(s.T(), newer.ID, active[0].ID)
	require.Equal(s.T(), older.ID, active[1].ID)

	none, err := s.store.ListActive(ctx, "School No. 44")
	require.NoError(s.T(), err)
	require.Empty(s.T(), none)
}

func (s *PostgresRequestSuite) TestCountByStatusAndRange() {
	ctx := context.Background()
	r := s.newRequest()
	require.NoError(s.T(), s.store.Create(ctx, r))

	counts, err := s.store.CountByStatus(ctx, "School No. 10")
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, counts[models.StatusPending])

	window, err := s.store.ListCreatedBetween(ctx,
		time.Now().UTC().Add(-time.Minute), time.Now().UTC().Add(time.Minute))
	require.NoError(s.T(), err)
	require.Len(s.T(), window, 1)

	empty, err := s.store.ListCreatedBetween(ctx,
		time.Now().UTC().Add(-2*time.Hour), time.Now().UTC().Add(-time.Hour))
	require.NoError(s.T(), err)
	require.Empty(s.T(), empty)
}
