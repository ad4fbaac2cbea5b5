//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"fixdesk/internal/conversation/models"
	"fixdesk/pkg/platform/sentinel"
	"fixdesk/pkg/testutil/containers"
)

type RedisConversationSuite struct {
	suite.Suite
	store *Redis
	rd    *containers.RedisContainer
}

func TestRedisConversationSuite(t *testing.T) {
	suite.Run(t, new(RedisConversationSuite))
}

func (s *RedisConversationSuite) SetupSuite() {
	s.rd = containers.NewRedisContainer(s.T())
	s.store = NewRedis(s.rd.Client)
}

func (s *RedisConversationSuite) SetupTest() {
	require.NoError(s.T(), s.rd.Client.FlushAll(context.Background()).Err())
}

func (s *RedisConversationSuite) TestSaveAndFindRoundTrip() {
	ctx := context.Background()
	conv := models.Conversation{
		PrincipalID: 42,
		ScriptID:    "request_submission",
		Step:        2,
		Fields:      map[string]string{"region": "Tashkent", "district": "Mirabad District"},
		StartedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(s.T(), s.store.Save(ctx, conv))

	got, err := s.store.Find(ctx, 42)
	require.NoError(s.T(), err)
	require.Equal(s.T(), conv, *got)
}

func (s *RedisConversationSuite) TestSaveSetsExpiry() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.Save(ctx, models.Conversation{PrincipalID: 7, ScriptID: "resolution"}))

	ttl, err := s.rd.Client.TTL(ctx, "conversation:7").Result()
	require.NoError(s.T(), err)
	require.Greater(s.T(), ttl, time.Duration(0))
	require.LessOrEqual(s.T(), ttl, conversationTTL)
}

func (s *RedisConversationSuite) TestFindMissingConversation() {
	_, err := s.store.Find(context.Background(), 404)
	require.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}

func (s *RedisConversationSuite) TestDeleteIsIdempotent() {
	ctx := context.Background()
	require.NoError(s.T(), s.store.Save(ctx, models.Conversation{PrincipalID: 9, ScriptID: "resolution"}))
	require.NoError(s.T(), s.store.Delete(ctx, 9))
	require.NoError(s.T(), s.store.Delete(ctx, 9))

	_, err := s.store.Find(ctx, 9)
	require.ErrorIs(s.T(), err, sentinel.ErrNotFound)
}
