package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingSink struct {
	calls int
}

func (s *failingSink) Publish(_ context.Context, _ Event) error {
	s.calls++
	return errors.New("broker unreachable")
}

func TestPublisherEmit(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps timestamp and appends to store", func(t *testing.T) {
		pub := NewPublisher(NewInMemoryStore(), nil)

		err := pub.Emit(ctx, Event{
			Action:         ActionRequestSubmitted,
			ActorPrincipal: 100,
			Institution:    "School No. 10",
		})
		require.NoError(t, err)

		events, err := pub.List(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, ActionRequestSubmitted, events[0].Action)
		require.False(t, events[0].Timestamp.IsZero())
	})

	t.Run("sink failure does not fail the emit", func(t *testing.T) {
		sink := &failingSink{}
		pub := NewPublisher(NewInMemoryStore(), sink)

		err := pub.Emit(ctx, Event{Action: ActionPartyPromoted, ActorPrincipal: 900})
		require.NoError(t, err)
		require.Equal(t, 1, sink.calls)

		events, err := pub.List(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
	})
}
