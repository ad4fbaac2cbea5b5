package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type flakySender struct {
	mu        sync.Mutex
	delivered []int64
	failFor   int64
}

func (s *flakySender) Send(_ context.Context, notice Notice) error {
	if notice.Recipient == s.failFor {
		return errors.New("recipient unreachable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, notice.Recipient)
	return nil
}

func TestBroadcastDeliveriesAreIndependent(t *testing.T) {
	sender := &flakySender{failFor: 2}
	d := NewDispatcher(sender, nil)

	results := d.Broadcast(context.Background(), []Notice{
		{Recipient: 1, Subject: "s"},
		{Recipient: 2, Subject: "s"},
		{Recipient: 3, Subject: "s"},
	})

	require.Len(t, results, 3)
	byRecipient := make(map[int64]error, len(results))
	for _, r := range results {
		byRecipient[r.Recipient] = r.Err
	}
	require.NoError(t, byRecipient[1])
	require.Error(t, byRecipient[2])
	require.NoError(t, byRecipient[3])
	require.ElementsMatch(t, []int64{1, 3}, sender.delivered)
}

func TestBroadcastEmpty(t *testing.T) {
	d := NewDispatcher(&flakySender{}, nil)
	require.Empty(t, d.Broadcast(context.Background(), nil))
}
