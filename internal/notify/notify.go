// Package notify delivers structured notices to chat principals. Delivery is
// best effort and independent per recipient: one unreachable recipient never
// blocks the others and never rolls back the state change that triggered the
// fan-out.
package notify

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Notice is a transport-agnostic message. The core never formats
// chat-specific markup; the transport renders Subject and Fields.
type Notice struct {
	Recipient int64             `json:"recipient"` // external principal id
	Subject   string            `json:"subject"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Sender is implemented by the transport collaborator.
type Sender interface {
	Send(ctx context.Context, notice Notice) error
}

// Result records the delivery outcome for one recipient. Failures are kept
// explicit instead of silently swallowed.
type Result struct {
	Recipient int64
	Err       error
}

// Dispatcher fans notices out to their recipients.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
}

// maxInFlight bounds concurrent deliveries per broadcast.
const maxInFlight = 8

func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, logger: logger}
}

// Broadcast delivers every notice concurrently and returns one Result per
// notice. It never returns an error: a DeliveryFailure is data, not a fault
// of the triggering operation.
func (d *Dispatcher) Broadcast(ctx context.Context, notices []Notice) []Result {
	results := make([]Result, len(notices))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	for i, n := range notices {
		g.Go(func() error {
			err := d.sender.Send(ctx, n)
			results[i] = Result{Recipient: n.Recipient, Err: err}
			if err != nil && d.logger != nil {
				d.logger.WarnContext(ctx, "notice delivery failed",
					"recipient", n.Recipient,
					"subject", n.Subject,
					"error", err,
				)
			}
			return nil // deliveries are independent; never cancel siblings
		})
	}
	_ = g.Wait()
	return results
}
