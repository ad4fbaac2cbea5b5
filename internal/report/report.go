// Package report aggregates request history over a date range. It computes
// counts and percentages and returns full detail strings; truncation and
// layout belong to whatever renders the document.
package report

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	partymodels "fixdesk/internal/party/models"
	requestmodels "fixdesk/internal/request/models"
	dErrors "fixdesk/pkg/domain-errors"
)

// NotApplicable fills detail columns a request has no value for, such as
// the equipment id of a still-open request.
const NotApplicable = "n/a"

// RequestSource is the slice of the request store the aggregator reads.
type RequestSource interface {
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]requestmodels.Request, error)
}

// PartySource resolves submitter names for detail rows.
type PartySource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*partymodels.Party, error)
}

// StatusLine is one summary row: how many requests ended the range in the
// status, and their share of the total. Percent carries one decimal and is
// 0 when the range is empty.
type StatusLine struct {
	Status  requestmodels.Status
	Count   int
	Percent float64
}

// Row is one request's detail line.
type Row struct {
	ID            uuid.UUID
	SubmitterName string
	Region        string
	District      string
	Institution   string
	Reason        string
	Equipment     string
	Narrative     string
	Status        requestmodels.Status
	CreatedAt     time.Time
}

// Summary is the aggregate over one closed date interval.
type Summary struct {
	From  time.Time
	To    time.Time
	Total int
	Lines []StatusLine
	Rows  []Row
}

type Option func(*Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// Aggregator builds range summaries from persisted request state.
type Aggregator struct {
	requests RequestSource
	parties  PartySource
	logger   *slog.Logger
}

func New(requests RequestSource, parties PartySource, opts ...Option) *Aggregator {
	a := &Aggregator{requests: requests, parties: parties}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildRange aggregates every request created within [from, to]. Both
// bounds are inclusive.
func (a *Aggregator) BuildRange(ctx context.Context, from, to time.Time) (*Summary, error) {
	if to.Before(from) {
		return nil, dErrors.New(dErrors.CodeValidation, "range end precedes range start")
	}
	requests, err := a.requests.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load requests for range")
	}

	summary := &Summary{From: from, To: to, Total: len(requests)}

	counts := make(map[requestmodels.Status]int, len(requestmodels.Statuses))
	for _, r := range requests {
		counts[r.Status]++
		summary.Rows = append(summary.Rows, a.row(ctx, r))
	}
	for _, status := range requestmodels.Statuses {
		summary.Lines = append(summary.Lines, StatusLine{
			Status:  status,
			Count:   counts[status],
			Percent: percent(counts[status], summary.Total),
		})
	}
	return summary, nil
}

func (a *Aggregator) row(ctx context.Context, r requestmodels.Request) Row {
	row := Row{
		ID:            r.ID,
		SubmitterName: NotApplicable,
		Region:        r.Region,
		District:      r.District,
		Institution:   r.Institution,
		Reason:        r.Reason,
		Equipment:     NotApplicable,
		Narrative:     NotApplicable,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
	}
	if submitter, err := a.parties.FindByID(ctx, r.SubmitterID); err == nil {
		row.SubmitterName = submitter.FullName
	} else if a.logger != nil {
		a.logger.WarnContext(ctx, "report submitter lookup failed",
			slog.String("request_id", r.ID.String()),
			slog.String("error", err.Error()))
	}
	if r.Resolution != nil {
		row.Equipment = r.Resolution.Equipment
		row.Narrative = r.Resolution.Narrative
	}
	return row
}

// percent returns count's share of total with one decimal, and 0 for an
// empty range rather than a division fault.
func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}
