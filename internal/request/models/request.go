package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "fixdesk/pkg/domain-errors"
)

// Status is a request's position in its lifecycle.
//
//	pending → in_progress → completed | not_completed
//	pending → completed | not_completed
//
// The two terminal statuses have no outgoing transitions; a closed request
// is never reopened.
type Status string

const (
	StatusPending      Status = "pending"
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
	StatusNotCompleted Status = "not_completed"
)

// Statuses lists every status in lifecycle order. Reporting iterates this
// so summaries always show all four rows, zero counts included.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusNotCompleted}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusNotCompleted:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusNotCompleted
}

// CanTransitionTo reports whether target is a legal next status from s.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusInProgress || target.Terminal()
	case StatusInProgress:
		return target.Terminal()
	}
	return false
}

// ParseStatus maps external input to a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown status %q", raw)
	}
	return s, nil
}

// Resolution is the closing payload of a terminal request. It is only ever
// constructed together with the transition into a terminal status, so a
// request can never be partially resolved.
type Resolution struct {
	ResolvedBy uuid.UUID
	Equipment  string
	Narrative  string
	ResolvedAt time.Time
}

// Request is one reported facility problem.
//
// Invariants:
//   - Status moves only along CanTransitionTo edges
//   - Region/District/Institution are captured at submission and never
//     change afterwards, independent of the submitter's later assignment
//   - Resolution is non-nil exactly when Status is terminal
//   - Version increments on every status change; stores reject an update
//     whose version does not match the stored row
type Request struct {
	ID          uuid.UUID
	SubmitterID uuid.UUID
	Region      string
	District    string
	Institution string
	Reason      string
	FloorRoom   string
	SubmittedBy string
	Status      Status
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Resolution  *Resolution
}

// NewRequest validates and constructs a pending request.
func NewRequest(id, submitterID uuid.UUID, region, district, institution, reason, floorRoom, submittedBy string, now time.Time) (*Request, error) {
	region, district, institution = strings.TrimSpace(region), strings.TrimSpace(district), strings.TrimSpace(institution)
	if region == "" || district == "" || institution == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a request needs a full location triple")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reason cannot be empty")
	}
	floorRoom = strings.TrimSpace(floorRoom)
	if floorRoom == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "floor/room cannot be empty")
	}
	submittedBy = strings.TrimSpace(submittedBy)
	if submittedBy == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "submitter name cannot be empty")
	}
	return &Request{
		ID:          id,
		SubmitterID: submitterID,
		Region:      region,
		District:    district,
		Institution: institution,
		Reason:      reason,
		FloorRoom:   floorRoom,
		SubmittedBy: submittedBy,
		Status:      StatusPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Clone returns a copy safe to mutate, with its own Resolution.
func (r Request) Clone() Request {
	out := r
	if r.Resolution != nil {
		res := *r.Resolution
		out.Resolution = &res
	}
	return out
}

func (r *Request) ShortID() string {
	return fmt.Sprintf("%.8s", r.ID.String())
}
