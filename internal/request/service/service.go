// Package service implements the request lifecycle engine: submission,
// status transitions with per-institution authorization, resolution
// stamping, and the notification fan-out around both.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fixdesk/internal/audit"
	"fixdesk/internal/notify"
	partymodels "fixdesk/internal/party/models"
	"fixdesk/internal/request/metrics"
	"fixdesk/internal/request/models"
	dErrors "fixdesk/pkg/domain-errors"
	"fixdesk/pkg/platform/sentinel"
)

// RequestStore is the persistence surface the engine consumes.
type RequestStore interface {
	Create(ctx context.Context, r *models.Request) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	UpdateStatus(ctx context.Context, r *models.Request) error
	ListActive(ctx context.Context, institution string) ([]models.Request, error)
	ListForSubmitter(ctx context.Context, submitterID uuid.UUID, limit int) ([]models.Request, error)
	CountByStatus(ctx context.Context, institution string) (map[models.Status]int, error)
}

// Directory is the slice of the party directory the engine needs: resolving
// acting/owning parties and finding fan-out recipients.
type Directory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*partymodels.Party, error)
	ListByRole(ctx context.Context, role partymodels.Role) ([]partymodels.Party, error)
	ListTechniciansAt(ctx context.Context, region, district, institution string) ([]partymodels.Party, error)
}

type Notifier interface {
	Broadcast(ctx context.Context, notices []notify.Notice) []notify.Result
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service owns every request mutation. Nothing else writes status or
// resolution fields.
type Service struct {
	store          RequestStore
	directory      Directory
	notifier       Notifier
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time
}

func New(store RequestStore, directory Directory, opts ...Option) *Service {
	s := &Service{store: store, directory: directory, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitInput carries the fields collected by the submission dialog. The
// location triple comes from the submitter's assignment and is frozen into
// the request.
type SubmitInput struct {
	Region      string
	District    string
	Institution string
	Reason      string
	FloorRoom   string
	SubmittedBy string
}

// ResolutionInput is the closing payload required for terminal transitions.
type ResolutionInput struct {
	Equipment string
	Narrative string
}

// Submit creates a pending request owned by the submitter party and fans a
// detail notice out to every admin and to the technicians assigned to the
// request's institution.
func (s *Service) Submit(ctx context.Context, submitterID uuid.UUID, in SubmitInput) (*models.Request, error) {
	submitter, err := s.directory.FindByID(ctx, submitterID)
	if err != nil {
		return nil, err
	}
	if !submitter.Active {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "submitter party is deactivated")
	}

	r, err := models.NewRequest(uuid.New(), submitter.ID,
		in.Region, in.District, in.Institution,
		in.Reason, in.FloorRoom, in.SubmittedBy, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create request")
	}

	s.logAudit(ctx, audit.Event{
		Action:         audit.ActionRequestSubmitted,
		ActorPrincipal: submitter.PrincipalID,
		PartyID:        submitter.ID.String(),
		RequestID:      r.ID.String(),
		Institution:    r.Institution,
	})
	if s.metrics != nil {
		s.metrics.Submitted.Inc()
	}
	s.fanOutSubmitted(ctx, r)
	return r, nil
}

// Transition moves a request to target. The acting party must be an active
// technician or admin assigned to the request's institution. Terminal
// targets require a complete resolution payload, which is stamped exactly
// once, atomically with the status change.
func (s *Service) Transition(ctx context.Context, actingPartyID, requestID uuid.UUID, target models.Status, resolution *ResolutionInput) (*models.Request, error) {
	if !target.Valid() || target == models.StatusPending {
		return nil, dErrors.Newf(dErrors.CodeValidation, "cannot transition to %q", target)
	}

	r, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find request")
	}

	actor, err := s.directory.FindByID(ctx, actingPartyID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, r); err != nil {
		s.countRejection("unauthorized")
		return nil, err
	}

	if r.Status.Terminal() {
		s.countRejection("already_resolved")
		return nil, dErrors.Newf(dErrors.CodeConflict, "request is already %s", r.Status)
	}
	if !r.Status.CanTransitionTo(target) {
		s.countRejection("illegal_transition")
		return nil, dErrors.Newf(dErrors.CodeValidation, "cannot move from %s to %s", r.Status, target)
	}

	if target.Terminal() {
		if resolution == nil || resolution.Equipment == "" || resolution.Narrative == "" {
			s.countRejection("incomplete_resolution")
			return nil, dErrors.New(dErrors.CodeIncompleteResolution,
				"a terminal transition needs both an equipment id and a resolution narrative")
		}
		r.Resolution = &models.Resolution{
			ResolvedBy: actor.ID,
			Equipment:  resolution.Equipment,
			Narrative:  resolution.Narrative,
			ResolvedAt: s.now(),
		}
	} else if resolution != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "a resolution payload only accompanies a terminal transition")
	}

	previous := r.Status
	r.Status = target
	r.UpdatedAt = s.now()
	if err := s.store.UpdateStatus(ctx, r); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			s.countRejection("version_conflict")
			return nil, dErrors.New(dErrors.CodeConflict, "request was transitioned concurrently")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update request")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "request transitioned",
			slog.String("request_id", r.ID.String()),
			slog.String("from", string(previous)),
			slog.String("to", string(target)))
	}
	s.logAudit(ctx, audit.Event{
		Action:         audit.ActionRequestTransition,
		ActorPrincipal: actor.PrincipalID,
		PartyID:        actor.ID.String(),
		RequestID:      r.ID.String(),
		Institution:    r.Institution,
		Detail:         string(target),
	})
	if s.metrics != nil {
		s.metrics.Transitioned.WithLabelValues(string(target)).Inc()
	}
	s.fanOutTransitioned(ctx, r, actor)
	return r, nil
}

// ListActive returns pending and in-progress requests, newest first. An
// empty institution is the unscoped admin view.
func (s *Service) ListActive(ctx context.Context, institution string) ([]models.Request, error) {
	out, err := s.store.ListActive(ctx, institution)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active requests")
	}
	return out, nil
}

const defaultHistoryLimit = 10

// ListForSubmitter returns the party's most recent requests, newest first.
func (s *Service) ListForSubmitter(ctx context.Context, submitterID uuid.UUID, limit int) ([]models.Request, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	out, err := s.store.ListForSubmitter(ctx, submitterID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return out, nil
}

// Stats returns per-status counts for one institution, or all institutions
// when institution is empty. Every status appears, zero counts included.
func (s *Service) Stats(ctx context.Context, institution string) (map[models.Status]int, error) {
	counts, err := s.store.CountByStatus(ctx, institution)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count requests")
	}
	for _, status := range models.Statuses {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return counts, nil
}

// authorize enforces the transition rule: technicians and admins only, and
// the actor's assignment must match the request's institution. Admins carry
// the unscoped sentinel assignment, so they are equally bound; granting
// them an override is a product decision this engine does not take.
func (s *Service) authorize(actor *partymodels.Party, r *models.Request) error {
	if !actor.Active {
		return dErrors.New(dErrors.CodeUnauthorized, "acting party is deactivated")
	}
	switch actor.Role {
	case partymodels.RoleTechnician, partymodels.RoleAdmin:
	case partymodels.RoleSubmitter:
		return dErrors.New(dErrors.CodeUnauthorized, "submitters cannot transition requests")
	default:
		return dErrors.Newf(dErrors.CodeUnauthorized, "unknown role %q", actor.Role)
	}
	if actor.Institution != r.Institution {
		return dErrors.New(dErrors.CodeUnauthorized, "request belongs to a different institution")
	}
	return nil
}

func (s *Service) fanOutSubmitted(ctx context.Context, r *models.Request) {
	if s.notifier == nil {
		return
	}
	fields := map[string]string{
		"request_id":  r.ID.String(),
		"short_id":    r.ShortID(),
		"region":      r.Region,
		"district":    r.District,
		"institution": r.Institution,
		"reason":      r.Reason,
		"floor_room":  r.FloorRoom,
		"reported_by": r.SubmittedBy,
	}

	var notices []notify.Notice
	admins, err := s.directory.ListByRole(ctx, partymodels.RoleAdmin)
	if err != nil {
		s.logFanOutLookupFailure(ctx, r, err)
	}
	for _, admin := range admins {
		notices = append(notices, notify.Notice{
			Recipient: admin.PrincipalID,
			Subject:   "request_submitted",
			Fields:    fields,
		})
	}
	technicians, err := s.directory.ListTechniciansAt(ctx, r.Region, r.District, r.Institution)
	if err != nil {
		s.logFanOutLookupFailure(ctx, r, err)
	}
	for _, tech := range technicians {
		notices = append(notices, notify.Notice{
			Recipient: tech.PrincipalID,
			Subject:   "request_submitted",
			Fields:    fields,
		})
	}
	s.notifier.Broadcast(ctx, notices)
}

func (s *Service) fanOutTransitioned(ctx context.Context, r *models.Request, actor *partymodels.Party) {
	if s.notifier == nil {
		return
	}
	statusFields := map[string]string{
		"request_id": r.ID.String(),
		"short_id":   r.ShortID(),
		"status":     string(r.Status),
	}
	if r.Resolution != nil {
		statusFields["equipment"] = r.Resolution.Equipment
		statusFields["narrative"] = r.Resolution.Narrative
	}

	var notices []notify.Notice
	if submitter, err := s.directory.FindByID(ctx, r.SubmitterID); err == nil {
		notices = append(notices, notify.Notice{
			Recipient: submitter.PrincipalID,
			Subject:   "request_status_changed",
			Fields:    statusFields,
		})
	} else {
		s.logFanOutLookupFailure(ctx, r, err)
	}

	if r.Status.Terminal() {
		auditFields := map[string]string{
			"request_id":  r.ID.String(),
			"short_id":    r.ShortID(),
			"status":      string(r.Status),
			"resolved_by": actor.FullName,
			"institution": r.Institution,
		}
		admins, err := s.directory.ListByRole(ctx, partymodels.RoleAdmin)
		if err != nil {
			s.logFanOutLookupFailure(ctx, r, err)
		}
		for _, admin := range admins {
			notices = append(notices, notify.Notice{
				Recipient: admin.PrincipalID,
				Subject:   "request_resolved",
				Fields:    auditFields,
			})
		}
	}
	s.notifier.Broadcast(ctx, notices)
}

func (s *Service) logFanOutLookupFailure(ctx context.Context, r *models.Request, err error) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, "fan-out recipient lookup failed",
			slog.String("request_id", r.ID.String()),
			slog.String("error", err.Error()))
	}
}

func (s *Service) countRejection(reason string) {
	if s.metrics != nil {
		s.metrics.TransitionErr.WithLabelValues(reason).Inc()
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", slog.String("error", err.Error()))
	}
}
