package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"fixdesk/internal/audit"
	"fixdesk/internal/notify"
	"fixdesk/internal/party/metrics"
	"fixdesk/internal/party/models"
	dErrors "fixdesk/pkg/domain-errors"
	"fixdesk/pkg/platform/sentinel"
)

// PartyStore is the store surface the directory consumes.
type PartyStore interface {
	Create(ctx context.Context, p *models.Party) error
	Update(ctx context.Context, p *models.Party) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Party, error)
	FindByPrincipal(ctx context.Context, principalID int64) (*models.Party, error)
	ListActiveByRole(ctx context.Context, role models.Role) ([]models.Party, error)
	ListActiveByAssignment(ctx context.Context, role models.Role, region, district, institution string) ([]models.Party, error)
}

// Notifier fans notices out best-effort.
type Notifier interface {
	Broadcast(ctx context.Context, notices []notify.Notice) []notify.Result
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the party directory: it owns registration, role changes, and
// technician removal.
type Service struct {
	store           PartyStore
	notifier        Notifier
	logger          *slog.Logger
	auditPublisher  AuditPublisher
	metrics         *metrics.Metrics
	adminPrincipals []int64
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBootstrapAdmins sets the fixed allow-list of principal ids permitted
// to claim the admin role without an existing admin vouching for them.
func WithBootstrapAdmins(principalIDs []int64) Option {
	return func(s *Service) {
		s.adminPrincipals = principalIDs
	}
}

// New constructs a Service.
func New(store PartyStore, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput carries the collected registration fields.
type RegisterInput struct {
	PrincipalID int64
	Role        models.Role
	Region      string
	District    string
	Institution string
	FullName    string
	Position    string
	Phone       string
}

// FindByID resolves a party id. Deactivated parties still resolve so
// historical request references stay auditable.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "party not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find party")
	}
	return p, nil
}

// FindByPrincipal resolves a chat principal to its party, if registered.
func (s *Service) FindByPrincipal(ctx context.Context, principalID int64) (*models.Party, error) {
	p, err := s.store.FindByPrincipal(ctx, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "party not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find party")
	}
	return p, nil
}

// Register creates a new party. A second registration for the same principal
// fails with Conflict. Registering a technician notifies every active admin;
// delivery failures are logged, never rolled back against the registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Party, error) {
	p, err := models.NewParty(uuid.New(), in.PrincipalID, in.Role,
		in.Region, in.District, in.Institution, in.FullName, in.Position, in.Phone, time.Now())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "principal is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register party")
	}

	s.logAudit(ctx, audit.Event{
		Action:         audit.ActionPartyRegistered,
		ActorPrincipal: in.PrincipalID,
		PartyID:        p.ID.String(),
		Institution:    p.Institution,
		Detail:         string(p.Role),
	})
	if s.metrics != nil {
		s.metrics.Registered.WithLabelValues(string(p.Role)).Inc()
	}

	if p.Role == models.RoleTechnician {
		s.notifyAdminsOfTechnician(ctx, p)
	}
	return p, nil
}

// PromoteToAdmin elevates a principal to admin. Authorized when the acting
// principal is on the bootstrap allow-list or is an existing active admin.
// An unregistered principal on the allow-list gets a fresh admin party—this
// is how the first admin enters the system.
func (s *Service) PromoteToAdmin(ctx context.Context, actingPrincipal int64, principalID int64, fullName string) (*models.Party, error) {
	if !s.isBootstrapAdmin(actingPrincipal) {
		actor, err := s.store.FindByPrincipal(ctx, actingPrincipal)
		if err != nil || !actor.Active || actor.Role != models.RoleAdmin {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "only admins may promote")
		}
	}

	existing, err := s.store.FindByPrincipal(ctx, principalID)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin {
			return existing, nil // already there; promotion is a no-op
		}
		existing.Role = models.RoleAdmin
		existing.Region = models.UnscopedLocation
		existing.District = models.UnscopedLocation
		existing.Institution = models.UnscopedLocation
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to promote party")
		}
		s.logAudit(ctx, audit.Event{
			Action:         audit.ActionPartyPromoted,
			ActorPrincipal: actingPrincipal,
			PartyID:        existing.ID.String(),
		})
		return existing, nil
	case errors.Is(err, sentinel.ErrNotFound):
		if fullName == "" {
			fullName = fmt.Sprintf("Administrator %d", principalID)
		}
		admin, err := models.NewParty(uuid.New(), principalID, models.RoleAdmin,
			"", "", "", fullName, "Administrator", "", time.Now())
		if err != nil {
			return nil, err
		}
		if err := s.store.Create(ctx, admin); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create admin party")
		}
		s.logAudit(ctx, audit.Event{
			Action:         audit.ActionPartyPromoted,
			ActorPrincipal: actingPrincipal,
			PartyID:        admin.ID.String(),
		})
		return admin, nil
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up principal")
	}
}

// ProvisionTechnician creates a technician party on behalf of an admin (the
// admin-driven provisioning dialog). The target principal must not be
// registered yet.
func (s *Service) ProvisionTechnician(ctx context.Context, actingPrincipal int64, in RegisterInput) (*models.Party, error) {
	if err := s.requireAdmin(ctx, actingPrincipal); err != nil {
		return nil, err
	}
	in.Role = models.RoleTechnician
	if in.Position == "" {
		in.Position = "Technician"
	}
	p, err := s.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	// Welcome the freshly provisioned technician; best effort.
	if s.notifier != nil {
		s.notifier.Broadcast(ctx, []notify.Notice{{
			Recipient: p.PrincipalID,
			Subject:   "technician_provisioned",
			Fields: map[string]string{
				"full_name":   p.FullName,
				"institution": p.Institution,
			},
		}})
	}
	return p, nil
}

// ListByRole returns active parties with the given role.
func (s *Service) ListByRole(ctx context.Context, role models.Role) ([]models.Party, error) {
	if !role.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown role %q", role)
	}
	parties, err := s.store.ListActiveByRole(ctx, role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list parties")
	}
	return parties, nil
}

// ListTechniciansAt returns active technicians assigned exactly to the triple.
func (s *Service) ListTechniciansAt(ctx context.Context, region, district, institution string) ([]models.Party, error) {
	parties, err := s.store.ListActiveByAssignment(ctx, models.RoleTechnician, region, district, institution)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list technicians")
	}
	return parties, nil
}

// Remove deactivates a technician party. The row is kept so historical
// requests still resolve their references; the party stops receiving
// notices and can no longer act.
func (s *Service) Remove(ctx context.Context, actingPrincipal int64, partyID uuid.UUID) error {
	if err := s.requireAdmin(ctx, actingPrincipal); err != nil {
		return err
	}
	target, err := s.store.FindByID(ctx, partyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "party not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to find party")
	}
	if target.Role != models.RoleTechnician {
		return dErrors.New(dErrors.CodeUnauthorized, "only technicians can be removed")
	}
	if !target.Active {
		return dErrors.New(dErrors.CodeConflict, "party is already removed")
	}
	target.Active = false
	if err := s.store.Update(ctx, target); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove party")
	}
	s.logAudit(ctx, audit.Event{
		Action:         audit.ActionPartyRemoved,
		ActorPrincipal: actingPrincipal,
		PartyID:        target.ID.String(),
		Institution:    target.Institution,
	})
	if s.metrics != nil {
		s.metrics.Removed.Inc()
	}
	return nil
}

func (s *Service) requireAdmin(ctx context.Context, principalID int64) error {
	if s.isBootstrapAdmin(principalID) {
		return nil
	}
	actor, err := s.store.FindByPrincipal(ctx, principalID)
	if err != nil || !actor.Active || actor.Role != models.RoleAdmin {
		return dErrors.New(dErrors.CodeUnauthorized, "admin role required")
	}
	return nil
}

func (s *Service) isBootstrapAdmin(principalID int64) bool {
	return slices.Contains(s.adminPrincipals, principalID)
}

func (s *Service) notifyAdminsOfTechnician(ctx context.Context, technician *models.Party) {
	if s.notifier == nil {
		return
	}
	admins, err := s.store.ListActiveByRole(ctx, models.RoleAdmin)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "admin fan-out skipped", "error", err)
		}
		return
	}
	notices := make([]notify.Notice, 0, len(admins))
	for _, admin := range admins {
		notices = append(notices, notify.Notice{
			Recipient: admin.PrincipalID,
			Subject:   "technician_registered",
			Fields: map[string]string{
				"full_name":   technician.FullName,
				"position":    technician.Position,
				"region":      technician.Region,
				"district":    technician.District,
				"institution": technician.Institution,
			},
		})
	}
	s.notifier.Broadcast(ctx, notices)
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event.Action),
			"party_id", event.PartyID,
			"actor", event.ActorPrincipal,
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", slog.String("error", err.Error()))
	}
}
