// Package bot is the chat-facing transport: it classifies inbound events,
// feeds dialog traffic to the conversation engine, commits completed
// dialogs to the owning service, and answers direct menu actions.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"fixdesk/internal/conversation"
	convmodels "fixdesk/internal/conversation/models"
	locmodels "fixdesk/internal/location/models"
	partymodels "fixdesk/internal/party/models"
	partyservice "fixdesk/internal/party/service"
	requestmodels "fixdesk/internal/request/models"
	requestservice "fixdesk/internal/request/service"
	dErrors "fixdesk/pkg/domain-errors"
)

// Dialogs is the conversation engine surface the dispatcher drives.
type Dialogs interface {
	Current(ctx context.Context, principalID int64) (*convmodels.Conversation, error)
	Start(ctx context.Context, principalID int64, scriptID string) (*conversation.Outcome, error)
	StartWith(ctx context.Context, principalID int64, scriptID string, seed map[string]string) (*conversation.Outcome, error)
	Advance(ctx context.Context, principalID int64, rawInput string) (*conversation.Outcome, error)
}

type Parties interface {
	FindByPrincipal(ctx context.Context, principalID int64) (*partymodels.Party, error)
	Register(ctx context.Context, in partyservice.RegisterInput) (*partymodels.Party, error)
	ProvisionTechnician(ctx context.Context, actingPrincipal int64, in partyservice.RegisterInput) (*partymodels.Party, error)
	Remove(ctx context.Context, actingPrincipal int64, partyID uuid.UUID) error
}

type Requests interface {
	Submit(ctx context.Context, submitterID uuid.UUID, in requestservice.SubmitInput) (*requestmodels.Request, error)
	Transition(ctx context.Context, actingPartyID, requestID uuid.UUID, target requestmodels.Status, resolution *requestservice.ResolutionInput) (*requestmodels.Request, error)
	ListActive(ctx context.Context, institution string) ([]requestmodels.Request, error)
	ListForSubmitter(ctx context.Context, submitterID uuid.UUID, limit int) ([]requestmodels.Request, error)
	Stats(ctx context.Context, institution string) (map[requestmodels.Status]int, error)
}

type Locations interface {
	AddInstitution(ctx context.Context, regionName, districtName, name string) (*locmodels.Institution, error)
	RemoveInstitution(ctx context.Context, regionName, districtName, name string) error
}

// Dispatcher routes one inbound event to the right collaborator and shapes
// the reply. An open conversation always wins over menu actions.
type Dispatcher struct {
	dialogs   Dialogs
	parties   Parties
	requests  Requests
	locations Locations
	logger    *slog.Logger
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func New(dialogs Dialogs, parties Parties, requests Requests, locations Locations, opts ...Option) *Dispatcher {
	d := &Dispatcher{dialogs: dialogs, parties: parties, requests: requests, locations: locations}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleEvent answers one inbound event. Domain rejections become reply
// text naming the failed precondition; only infrastructure failures come
// back as errors.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev Event) (*Reply, error) {
	if ev.Payload == ActionStart {
		// /start abandons any open dialog and shows the menu.
		if _, err := d.dialogs.Current(ctx, ev.PrincipalID); err == nil {
			if _, err := d.dialogs.Advance(ctx, ev.PrincipalID, conversation.CancelToken); err != nil {
				return nil, err
			}
		}
		return d.menu(ctx, ev.PrincipalID)
	}

	_, err := d.dialogs.Current(ctx, ev.PrincipalID)
	switch {
	case err == nil:
		outcome, err := d.dialogs.Advance(ctx, ev.PrincipalID, ev.Payload)
		if err != nil {
			return d.replyForError(ctx, ev.PrincipalID, err)
		}
		return d.handleOutcome(ctx, ev.PrincipalID, outcome)
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return d.menuAction(ctx, ev)
	}
	return nil, err
}

func (d *Dispatcher) menuAction(ctx context.Context, ev Event) (*Reply, error) {
	principal := ev.PrincipalID

	switch {
	case strings.HasPrefix(ev.Payload, PrefixTake):
		return d.transition(ctx, principal, strings.TrimPrefix(ev.Payload, PrefixTake), requestmodels.StatusInProgress)
	case strings.HasPrefix(ev.Payload, PrefixComplete):
		return d.startResolution(ctx, principal, strings.TrimPrefix(ev.Payload, PrefixComplete), requestmodels.StatusCompleted)
	case strings.HasPrefix(ev.Payload, PrefixNotComplete):
		return d.startResolution(ctx, principal, strings.TrimPrefix(ev.Payload, PrefixNotComplete), requestmodels.StatusNotCompleted)
	case strings.HasPrefix(ev.Payload, PrefixRemoveTechnician):
		return d.removeTechnician(ctx, principal, strings.TrimPrefix(ev.Payload, PrefixRemoveTechnician))
	}

	switch ev.Payload {
	case ActionRegister:
		return d.startRegistration(ctx, principal, conversation.ScriptSubmitterRegistration)
	case ActionRegisterTechnician:
		return d.startRegistration(ctx, principal, conversation.ScriptTechnicianRegistration)
	case ActionSubmitRequest:
		return d.startSubmission(ctx, principal)
	case ActionMyRequests:
		return d.myRequests(ctx, principal)
	case ActionProfile:
		return d.profile(ctx, principal)
	case ActionActiveRequests:
		return d.activeRequests(ctx, principal)
	case ActionStats:
		return d.stats(ctx, principal)
	case ActionAddTechnician:
		return d.startAdminDialog(ctx, principal, conversation.ScriptProvisionTechnician)
	case ActionAddInstitution:
		return d.startAdminDialog(ctx, principal, conversation.ScriptAddInstitution)
	case ActionDeleteInstitution:
		return d.startAdminDialog(ctx, principal, conversation.ScriptDeleteInstitution)
	}
	return d.menu(ctx, principal)
}

// handleOutcome renders an engine outcome, committing completed dialogs to
// the service that owns their fields.
func (d *Dispatcher) handleOutcome(ctx context.Context, principal int64, outcome *conversation.Outcome) (*Reply, error) {
	switch outcome.Kind {
	case conversation.OutcomePrompt:
		return &Reply{Recipient: principal, Text: outcome.Prompt, Options: outcome.Options}, nil
	case conversation.OutcomeRetry:
		return &Reply{
			Recipient: principal,
			Text:      outcome.Problem + "\n" + outcome.Prompt,
			Options:   outcome.Options,
		}, nil
	case conversation.OutcomeCancelled:
		return &Reply{Recipient: principal, Text: "Cancelled."}, nil
	case conversation.OutcomeCompleted:
		return d.commit(ctx, principal, outcome)
	}
	return nil, dErrors.Newf(dErrors.CodeInternal, "unknown outcome kind %q", outcome.Kind)
}

func (d *Dispatcher) commit(ctx context.Context, principal int64, outcome *conversation.Outcome) (*Reply, error) {
	fields := outcome.Fields
	switch outcome.ScriptID {
	case conversation.ScriptSubmitterRegistration, conversation.ScriptTechnicianRegistration:
		role := partymodels.RoleSubmitter
		if outcome.ScriptID == conversation.ScriptTechnicianRegistration {
			role = partymodels.RoleTechnician
		}
		p, err := d.parties.Register(ctx, partyservice.RegisterInput{
			PrincipalID: principal,
			Role:        role,
			Region:      fields[conversation.FieldRegion],
			District:    fields[conversation.FieldDistrict],
			Institution: fields[conversation.FieldInstitution],
			FullName:    fields[conversation.FieldFullName],
			Position:    fields[conversation.FieldPosition],
			Phone:       fields[conversation.FieldPhone],
		})
		if err != nil {
			return d.replyForError(ctx, principal, err)
		}
		return &Reply{Recipient: principal, Text: fmt.Sprintf("Registered %s at %s.", p.FullName, p.Institution)}, nil

	case conversation.ScriptRequestSubmission:
		party, err := d.parties.FindByPrincipal(ctx, principal)
		if err != nil {
			return d.replyForError(ctx, principal, err)
		}
		// The dialog collects the triple per request; it is frozen onto the
		// request and may differ from the submitter's own assignment.
		r, err := d.requests.Submit(ctx, party.ID, requestservice.SubmitInput{
			Region:      fields[conversation.FieldRegion],
			District:    fields[conversation.FieldDistrict],
			Institution: fields[conversation.FieldInstitution],
			Reason:      fields[conversation.FieldReason],
			FloorRoom:   fields[conversation.FieldFloorRoom],
			SubmittedBy: fields[conversation.FieldSubmittedBy],
		})
		if err != nil {
			return d.replyForError(ctx, principal, err)
		}
		return &Reply{Recipient: principal, Text: fmt.Sprintf("Request %s submitted. Technicians have been notified.", r.ShortID())}, nil

	case conversation.ScriptProvisionTechnician:
		technicianPrincipal, err := strconv.ParseInt(fields[conversation.FieldPrincipalID], 10, 64)
		if err != nil {
			return d.replyForError(ctx, principal, dErrors.New(dErrors.CodeValidation, "technician chat id must be a number"))
		}
		p, err := d.parties.ProvisionTechnician(ctx, principal, partyservice.RegisterInput{
			PrincipalID: technicianPrincipal,
			Region:      fields[conversation.FieldRegion],
			District:    fields[conversation.FieldDistrict],
			Institution: fields[conversation.FieldInstitution],
			FullName:    fields[conversation.FieldFullName],
			Phone:       fields[conversation.FieldPhone],
		})
		if err != nil {
			return d.replyForError(ctx, principal, err)
		}
		return &Reply{Recipient: principal, Text: fmt.Sprintf("Technician %s added at %s.", p.FullName, p.Institution)}, nil

	case conversation.ScriptAddInstitution:
		inst, err := d.locations.AddInstitution(ctx,
			fields[conversation.FieldRegion], fields[conversation.FieldDistrict], fields[conversation.FieldInstitution])
		if err != nil {
			return d.replyForError(ctx, principal, err)
		}
		return &Reply{Recipient: principal, Text: fmt.Sprintf("Institution %q added.", inst.Name)}, nil

	case conversation.ScriptDeleteInstitution:
		name := fields[conversation.FieldInstitution]
		if err := d.locations.RemoveInstitution(ctx,
			fields[conversation.FieldRegion], fields[conversation.FieldDistrict], name); err != nil {
			return d.replyForError(ctx, principal, err)
		}
		return &Reply{Recipient: principal, Text: fmt.Sprintf("Institution %q removed.", name)}, nil

	case conversation.ScriptResolution:
		return d.commitResolution(ctx, principal, fields)
	}
	return nil, dErrors.Newf(dErrors.CodeInternal, "no committer for script %q", outcome.ScriptID)
}

func (d *Dispatcher) commitResolution(ctx context.Context, principal int64, fields map[string]string) (*Reply, error) {
	requestID, err := uuid.Parse(fields[conversation.FieldRequestID])
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolution dialog carried a bad request id")
	}
	target, err := requestmodels.ParseStatus(fields[conversation.FieldTargetStatus])
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolution dialog carried a bad target status")
	}
	actor, err := d.parties.FindByPrincipal(ctx, principal)
	if err != nil {
		return d.replyForError(ctx, principal, err)
	}
	r, err := d.requests.Transition(ctx, actor.ID, requestID, target, &requestservice.ResolutionInput{
		Equipment: fields[conversation.FieldEquipment],
		Narrative: fields[conversation.FieldNarrative],
	})
	if err != nil {
		return d.replyForError(ctx, principal, err)
	}
	return &Reply{Recipient: principal, Text: fmt.Sprintf("Request %s closed as %s.", r.ShortID(), r.Status)}, nil
}

func (d *Dispatcher) startRegistration(ctx context.Context, principal int64, scriptID string) (*Reply, error) {
	if _, err := d.parties.FindByPrincipal(ctx, principal); err == nil {
		return &Reply{Recipient: principal, Text: "You are already registered."}, nil
	}
	outcome, err := d.dialogs.Start(ctx, principal, scriptID)
	if err != nil {
		return nil, err
	}
	return d.handleOutcome(ctx, principal, outcome)
}

func (d *Dispatcher) startSubmission(ctx context.Context, principal int64) (*Reply, error) {
	party, err := d.parties.FindByPrincipal(ctx, principal)
	if err != nil {
		return d.replyForError(ctx, principal, err)
	}
	if !party.Role.RequiresLocation() {
		return d.replyForError(ctx, principal,
			dErrors.New(dErrors.CodeUnauthorized, "only site staff can submit requests"))
	}
	outcome, err := d.dialogs.Start(ctx, principal, conversation.ScriptRequestSubmission)
	if err != nil {
		return nil, err
	}
	return d.handleOutcome(ctx, principal, outcome)
}

func (d *Dispatcher) startAdminDialog(ctx context.Context, principal int64, scriptID string) (*Reply, error) {
	if err := d.requireAdmin(ctx, principal); err != nil {
		return d.replyForError(ctx, principal, err)
	}
	outcome, err := d.dialogs.Start(ctx, principal, scriptID)
	if err != nil {
		return nil, err
	}
	return d.handleOutcome(ctx, principal, outcome)
}

func (d *Dispatcher) startResolution(ctx context.Context, principal int64, rawID string, target requestmodels.Status) (*Reply, error) {
	if _, err := uuid.Parse(rawID); err != nil {
		return d.replyForError(ctx, principal, dErrors.New(dErrors.CodeValidation, "malformed request id"))
	}
	outcome, err := d.dialogs.StartWith(ctx, principal, conversation.ScriptResolution, map[string]string{
		conversation.FieldRequestID:    rawID,
		conversation.FieldTargetStatus: string(target),
	})
	if err != nil {
		return nil, err
	}
	return d.handleOutcome(ctx, principal, outcome)
}

func (d *Dispatcher) transition(ctx context.Context, principal int64, rawID string, target requestmodels.Status) (*Reply, error) {
	requestID, err := uuid.Parse(rawID)
	if err != nil {
		return d.replyForError(ctx, principal, dErrors.New(dErrors.CodeValidation, "malformed request id"))
	}
	actor, err := d.parties.FindByPrincipal(ctx, principal)
	if err != nil {
		return d.replyForError(ctx, principal, err)
	}
	r, err := d.requests.Transition(ctx, actor.ID, requestID, target, nil)
	if err != nil {
		return d.replyForError(ctx, principal, err)
	}
	return &Reply{Recipient: principal, Text: fmt.Sprintf("Request %s is now %s.", r.ShortID(), r.Status)}, nil
}

func (d *Dispatcher) removeTechnician(ctx context.Context, principal int64, rawID string) (*Reply, error) {
	partyID, err := uuid.Parse(rawID)
	if err != nil {
		return d.replyForError(ctx, principal, dErrors.New(dErrors.CodeValidation, "malformed party id"))
	}
	if err := d.parties.Remove(ctx, principal, partyID); err != nil {
		return d.replyForError(ctx, principal, err)
	}
	return &Reply{Recipient: principal, Text: "Technician removed."}, nil
}

func (d *Dispatcher) myRequests(ctx context.Context, principal int64) (*Reply, error) {
	party, err := d.parties.FindByPrincipal(ctx, principal)
	if err != nil {
		return d.replyForError(ctx, principal, err)
	}
	requests, err := d.requests.ListForSubmitter(ctx, party.ID, 0)
	if err != nil {
		return d.replyForError(ctx, principal, err)
	}
	if len(requests) == 0 {
		return &Reply{Recipient: principal, Text: "You have no requests yet."}, nil
	}
	return &Reply{Recipient: principal, Text: formatRequests("Your requests:", requests)}, nil
}

func (d *Dispatcher) activeRequests(ctx context.Context, principal int64) (*Reply, error) {
	party, err := d.parties.FindByPrincipal(ctx, principal)
	if err != nil {
		return d.replyForError(ctx, principal, err)
	}
	var scope string
	switch party.Role {
	case partymodels.RoleTechnician:
		scope = party.Institution
	case partymodels.RoleAdmin:
		scope = ""
	default:
		return d.replyForError(ctx, principal,
			dErrors.New(dErrors.CodeUnauthorized, "only technicians and admins can view the queue"))
	}
	requests, err := d.requests.ListActive(ctx, scope)
	if err != nil {
		return d.replyForError(ctx, principal, err)
	}
	if len(requests) == 0 {
		return &Reply{Recipient: principal, Text: "No active requests."}, nil
	}
	return &Reply{Recipient: principal, Text: formatRequests("Active requests:", requests)}, nil
}

func (d *Dispatcher) stats(ctx context.Context, principal int64) (*Reply, error) {
	party, err := d.parties.FindByPrincipal(ctx, principal)
	if err != nil {
		return d.replyForError(ctx, principal, err)
	}
	var scope string
	switch party.Role {
	case partymodels.RoleTechnician:
		scope = party.Institution
	case partymodels.RoleAdmin:
		scope = ""
	default:
		return d.replyForError(ctx, principal,
			dErrors.New(dErrors.CodeUnauthorized, "only technicians and admins can view stats"))
	}
	counts, err := d.requests.Stats(ctx, scope)
	if err != nil {
		return d.replyForError(ctx, principal, err)
	}
	var b strings.Builder
	b.WriteString("Requests by status:")
	for _, status := range requestmodels.Statuses {
		fmt.Fprintf(&b, "\n%s: %d", status, counts[status])
	}
	return &Reply{Recipient: principal, Text: b.String()}, nil
}

func (d *Dispatcher) profile(ctx context.Context, principal int64) (*Reply, error) {
	party, err := d.parties.FindByPrincipal(ctx, principal)
	if err != nil {
		return d.replyForError(ctx, principal, err)
	}
	text := fmt.Sprintf("%s — %s (%s)\n%s, %s, %s",
		party.FullName, party.Position, party.Role,
		party.Region, party.District, party.Institution)
	if party.Phone != "" {
		text += "\nPhone: " + party.Phone
	}
	return &Reply{Recipient: principal, Text: text}, nil
}

// menu shows the actions available to the principal's role; unregistered
// principals get the registration choices.
func (d *Dispatcher) menu(ctx context.Context, principal int64) (*Reply, error) {
	party, err := d.parties.FindByPrincipal(ctx, principal)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return &Reply{
				Recipient: principal,
				Text:      "Welcome. Register to report facility problems.",
				Options:   []string{ActionRegister, ActionRegisterTechnician},
			}, nil
		}
		return d.replyForError(ctx, principal, err)
	}

	var options []string
	switch party.Role {
	case partymodels.RoleSubmitter:
		options = []string{ActionSubmitRequest, ActionMyRequests, ActionProfile}
	case partymodels.RoleTechnician:
		options = []string{ActionActiveRequests, ActionSubmitRequest, ActionMyRequests, ActionStats, ActionProfile}
	case partymodels.RoleAdmin:
		options = []string{ActionActiveRequests, ActionStats, ActionAddTechnician, ActionAddInstitution, ActionDeleteInstitution, ActionProfile}
	}
	return &Reply{
		Recipient: principal,
		Text:      fmt.Sprintf("Hello, %s. What would you like to do?", party.FullName),
		Options:   options,
	}, nil
}

func (d *Dispatcher) requireAdmin(ctx context.Context, principal int64) error {
	party, err := d.parties.FindByPrincipal(ctx, principal)
	if err != nil {
		return err
	}
	if party.Role != partymodels.RoleAdmin || !party.Active {
		return dErrors.New(dErrors.CodeUnauthorized, "admin role required")
	}
	return nil
}

// replyForError folds a domain rejection into reply text; infrastructure
// failures stay errors for the webhook layer to report.
func (d *Dispatcher) replyForError(ctx context.Context, principal int64, err error) (*Reply, error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) && domainErr.Code != dErrors.CodeInternal {
		return &Reply{Recipient: principal, Text: domainErr.Message}, nil
	}
	if d.logger != nil {
		d.logger.ErrorContext(ctx, "event handling failed",
			slog.Int64("principal_id", principal),
			slog.String("error", err.Error()))
	}
	return nil, err
}

func formatRequests(header string, requests []requestmodels.Request) string {
	var b strings.Builder
	b.WriteString(header)
	for _, r := range requests {
		fmt.Fprintf(&b, "\n[%s] %s — %s (%s, %s)",
			r.ShortID(), r.Status, r.Reason, r.Institution, r.FloorRoom)
	}
	return b.String()
}
