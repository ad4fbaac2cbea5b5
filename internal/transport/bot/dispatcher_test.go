package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"fixdesk/internal/conversation"
	convstore "fixdesk/internal/conversation/store"
	locservice "fixdesk/internal/location/service"
	locstore "fixdesk/internal/location/store"
	"fixdesk/internal/notify"
	partymodels "fixdesk/internal/party/models"
	partyservice "fixdesk/internal/party/service"
	partystore "fixdesk/internal/party/store"
	requestmodels "fixdesk/internal/request/models"
	requestservice "fixdesk/internal/request/service"
	requeststore "fixdesk/internal/request/store"
	"fixdesk/pkg/testutil"
)

const (
	adminPrincipal     = int64(900)
	submitterPrincipal = int64(100)
	techPrincipal      = int64(200)
)

type harness struct {
	dispatcher *Dispatcher
	parties    *partyservice.Service
	requests   *requestservice.Service
}

type silentSender struct{}

func (silentSender) Send(context.Context, notify.Notice) error { return nil }

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	catalog := locstore.NewInMemory()
	require.NoError(t, locstore.SeedCatalog(ctx, catalog))
	locations := locservice.New(catalog)

	notifier := notify.NewDispatcher(silentSender{}, nil)

	parties := partyservice.New(partystore.NewInMemory(),
		partyservice.WithNotifier(notifier),
		partyservice.WithBootstrapAdmins([]int64{adminPrincipal}))

	requests := requestservice.New(requeststore.NewInMemory(), parties,
		requestservice.WithNotifier(notifier))

	engine := conversation.New(convstore.NewInMemory(), conversation.Scripts(locations))

	_, err := parties.PromoteToAdmin(ctx, adminPrincipal, adminPrincipal, "Root Admin")
	require.NoError(t, err)

	return &harness{
		dispatcher: New(engine, parties, requests, locations),
		parties:    parties,
		requests:   requests,
	}
}

func (h *harness) send(t *testing.T, principal int64, kind Kind, payload string) *Reply {
	t.Helper()
	reply, err := h.dispatcher.HandleEvent(context.Background(), Event{
		PrincipalID: principal,
		Kind:        kind,
		Payload:     payload,
	})
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.Equal(t, principal, reply.Recipient)
	return reply
}

// registerSubmitter walks the whole registration dialog through the
// dispatcher, the way a chat user would.
func (h *harness) registerSubmitter(t *testing.T, principal int64) {
	t.Helper()
	h.send(t, principal, KindButtonPress, ActionRegister)
	h.send(t, principal, KindButtonPress, "Tashkent")
	h.send(t, principal, KindButtonPress, "Mirabad District")
	h.send(t, principal, KindButtonPress, "Family Polyclinic No. 1")
	h.send(t, principal, KindText, "B. Karimova")
	reply := h.send(t, principal, KindText, "Nurse")
	require.Contains(t, reply.Text, "Registered")
}

func TestUnregisteredMenuOffersRegistration(t *testing.T) {
	h := newHarness(t)
	reply := h.send(t, submitterPrincipal, KindCommand, ActionStart)
	require.Contains(t, reply.Options, ActionRegister)
	require.Contains(t, reply.Options, ActionRegisterTechnician)
}

func TestRegistrationDialogCreatesParty(t *testing.T) {
	h := newHarness(t)
	testutil.Given(t, "an unregistered principal completes the registration dialog", func(t *testing.T) {
		h.registerSubmitter(t, submitterPrincipal)
	})
	testutil.Then(t, "the party directory holds their assignment", func(t *testing.T) {
		p, err := h.parties.FindByPrincipal(context.Background(), submitterPrincipal)
		require.NoError(t, err)
		require.Equal(t, partymodels.RoleSubmitter, p.Role)
		require.Equal(t, "Family Polyclinic No. 1", p.Institution)
	})
}

func TestCancelMidRegistrationLeavesNoParty(t *testing.T) {
	h := newHarness(t)
	h.send(t, submitterPrincipal, KindButtonPress, ActionRegister)
	h.send(t, submitterPrincipal, KindButtonPress, "Tashkent")

	reply := h.send(t, submitterPrincipal, KindText, conversation.CancelToken)
	require.Equal(t, "Cancelled.", reply.Text)

	_, err := h.parties.FindByPrincipal(context.Background(), submitterPrincipal)
	require.Error(t, err)
}

func TestSubmissionAndResolutionFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerSubmitter(t, submitterPrincipal)

	// Technician at the same institution, provisioned directly.
	tech, err := h.parties.Register(ctx, partyservice.RegisterInput{
		PrincipalID: techPrincipal,
		Role:        partymodels.RoleTechnician,
		Region:      "Tashkent",
		District:    "Mirabad District",
		Institution: "Family Polyclinic No. 1",
		FullName:    "T. Usmanov",
		Position:    "Technician",
	})
	require.NoError(t, err)

	// Submitter walks the submission dialog and confirms.
	h.send(t, submitterPrincipal, KindButtonPress, ActionSubmitRequest)
	h.send(t, submitterPrincipal, KindButtonPress, "Tashkent")
	h.send(t, submitterPrincipal, KindButtonPress, "Mirabad District")
	h.send(t, submitterPrincipal, KindButtonPress, "Family Polyclinic No. 1")
	h.send(t, submitterPrincipal, KindText, "printer jam")
	h.send(t, submitterPrincipal, KindText, "2nd floor, room 14")
	h.send(t, submitterPrincipal, KindText, "D. Rashidov")
	reply := h.send(t, submitterPrincipal, KindText, "yes")
	require.Contains(t, reply.Text, "submitted")

	active, err := h.requests.ListActive(ctx, "Family Polyclinic No. 1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	requestID := active[0].ID.String()

	// Technician takes it, then closes it through the resolution dialog.
	reply = h.send(t, techPrincipal, KindButtonPress, PrefixTake+requestID)
	require.Contains(t, reply.Text, "in_progress")

	h.send(t, techPrincipal, KindButtonPress, PrefixComplete+requestID)
	h.send(t, techPrincipal, KindText, "PC-14")
	h.send(t, techPrincipal, KindText, "reinstalled driver")
	reply = h.send(t, techPrincipal, KindText, "yes")
	require.Contains(t, reply.Text, "completed")

	closed, err := h.requests.ListForSubmitter(ctx, active[0].SubmitterID, 1)
	require.NoError(t, err)
	require.Equal(t, requestmodels.StatusCompleted, closed[0].Status)
	require.Equal(t, tech.ID, closed[0].Resolution.ResolvedBy)
}

func TestSubmissionLocationComesFromDialogNotAssignment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerSubmitter(t, submitterPrincipal)

	// Report a problem at a sibling institution, not the submitter's own.
	h.send(t, submitterPrincipal, KindButtonPress, ActionSubmitRequest)
	h.send(t, submitterPrincipal, KindButtonPress, "Tashkent")
	h.send(t, submitterPrincipal, KindButtonPress, "Mirabad District")
	h.send(t, submitterPrincipal, KindButtonPress, "Family Polyclinic No. 2")
	h.send(t, submitterPrincipal, KindText, "leaking radiator")
	h.send(t, submitterPrincipal, KindText, "1st floor, lobby")
	h.send(t, submitterPrincipal, KindText, "D. Rashidov")
	reply := h.send(t, submitterPrincipal, KindText, "yes")
	require.Contains(t, reply.Text, "submitted")

	active, err := h.requests.ListActive(ctx, "Family Polyclinic No. 2")
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "Family Polyclinic No. 2", active[0].Institution)

	p, err := h.parties.FindByPrincipal(ctx, submitterPrincipal)
	require.NoError(t, err)
	require.Equal(t, "Family Polyclinic No. 1", p.Institution)
}

func TestAdminMenuIsGated(t *testing.T) {
	h := newHarness(t)
	h.registerSubmitter(t, submitterPrincipal)

	reply := h.send(t, submitterPrincipal, KindButtonPress, ActionAddInstitution)
	require.Contains(t, reply.Text, "admin role required")
}

func TestAdminAddsInstitutionThroughDialog(t *testing.T) {
	h := newHarness(t)

	h.send(t, adminPrincipal, KindButtonPress, ActionAddInstitution)
	h.send(t, adminPrincipal, KindButtonPress, "Tashkent")
	h.send(t, adminPrincipal, KindButtonPress, "Mirabad District")
	reply := h.send(t, adminPrincipal, KindText, "Family Polyclinic No. 3")
	require.Contains(t, reply.Text, `"Family Polyclinic No. 3" added`)
}

func TestStartAbandonsOpenDialog(t *testing.T) {
	h := newHarness(t)
	h.send(t, submitterPrincipal, KindButtonPress, ActionRegister)
	h.send(t, submitterPrincipal, KindButtonPress, "Tashkent")

	reply := h.send(t, submitterPrincipal, KindCommand, ActionStart)
	require.Contains(t, reply.Options, ActionRegister)

	// The abandoned dialog is gone; free text now falls through to the menu.
	reply = h.send(t, submitterPrincipal, KindText, "Mirabad District")
	require.Contains(t, reply.Options, ActionRegister)
}

func TestSubmitterCannotViewQueue(t *testing.T) {
	h := newHarness(t)
	h.registerSubmitter(t, submitterPrincipal)

	reply := h.send(t, submitterPrincipal, KindButtonPress, ActionActiveRequests)
	require.Contains(t, reply.Text, "only technicians and admins")
}
