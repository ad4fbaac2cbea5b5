package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"fixdesk/internal/audit"
	"fixdesk/internal/notify"
	"fixdesk/internal/party/models"
	"fixdesk/internal/party/store"
	dErrors "fixdesk/pkg/domain-errors"
)

// recordingNotifier captures broadcasts instead of delivering them.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (n *recordingNotifier) Broadcast(_ context.Context, notices []notify.Notice) []notify.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notices...)
	results := make([]notify.Result, len(notices))
	for i, notice := range notices {
		results[i] = notify.Result{Recipient: notice.Recipient}
	}
	return results
}

func (n *recordingNotifier) recipients() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []int64
	for _, notice := range n.notices {
		out = append(out, notice.Recipient)
	}
	return out
}

const bootstrapAdmin = int64(999)

func newService(t *testing.T) (*Service, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	svc := New(store.NewInMemory(),
		WithNotifier(notifier),
		WithBootstrapAdmins([]int64{bootstrapAdmin}),
	)
	return svc, notifier
}

func submitterInput(principal int64) RegisterInput {
	return RegisterInput{
		PrincipalID: principal,
		Role:        models.RoleSubmitter,
		Region:      "Tashkent",
		District:    "Mirabad District",
		Institution: "Family Polyclinic No. 1",
		FullName:    "A. Submitter",
		Position:    "Receptionist",
	}
}

func TestRegisterRejectsDuplicatePrincipal(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, submitterInput(1))
	require.NoError(t, err)

	_, err = svc.Register(ctx, submitterInput(1))
	require.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	t.Run("missing location for submitter", func(t *testing.T) {
		in := submitterInput(2)
		in.Institution = ""
		_, err := svc.Register(ctx, in)
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("malformed phone for technician", func(t *testing.T) {
		in := submitterInput(3)
		in.Role = models.RoleTechnician
		in.Phone = "call me maybe"
		_, err := svc.Register(ctx, in)
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestTechnicianRegistrationNotifiesAdmins(t *testing.T) {
	svc, notifier := newService(t)
	ctx := context.Background()

	admin, err := svc.PromoteToAdmin(ctx, bootstrapAdmin, bootstrapAdmin, "Root Admin")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, admin.Role)
	require.Equal(t, models.UnscopedLocation, admin.Institution)

	in := submitterInput(10)
	in.Role = models.RoleTechnician
	in.Phone = "+998 90 123-45-67"
	_, err = svc.Register(ctx, in)
	require.NoError(t, err)

	require.Contains(t, notifier.recipients(), bootstrapAdmin)
}

func TestPromoteToAdmin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	t.Run("non-admin actor is refused", func(t *testing.T) {
		_, err := svc.Register(ctx, submitterInput(20))
		require.NoError(t, err)
		_, err = svc.PromoteToAdmin(ctx, 20, 21, "")
		require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("promoting an existing submitter unsets the location scope", func(t *testing.T) {
		promoted, err := svc.PromoteToAdmin(ctx, bootstrapAdmin, 20, "")
		require.NoError(t, err)
		require.Equal(t, models.RoleAdmin, promoted.Role)
		require.Equal(t, models.UnscopedLocation, promoted.Region)
	})

	t.Run("promotion is idempotent", func(t *testing.T) {
		again, err := svc.PromoteToAdmin(ctx, bootstrapAdmin, 20, "")
		require.NoError(t, err)
		require.Equal(t, models.RoleAdmin, again.Role)
	})
}

func TestRemoveTechnician(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	in := submitterInput(30)
	in.Role = models.RoleTechnician
	tech, err := svc.Register(ctx, in)
	require.NoError(t, err)

	t.Run("non-admin cannot remove", func(t *testing.T) {
		err := svc.Remove(ctx, 30, tech.ID)
		require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("admin removal deactivates but keeps the record", func(t *testing.T) {
		require.NoError(t, svc.Remove(ctx, bootstrapAdmin, tech.ID))

		techs, err := svc.ListByRole(ctx, models.RoleTechnician)
		require.NoError(t, err)
		require.Empty(t, techs)
	})

	t.Run("second removal is a conflict", func(t *testing.T) {
		err := svc.Remove(ctx, bootstrapAdmin, tech.ID)
		require.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("admins cannot be removed", func(t *testing.T) {
		admin, err := svc.PromoteToAdmin(ctx, bootstrapAdmin, bootstrapAdmin, "Root")
		require.NoError(t, err)
		err = svc.Remove(ctx, bootstrapAdmin, admin.ID)
		require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

type failingAuditPublisher struct {
	calls int
}

func (p *failingAuditPublisher) Emit(_ context.Context, _ audit.Event) error {
	p.calls++
	return errors.New("audit store unavailable")
}

func TestAuditEmitFailureDoesNotFailRegistration(t *testing.T) {
	publisher := &failingAuditPublisher{}
	svc := New(store.NewInMemory(),
		WithBootstrapAdmins([]int64{bootstrapAdmin}),
		WithAuditPublisher(publisher),
	)

	p, err := svc.Register(context.Background(), submitterInput(1))
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, 1, publisher.calls)
}
