package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"fixdesk/internal/conversation/store"
	locmodels "fixdesk/internal/location/models"
	dErrors "fixdesk/pkg/domain-errors"
)

// fixedCatalog serves a one-branch location tree for dialog tests.
type fixedCatalog struct{}

func (fixedCatalog) ListRegions(context.Context) ([]locmodels.Region, error) {
	return []locmodels.Region{{ID: 1, Name: "Tashkent", Active: true}}, nil
}

func (fixedCatalog) ListDistricts(_ context.Context, regionName string) ([]locmodels.District, error) {
	if regionName != "Tashkent" {
		return nil, nil
	}
	return []locmodels.District{{ID: 1, RegionID: 1, Name: "Mirabad District", Active: true}}, nil
}

func (fixedCatalog) ListInstitutions(_ context.Context, districtName string) ([]locmodels.Institution, error) {
	if districtName != "Mirabad District" {
		return nil, nil
	}
	return []locmodels.Institution{{ID: 1, DistrictID: 1, Name: "School No. 10", Active: true}}, nil
}

func newEngine() *Engine {
	return New(store.NewInMemory(), Scripts(fixedCatalog{}))
}

func mustAdvance(t *testing.T, e *Engine, principal int64, input string) *Outcome {
	t.Helper()
	out, err := e.Advance(context.Background(), principal, input)
	require.NoError(t, err)
	return out
}

func TestSubmitterRegistrationWalk(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	out, err := e.Start(ctx, 1, ScriptSubmitterRegistration)
	require.NoError(t, err)
	require.Equal(t, OutcomePrompt, out.Kind)
	require.Equal(t, []string{"Tashkent"}, out.Options)

	out = mustAdvance(t, e, 1, "Tashkent")
	require.Equal(t, OutcomePrompt, out.Kind)
	require.Equal(t, []string{"Mirabad District"}, out.Options)

	out = mustAdvance(t, e, 1, "Mirabad District")
	require.Equal(t, []string{"School No. 10"}, out.Options)

	mustAdvance(t, e, 1, "School No. 10")
	mustAdvance(t, e, 1, "B. Karimova")
	out = mustAdvance(t, e, 1, "Nurse")

	require.Equal(t, OutcomeCompleted, out.Kind)
	require.Equal(t, map[string]string{
		FieldRegion:      "Tashkent",
		FieldDistrict:    "Mirabad District",
		FieldInstitution: "School No. 10",
		FieldFullName:    "B. Karimova",
		FieldPosition:    "Nurse",
	}, out.Fields)

	_, err = e.Current(ctx, 1)
	require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestChoiceOutsideOfferedSetRetries(t *testing.T) {
	e := newEngine()
	_, err := e.Start(context.Background(), 1, ScriptSubmitterRegistration)
	require.NoError(t, err)

	out := mustAdvance(t, e, 1, "Atlantis")
	require.Equal(t, OutcomeRetry, out.Kind)
	require.Equal(t, "pick one of the offered options", out.Problem)
	require.Equal(t, []string{"Tashkent"}, out.Options)

	// Still on the region step.
	conv, err := e.Current(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, conv.Step)
}

func TestCancelTokenMidDialog(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.Start(ctx, 1, ScriptSubmitterRegistration)
	require.NoError(t, err)
	mustAdvance(t, e, 1, "Tashkent")

	out := mustAdvance(t, e, 1, CancelToken)
	require.Equal(t, OutcomeCancelled, out.Kind)

	_, err = e.Current(ctx, 1)
	require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestConfirmationStep(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	startAndFill := func(t *testing.T, principal int64) {
		t.Helper()
		_, err := e.Start(ctx, principal, ScriptRequestSubmission)
		require.NoError(t, err)
		mustAdvance(t, e, principal, "Tashkent")
		mustAdvance(t, e, principal, "Mirabad District")
		mustAdvance(t, e, principal, "School No. 10")
		mustAdvance(t, e, principal, "printer jam")
		mustAdvance(t, e, principal, "2nd floor, room 14")
		out := mustAdvance(t, e, principal, "D. Rashidov")
		require.Equal(t, OutcomePrompt, out.Kind)
	}

	t.Run("anything but yes or no retries", func(t *testing.T) {
		startAndFill(t, 1)
		out := mustAdvance(t, e, 1, "maybe")
		require.Equal(t, OutcomeRetry, out.Kind)
		require.Equal(t, "answer yes or no", out.Problem)
	})

	t.Run("no cancels", func(t *testing.T) {
		out := mustAdvance(t, e, 1, "No")
		require.Equal(t, OutcomeCancelled, out.Kind)
	})

	t.Run("yes completes with the collected fields", func(t *testing.T) {
		startAndFill(t, 2)
		out := mustAdvance(t, e, 2, "Yes")
		require.Equal(t, OutcomeCompleted, out.Kind)
		require.Equal(t, "School No. 10", out.Fields[FieldInstitution])
		require.Equal(t, "printer jam", out.Fields[FieldReason])
		require.Equal(t, "D. Rashidov", out.Fields[FieldSubmittedBy])
	})
}

func TestPhoneValidation(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.Start(ctx, 1, ScriptTechnicianRegistration)
	require.NoError(t, err)
	mustAdvance(t, e, 1, "Tashkent")
	mustAdvance(t, e, 1, "Mirabad District")
	mustAdvance(t, e, 1, "School No. 10")
	mustAdvance(t, e, 1, "T. Usmanov")
	mustAdvance(t, e, 1, "Electrician")

	out := mustAdvance(t, e, 1, "not a phone")
	require.Equal(t, OutcomeRetry, out.Kind)

	out = mustAdvance(t, e, 1, "+998 71 200-00-00")
	require.Equal(t, OutcomeCompleted, out.Kind)
	require.Equal(t, "+998 71 200-00-00", out.Fields[FieldPhone])
}

func TestStartWithSeedsFields(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.StartWith(ctx, 5, ScriptResolution, map[string]string{
		FieldRequestID:    "9b3f2c1a-0000-0000-0000-000000000001",
		FieldTargetStatus: "completed",
	})
	require.NoError(t, err)

	mustAdvance(t, e, 5, "PC-14")
	mustAdvance(t, e, 5, "reinstalled driver")
	out := mustAdvance(t, e, 5, "yes")

	require.Equal(t, OutcomeCompleted, out.Kind)
	require.Equal(t, "9b3f2c1a-0000-0000-0000-000000000001", out.Fields[FieldRequestID])
	require.Equal(t, "completed", out.Fields[FieldTargetStatus])
	require.Equal(t, "PC-14", out.Fields[FieldEquipment])
}

func TestStartReplacesOpenDialog(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.Start(ctx, 1, ScriptSubmitterRegistration)
	require.NoError(t, err)
	mustAdvance(t, e, 1, "Tashkent")

	_, err = e.Start(ctx, 1, ScriptRequestSubmission)
	require.NoError(t, err)

	conv, err := e.Current(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, ScriptRequestSubmission, conv.ScriptID)
	require.Equal(t, 0, conv.Step)
	require.Empty(t, conv.Fields)
}

func TestAdvanceWithoutOpenDialog(t *testing.T) {
	e := newEngine()
	_, err := e.Advance(context.Background(), 404, "hello")
	require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestUnknownScript(t *testing.T) {
	e := newEngine()
	_, err := e.Start(context.Background(), 1, "no_such_script")
	require.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
