package conversation

import (
	"context"

	locmodels "fixdesk/internal/location/models"
)

// Script identifiers. The transport matches completed outcomes on these to
// decide which service commits the collected fields.
const (
	ScriptSubmitterRegistration  = "submitter_registration"
	ScriptTechnicianRegistration = "technician_registration"
	ScriptRequestSubmission      = "request_submission"
	ScriptProvisionTechnician    = "admin_add_technician"
	ScriptAddInstitution         = "admin_add_institution"
	ScriptDeleteInstitution      = "admin_delete_institution"
	ScriptResolution             = "resolution"
)

// Field keys used across the scripts. Seeded keys (FieldRequestID,
// FieldTargetStatus) are threaded in via StartWith, never prompted for.
const (
	FieldRegion       = "region"
	FieldDistrict     = "district"
	FieldInstitution  = "institution"
	FieldFullName     = "full_name"
	FieldPosition     = "position"
	FieldPhone        = "phone"
	FieldReason       = "reason"
	FieldFloorRoom    = "floor_room"
	FieldSubmittedBy  = "submitted_by"
	FieldPrincipalID  = "principal_id"
	FieldEquipment    = "equipment"
	FieldNarrative    = "narrative"
	FieldRequestID    = "request_id"
	FieldTargetStatus = "target_status"
)

// Catalog supplies the location choice sets for the guided dialogs. The
// location service satisfies it directly.
type Catalog interface {
	ListRegions(ctx context.Context) ([]locmodels.Region, error)
	ListDistricts(ctx context.Context, regionName string) ([]locmodels.District, error)
	ListInstitutions(ctx context.Context, districtName string) ([]locmodels.Institution, error)
}

// Scripts builds the fixed script set for this domain against the given
// location catalog.
func Scripts(catalog Catalog) []Script {
	locationSteps := func() []Step {
		return []Step{
			{Field: FieldRegion, Prompt: "Choose your region", Options: regionOptions(catalog)},
			{Field: FieldDistrict, Prompt: "Choose your district", Options: districtOptions(catalog)},
			{Field: FieldInstitution, Prompt: "Choose your institution", Options: institutionOptions(catalog)},
		}
	}

	return []Script{
		{
			ID: ScriptSubmitterRegistration,
			Steps: append(locationSteps(),
				Step{Field: FieldFullName, Prompt: "Enter your full name"},
				Step{Field: FieldPosition, Prompt: "Enter your position"},
			),
		},
		{
			ID: ScriptTechnicianRegistration,
			Steps: append(locationSteps(),
				Step{Field: FieldFullName, Prompt: "Enter your full name"},
				Step{Field: FieldPosition, Prompt: "Enter your position"},
				Step{Field: FieldPhone, Prompt: "Enter your contact phone", Validate: phoneNumber},
			),
		},
		{
			// The location triple is asked per request so a submitter can
			// report a problem anywhere, not just at their own assignment.
			ID: ScriptRequestSubmission,
			Steps: []Step{
				{Field: FieldRegion, Prompt: "Choose the problem's region", Options: regionOptions(catalog)},
				{Field: FieldDistrict, Prompt: "Choose the problem's district", Options: districtOptions(catalog)},
				{Field: FieldInstitution, Prompt: "Choose the problem's institution", Options: institutionOptions(catalog)},
				{Field: FieldReason, Prompt: "Describe the problem"},
				{Field: FieldFloorRoom, Prompt: "Where exactly is it? (floor, room)"},
				{Field: FieldSubmittedBy, Prompt: "Who is reporting this problem?"},
				{Prompt: "Submit this request? (yes/no)", Confirm: true},
			},
		},
		{
			ID: ScriptProvisionTechnician,
			Steps: append([]Step{
				{Field: FieldPrincipalID, Prompt: "Enter the technician's chat id", Validate: positiveInt},
			}, append(locationSteps(),
				Step{Field: FieldFullName, Prompt: "Enter the technician's full name"},
				Step{Field: FieldPhone, Prompt: "Enter the technician's phone", Validate: phoneNumber},
			)...),
		},
		{
			ID: ScriptAddInstitution,
			Steps: []Step{
				{Field: FieldRegion, Prompt: "Choose the region", Options: regionOptions(catalog)},
				{Field: FieldDistrict, Prompt: "Choose the district", Options: districtOptions(catalog)},
				{Field: FieldInstitution, Prompt: "Enter the new institution's name"},
			},
		},
		{
			ID: ScriptDeleteInstitution,
			Steps: []Step{
				{Field: FieldRegion, Prompt: "Choose the region", Options: regionOptions(catalog)},
				{Field: FieldDistrict, Prompt: "Choose the district", Options: districtOptions(catalog)},
				{Field: FieldInstitution, Prompt: "Choose the institution to remove", Options: institutionOptions(catalog)},
				{Prompt: "Remove this institution? (yes/no)", Confirm: true},
			},
		},
		{
			ID: ScriptResolution,
			Steps: []Step{
				{Field: FieldEquipment, Prompt: "Which equipment or unit was involved?"},
				{Field: FieldNarrative, Prompt: "Describe what was done"},
				{Prompt: "Save this resolution? (yes/no)", Confirm: true},
			},
		},
	}
}

func regionOptions(catalog Catalog) func(context.Context, map[string]string) ([]string, error) {
	return func(ctx context.Context, _ map[string]string) ([]string, error) {
		regions, err := catalog.ListRegions(ctx)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(regions))
		for i, r := range regions {
			names[i] = r.Name
		}
		return names, nil
	}
}

func districtOptions(catalog Catalog) func(context.Context, map[string]string) ([]string, error) {
	return func(ctx context.Context, fields map[string]string) ([]string, error) {
		districts, err := catalog.ListDistricts(ctx, fields[FieldRegion])
		if err != nil {
			return nil, err
		}
		names := make([]string, len(districts))
		for i, d := range districts {
			names[i] = d.Name
		}
		return names, nil
	}
}

func institutionOptions(catalog Catalog) func(context.Context, map[string]string) ([]string, error) {
	return func(ctx context.Context, fields map[string]string) ([]string, error) {
		institutions, err := catalog.ListInstitutions(ctx, fields[FieldDistrict])
		if err != nil {
			return nil, err
		}
		names := make([]string, len(institutions))
		for i, inst := range institutions {
			names[i] = inst.Name
		}
		return names, nil
	}
}
