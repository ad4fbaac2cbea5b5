package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "fixdesk/pkg/domain-errors"
)

// Role is the closed set of party roles. Authorization checks switch over it
// exhaustively; an unknown role is a programming error, not a runtime branch.
type Role string

const (
	RoleSubmitter  Role = "submitter"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSubmitter, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

// RequiresLocation reports whether parties with this role carry a real
// region/district/institution assignment. Admins are unscoped.
func (r Role) RequiresLocation() bool {
	switch r {
	case RoleSubmitter, RoleTechnician:
		return true
	case RoleAdmin:
		return false
	}
	return false
}

// UnscopedLocation is the sentinel assignment for admin parties.
const UnscopedLocation = "-"

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 -]{5,19}$`)

// Party is a registered principal with a role and, for non-admins, a fixed
// location assignment.
//
// Invariants:
//   - At most one Party per external principal id (enforced by the store)
//   - Role is one of the closed enum values
//   - Submitters and technicians carry a full location triple; admins carry
//     the UnscopedLocation sentinel in all three fields
//   - CreatedAt is immutable after construction
//
// Parties are soft-deactivated, never deleted: historical requests keep a
// resolvable owning/resolving reference for audit.
type Party struct {
	ID          uuid.UUID
	PrincipalID int64
	Role        Role
	Region      string
	District    string
	Institution string
	FullName    string
	Position    string
	Phone       string
	Active      bool
	CreatedAt   time.Time
}

// NewParty validates invariants and constructs a Party.
func NewParty(id uuid.UUID, principalID int64, role Role, region, district, institution, fullName, position, phone string, now time.Time) (*Party, error) {
	if principalID <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "principal id must be positive")
	}
	if !role.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown role %q", role)
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "full name cannot be empty")
	}
	position = strings.TrimSpace(position)
	if position == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "position cannot be empty")
	}
	region, district, institution = strings.TrimSpace(region), strings.TrimSpace(district), strings.TrimSpace(institution)
	if role.RequiresLocation() {
		if region == "" || district == "" || institution == "" {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "submitters and technicians need a full location assignment")
		}
	} else {
		region, district, institution = UnscopedLocation, UnscopedLocation, UnscopedLocation
	}
	phone = strings.TrimSpace(phone)
	if phone != "" && !phonePattern.MatchString(phone) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "phone number is malformed")
	}
	return &Party{
		ID:          id,
		PrincipalID: principalID,
		Role:        role,
		Region:      region,
		District:    district,
		Institution: institution,
		FullName:    fullName,
		Position:    position,
		Phone:       phone,
		Active:      true,
		CreatedAt:   now,
	}, nil
}

// ValidPhone reports whether raw looks like a phone number. Used by the
// technician registration dialog before construction.
func ValidPhone(raw string) bool {
	return phonePattern.MatchString(strings.TrimSpace(raw))
}

// AssignedTo reports whether the party's assignment matches the triple
// exactly. Admins never match—they are unscoped by construction.
func (p *Party) AssignedTo(region, district, institution string) bool {
	return p.Region == region && p.District == district && p.Institution == institution
}
