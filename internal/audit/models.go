package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	// ActorPrincipal is the chat principal who performed the action; zero
	// when the system acted on its own (seeding, bootstrap).
	ActorPrincipal int64  `json:"actor_principal,omitempty"`
	PartyID        string `json:"party_id,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	Institution    string `json:"institution,omitempty"`
	Detail         string `json:"detail,omitempty"`
}

type Action string

const (
	ActionPartyRegistered    Action = "party_registered"
	ActionPartyPromoted      Action = "party_promoted"
	ActionPartyRemoved       Action = "party_removed"
	ActionRequestSubmitted   Action = "request_submitted"
	ActionRequestTransition  Action = "request_transitioned"
	ActionInstitutionAdded   Action = "institution_added"
	ActionInstitutionRemoved Action = "institution_removed"
)
