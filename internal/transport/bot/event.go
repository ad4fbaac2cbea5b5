package bot

// Kind classifies an inbound chat event.
type Kind string

const (
	KindCommand     Kind = "command"
	KindText        Kind = "text"
	KindButtonPress Kind = "button_press"
)

// Event is one inbound chat update, already stripped of any platform
// specifics by the webhook layer.
type Event struct {
	PrincipalID int64  `json:"principal_id"`
	Kind        Kind   `json:"kind"`
	Payload     string `json:"payload"`
}

// Reply is the structured answer the chat layer renders back to the
// principal. Options, when present, become selectable choices; the core
// formats no chat markup.
type Reply struct {
	Recipient int64    `json:"recipient"`
	Text      string   `json:"text"`
	Options   []string `json:"options,omitempty"`
}

// Menu actions and button payload prefixes. Buttons carrying an entity id
// use "<prefix><id>".
const (
	ActionStart              = "/start"
	ActionRegister           = "register"
	ActionRegisterTechnician = "register_technician"
	ActionSubmitRequest      = "submit_request"
	ActionMyRequests         = "my_requests"
	ActionProfile            = "profile"
	ActionActiveRequests     = "active_requests"
	ActionStats              = "stats"
	ActionAddTechnician      = "add_technician"
	ActionAddInstitution     = "add_institution"
	ActionDeleteInstitution  = "delete_institution"

	PrefixTake             = "take:"
	PrefixComplete         = "complete:"
	PrefixNotComplete      = "not_complete:"
	PrefixRemoveTechnician = "remove_technician:"
)
