package models

import "time"

// Conversation is an in-progress, per-principal data-collection dialog.
// At most one is open per principal; starting a new one replaces any
// previous one (last-writer-wins, no merge).
//
// Fields holds the answers collected so far, keyed by step field name.
// Step indexes into the script's ordered step list.
type Conversation struct {
	PrincipalID     int64             `json:"principal_id"`
	ScriptID        string            `json:"script_id"`
	Step            int               `json:"step"`
	Fields          map[string]string `json:"fields"`
	AwaitingConfirm bool              `json:"awaiting_confirm"`
	StartedAt       time.Time         `json:"started_at"`
}

// Clone returns a deep copy so store reads never share the fields map.
func (c Conversation) Clone() Conversation {
	out := c
	out.Fields = make(map[string]string, len(c.Fields))
	for k, v := range c.Fields {
		out.Fields[k] = v
	}
	return out
}
