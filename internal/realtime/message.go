// Package realtime implements the collaborative editing core: a per-document
// broadcast router, connection registry, presence store, and the gateway that
// persists content changes into the contract store.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound event kinds accepted from clients.
const (
	TypeJoin          = "join"
	TypeCursorMove    = "cursor_move"
	TypeContentChange = "content_change"
)

// Outbound event kinds emitted to clients.
const (
	TypePresenceUpdate = "presence_update"
	TypeCursorUpdate   = "cursor_update"
	TypeContentUpdate  = "content_update"
	TypeError          = "error"
)

const (
	ActionJoined = "joined"
	ActionLeft   = "left"
)

// Position is a cursor location inside a contract document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Envelope is the wire message exchanged over the realtime transport. It is a
// closed tagged union: Type selects which of the optional fields are
// meaningful. Anything that does not match a known inbound shape is rejected
// at the boundary.
type Envelope struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"userId,omitempty"`
	ContractID int64     `json:"contractId,omitempty"`
	Position   *Position `json:"position,omitempty"`
	Content    *string   `json:"content,omitempty"`
	WordCount  int       `json:"wordCount,omitempty"`
	Action     string    `json:"action,omitempty"`
	Timestamp  string    `json:"timestamp,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// ParseInbound decodes and validates a client frame against the known inbound
// shapes. Missing join identifiers are not a parse error; the router decides
// what to do with those.
func ParseInbound(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	switch env.Type {
	case TypeJoin:
		return env, nil
	case TypeCursorMove:
		if env.Position == nil {
			return Envelope{}, fmt.Errorf("cursor_move requires a position")
		}
		return env, nil
	case TypeContentChange:
		if env.Content == nil {
			return Envelope{}, fmt.Errorf("content_change requires content")
		}
		return env, nil
	case "":
		return Envelope{}, fmt.Errorf("missing message type")
	default:
		return Envelope{}, fmt.Errorf("unknown message type %q", env.Type)
	}
}

func errorEnvelope(message string) Envelope {
	return Envelope{Type: TypeError, Message: message}
}

func wireTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
