// Package wire defines the JSON envelopes the optional live-monitor
// feed (internal/live) streams over a websocket. It is a read-only tap
// of internal/eventbus events, not a control plane: there are no
// client-to-server message types, consistent with spec.md's Non-goals
// excluding a user interface.
package wire

import (
	"encoding/json"

	"github.com/ersantana/bobcatsim/internal/eventbus"
)

// MessageType distinguishes the envelopes the feed emits.
type MessageType string

const (
	// MsgEvent carries one eventbus.Event, verbatim.
	MsgEvent MessageType = "event"
	// MsgSnapshot carries a point-in-time summary of run progress. The
	// internal/live hub does not send it; it only forwards events.
	MsgSnapshot MessageType = "snapshot"
	// MsgError reports a server-side problem (e.g. the run aborted).
	MsgError MessageType = "error"
)

// Envelope is the outer JSON shape every feed message shares.
type Envelope struct {
	Type MessageType `json:"type"`
}

// EventMessage wraps one simulation event for the wire.
type EventMessage struct {
	Type  MessageType    `json:"type"`
	Event eventbus.Event `json:"event"`
}

// NewEventMessage builds an EventMessage from an eventbus.Event.
func NewEventMessage(e eventbus.Event) EventMessage {
	return EventMessage{Type: MsgEvent, Event: e}
}

// SnapshotMessage summarizes run progress at subscribe time.
type SnapshotMessage struct {
	Type     MessageType `json:"type"`
	SimTime  float64     `json:"simTime"`
	Network  string      `json:"network"`
	Running  bool        `json:"running"`
	NodeList []string    `json:"nodeList"`
}

// ErrorMessage reports a server-side error to the client.
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// NewErrorMessage builds an ErrorMessage.
func NewErrorMessage(msg string) ErrorMessage {
	return ErrorMessage{Type: MsgError, Message: msg}
}

// ParseType reads just the envelope's Type field, for a client that
// needs to dispatch before fully unmarshaling.
func ParseType(data []byte) (MessageType, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}

// ToJSON serializes any wire message.
func ToJSON(msg interface{}) ([]byte, error) {
	return json.Marshal(msg)
}
