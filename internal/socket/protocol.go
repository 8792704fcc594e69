// Package socket implements the client-facing subscription protocol:
// authenticating a websocket connection against a (townID,
// sessionToken) pair, bridging controller notifications to outbound
// socket events, and relaying inbound player-movement events back into
// the controller (spec §6).
//
// Transport is grounded on codefionn-scriptschnell/internal/web
// (gorilla/websocket upgrade, ReadPump/WritePump, ping/pong keepalive)
// since the teacher's own listeners (telnet, ssh) are line-oriented
// terminal protocols with no analog for a browser client; fan-out is
// grounded on the teacher's internal/messaging: a town's single Bridge
// publishes to the town's eventbus subject, and every socket connection
// subscribes to that subject instead of the controller holding a
// listener per connection.
package socket

import (
	"encoding/json"
	"fmt"

	"github.com/covey-town/townd/internal/town"
)

// Event names exchanged over the socket (spec §6).
const (
	EventNewPlayer             = "newPlayer"
	EventPlayerMoved           = "playerMoved"
	EventPlayerDisconnect      = "playerDisconnect"
	EventTownClosing           = "townClosing"
	EventConversationUpdated   = "conversationUpdated"
	EventConversationDestroyed = "conversationDestroyed"

	// EventPlayerMovement is the sole inbound client->server event.
	EventPlayerMovement = "playerMovement"
)

// Envelope is the wire message shape for every socket frame in both
// directions: an event name plus its JSON payload. Grounded on
// codefionn-scriptschnell/internal/web's WebMessage (a single tagged
// struct), narrowed here to a name+payload envelope since this
// protocol's payloads are heterogeneous domain types rather than one
// flat struct.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// areaDTO is the wire representation of a ConversationArea: the type
// itself carries a mutex and unexported fields, so it is never
// marshaled directly.
type areaDTO struct {
	Label       string           `json:"label"`
	Topic       string           `json:"topic"`
	BoundingBox town.BoundingBox `json:"boundingBox"`
	Occupants   []string         `json:"occupantsByID"`
}

func newAreaDTO(a *town.ConversationArea) areaDTO {
	return areaDTO{
		Label:       a.Label(),
		Topic:       a.Topic(),
		BoundingBox: a.BoundingBox(),
		Occupants:   a.Occupants(),
	}
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("socket: encoding %s payload: %w", event, err)
		}
		raw = b
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}
