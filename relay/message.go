package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/they4kman/sweeprelay/game"
)

// Message types understood by the relay. Anything else is dropped.
const (
	TypeGameState = "game_state"
	TypeAction    = "action"
)

// Largest frame either side will read; full boards are sent on every change.
const maxMessageSize = 1 << 20

var ErrUnknownMessage = errors.New("unknown message type")

type Envelope struct {
	Type   string          `json:"type"`
	Action string          `json:"action,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Action is a one-off notification about something the driver did
type Action struct {
	Name string                 `json:"action"`
	Data map[string]interface{} `json:"data"`
}

func StateMessage(state *game.GameState) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: TypeGameState, Data: data})
}

func ActionMessage(name string, data map[string]interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: TypeAction, Action: name, Data: raw})
}

// DecodeEnvelope parses a frame, rejecting malformed JSON and unknown types
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return envelope, fmt.Errorf("malformed message: %w", err)
	}

	switch envelope.Type {
	case TypeGameState:
		if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
			return envelope, fmt.Errorf("game_state message without data")
		}
	case TypeAction:
	default:
		return envelope, fmt.Errorf("%w %q", ErrUnknownMessage, envelope.Type)
	}
	return envelope, nil
}

func (envelope Envelope) GameState() (*game.GameState, error) {
	var state game.GameState
	if err := json.Unmarshal(envelope.Data, &state); err != nil {
		return nil, fmt.Errorf("malformed game state: %w", err)
	}
	return &state, nil
}

func (envelope Envelope) ToAction() Action {
	action := Action{Name: envelope.Action}
	if len(envelope.Data) > 0 {
		// Non-object payloads are surfaced without data
		_ = json.Unmarshal(envelope.Data, &action.Data)
	}
	return action
}
