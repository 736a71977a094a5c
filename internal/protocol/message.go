// Package protocol defines the JSON frames exchanged over the signal socket.
// Every frame is an envelope {type, payload}; decoding yields one variant of
// a closed set and rejects unknown types.
package protocol

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/dkeye/SeatVoice/internal/domain"
)

var (
	ErrMalformed   = errors.New("malformed frame")
	ErrUnknownType = errors.New("unknown message type")
)

// Message types.
const (
	TypeJoin         = "join"
	TypeMove         = "move"
	TypeToggleAudio  = "toggle_audio"
	TypeChat         = "chat"
	TypePing         = "ping"
	TypeWelcome      = "welcome"
	TypeRoomState    = "room_state"
	TypeChatMessage  = "chat_message"
	TypeError        = "error"
	TypePong         = "pong"
	TypeAudioOffer   = "audio_offer"
	TypeAudioAnswer  = "audio_answer"
	TypeICECandidate = "ice_candidate"
)

// Envelope is the outer shape of every frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NegotiationKind tags the three negotiation variants.
type NegotiationKind string

const (
	KindOffer     NegotiationKind = TypeAudioOffer
	KindAnswer    NegotiationKind = TypeAudioAnswer
	KindCandidate NegotiationKind = TypeICECandidate
)

// Field is the payload key that carries the opaque negotiation body.
func (k NegotiationKind) Field() string {
	switch k {
	case KindOffer:
		return "offer"
	case KindAnswer:
		return "answer"
	default:
		return "candidate"
	}
}

func negotiationKind(t string) (NegotiationKind, bool) {
	switch NegotiationKind(t) {
	case KindOffer, KindAnswer, KindCandidate:
		return NegotiationKind(t), true
	}
	return "", false
}

func encode(typ string, payload any) ([]byte, error) {
	env := Envelope{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", typ, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

func decodePayload(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: %s without payload", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
	}
	return nil
}

// Negotiation fields are kept as raw JSON; only the addressing key is read.
type fields map[string]json.RawMessage

const (
	keyTarget = "targetUserId"
	keyFrom   = "fromUserId"
)

func (f fields) id(key string) (domain.ParticipantID, error) {
	raw, ok := f[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", ErrMalformed, key)
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil || id == "" {
		return "", fmt.Errorf("%w: bad %s", ErrMalformed, key)
	}
	delete(f, key)
	return domain.ParticipantID(id), nil
}

func decodeAs[T any](env Envelope) (T, error) {
	var v T
	err := decodePayload(env, &v)
	return v, err
}
