package protocol

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/dkeye/SeatVoice/internal/domain"
)

// Command is a frame sent by a client to the server.
type Command interface{ isCommand() }

type Join struct {
	Name   string        `json:"name"`
	SeatID domain.SeatID `json:"seatId"`
}

type Move struct {
	SeatID domain.SeatID `json:"seatId"`
}

type ToggleAudio struct{}

type Chat struct {
	Message string `json:"message"`
}

type Ping struct{}

// Negotiation is an offer, answer or candidate addressed to another
// participant. Body holds the payload without the addressing key and is
// never interpreted by the server.
type Negotiation struct {
	Kind   NegotiationKind
	Target domain.ParticipantID
	Body   map[string]json.RawMessage
}

func (Join) isCommand()        {}
func (Move) isCommand()        {}
func (ToggleAudio) isCommand() {}
func (Chat) isCommand()        {}
func (Ping) isCommand()        {}
func (Negotiation) isCommand() {}

// DecodeCommand parses a client frame.
func DecodeCommand(data []byte) (Command, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case TypeJoin:
		return decodeAs[Join](env)
	case TypeMove:
		return decodeAs[Move](env)
	case TypeToggleAudio:
		return ToggleAudio{}, nil
	case TypeChat:
		return decodeAs[Chat](env)
	case TypePing:
		return Ping{}, nil
	}
	kind, ok := negotiationKind(env.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	var f fields
	if err := decodePayload(env, &f); err != nil {
		return nil, err
	}
	target, err := f.id(keyTarget)
	if err != nil {
		return nil, err
	}
	return Negotiation{Kind: kind, Target: target, Body: f}, nil
}

// EncodeCommand renders a client frame.
func EncodeCommand(c Command) ([]byte, error) {
	switch c := c.(type) {
	case Join:
		return encode(TypeJoin, c)
	case Move:
		return encode(TypeMove, c)
	case ToggleAudio:
		return encode(TypeToggleAudio, nil)
	case Chat:
		return encode(TypeChat, c)
	case Ping:
		return encode(TypePing, nil)
	case Negotiation:
		body := make(map[string]any, len(c.Body)+1)
		for k, v := range c.Body {
			body[k] = v
		}
		body[keyTarget] = c.Target
		return encode(string(c.Kind), body)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, c)
	}
}

// NewNegotiation wraps a negotiation object (session description or ICE
// candidate) under the field its kind expects.
func NewNegotiation(kind NegotiationKind, target domain.ParticipantID, v any) (Negotiation, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Negotiation{}, fmt.Errorf("encode %s: %w", kind, err)
	}
	return Negotiation{
		Kind:   kind,
		Target: target,
		Body:   map[string]json.RawMessage{kind.Field(): raw},
	}, nil
}
