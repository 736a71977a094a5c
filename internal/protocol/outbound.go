package protocol

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/dkeye/SeatVoice/internal/domain"
)

// Event is a frame sent by the server to a client.
type Event interface{ isEvent() }

type Welcome struct {
	UserID domain.ParticipantID `json:"userId"`
}

type RoomState domain.Snapshot

type ChatMessage struct {
	UserID   domain.ParticipantID `json:"userId"`
	UserName string               `json:"userName"`
	Message  string               `json:"message"`
	Position domain.Position      `json:"position"`
}

type Error struct {
	Message string `json:"message"`
}

type Pong struct{}

// Relayed is a negotiation message forwarded from another participant.
type Relayed struct {
	Kind NegotiationKind
	From domain.ParticipantID
	Body map[string]json.RawMessage
}

func (Welcome) isEvent()     {}
func (RoomState) isEvent()   {}
func (ChatMessage) isEvent() {}
func (Error) isEvent()       {}
func (Pong) isEvent()        {}
func (Relayed) isEvent()     {}

// Decode unmarshals the negotiation object carried by a relayed message.
func (r Relayed) Decode(v any) error {
	raw, ok := r.Body[r.Kind.Field()]
	if !ok {
		return fmt.Errorf("%w: %s without %s", ErrMalformed, r.Kind, r.Kind.Field())
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, r.Kind, err)
	}
	return nil
}

// EncodeEvent renders a server frame.
func EncodeEvent(e Event) ([]byte, error) {
	switch e := e.(type) {
	case Welcome:
		return encode(TypeWelcome, e)
	case RoomState:
		return encode(TypeRoomState, e)
	case ChatMessage:
		return encode(TypeChatMessage, e)
	case Error:
		return encode(TypeError, e)
	case Pong:
		return encode(TypePong, nil)
	case Relayed:
		return EncodeRelayed(e.Kind, e.From, e.Body)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, e)
	}
}

// EncodeRelayed stamps the sender id onto an untouched negotiation body.
func EncodeRelayed(kind NegotiationKind, from domain.ParticipantID, body map[string]json.RawMessage) ([]byte, error) {
	out := make(map[string]any, len(body)+1)
	for k, v := range body {
		out[k] = v
	}
	out[keyFrom] = from
	return encode(string(kind), out)
}

// DecodeEvent parses a server frame.
func DecodeEvent(data []byte) (Event, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case TypeWelcome:
		return decodeAs[Welcome](env)
	case TypeRoomState:
		return decodeAs[RoomState](env)
	case TypeChatMessage:
		return decodeAs[ChatMessage](env)
	case TypeError:
		return decodeAs[Error](env)
	case TypePong:
		return Pong{}, nil
	}
	kind, ok := negotiationKind(env.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	var f fields
	if err := decodePayload(env, &f); err != nil {
		return nil, err
	}
	from, err := f.id(keyFrom)
	if err != nil {
		return nil, err
	}
	return Relayed{Kind: kind, From: from, Body: f}, nil
}
