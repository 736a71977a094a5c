package app

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/protocol"
)

var (
	ErrTargetUnknown   = errors.New("target not connected")
	ErrTargetElsewhere = errors.New("target is in another room")
	ErrTargetSlow      = errors.New("target buffer full")
)

type RelayStats struct {
	Delivered int64 `json:"delivered"`
	Missed    int64 `json:"missed"`
}

// Relay forwards negotiation messages between participants of the same room.
// The server never inspects the forwarded body.
type Relay struct {
	reg *Registry

	delivered atomic.Int64
	missed    atomic.Int64
	counter   metric.Int64Counter
}

func NewRelay(reg *Registry) *Relay {
	return &Relay{
		reg:     reg,
		counter: counter("relay.messages", "Negotiation messages handled by the relay."),
	}
}

// Forward delivers body from sender to target. A miss is logged and counted,
// and the returned error only tells the caller why.
func (r *Relay) Forward(
	ctx context.Context,
	kind protocol.NegotiationKind,
	from, target domain.ParticipantID,
	body map[string]json.RawMessage,
) error {
	err := r.forward(kind, from, target, body)
	outcome := "delivered"
	if err != nil {
		outcome = "missed"
		r.missed.Add(1)
		log.Info().
			Str("module", "app.relay").
			Str("kind", string(kind)).
			Str("from", string(from)).
			Str("target", string(target)).
			Err(err).
			Msg("delivery missed")
	} else {
		r.delivered.Add(1)
	}
	r.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome),
	))
	return err
}

func (r *Relay) forward(
	kind protocol.NegotiationKind,
	from, target domain.ParticipantID,
	body map[string]json.RawMessage,
) error {
	fromRoom, ok := r.reg.RoomOf(from)
	if !ok {
		return ErrTargetUnknown
	}
	conn, targetRoom, ok := r.reg.Conn(target)
	if !ok {
		return ErrTargetUnknown
	}
	if targetRoom != fromRoom {
		return ErrTargetElsewhere
	}
	frame, err := protocol.EncodeRelayed(kind, from, body)
	if err != nil {
		return err
	}
	if err := conn.TrySend(frame); err != nil {
		return ErrTargetSlow
	}
	return nil
}

func (r *Relay) Stats() RelayStats {
	return RelayStats{Delivered: r.delivered.Load(), Missed: r.missed.Load()}
}
