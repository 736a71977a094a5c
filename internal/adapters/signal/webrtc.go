package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/protocol"
)

// handleNegotiation forwards an offer, answer or candidate to its target.
// The body is never parsed here; a target that is gone is only logged.
func (ctl *SignalWSController) handleNegotiation(ctx context.Context, pid domain.ParticipantID, n protocol.Negotiation) {
	log.Debug().
		Str("module", "signal").
		Str("pid", string(pid)).
		Str("kind", string(n.Kind)).
		Str("target", string(n.Target)).
		Msg("negotiation")
	ctl.Orch.Dispatch(ctx, pid, n)
}
