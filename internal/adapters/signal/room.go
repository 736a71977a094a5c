package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/protocol"
)

// handleRoomCommand queues join, move and toggle_audio for the room actor,
// which answers with a room_state broadcast or an error to the sender.
func (ctl *SignalWSController) handleRoomCommand(ctx context.Context, pid domain.ParticipantID, cmd protocol.Command) {
	log.Debug().Str("module", "signal").Str("pid", string(pid)).Msgf("room command %T", cmd)
	ctl.Orch.Dispatch(ctx, pid, cmd)
}

// handleChat enforces the per-browser chat rate before the room sees the line.
func (ctl *SignalWSController) handleChat(ctx context.Context, pid domain.ParticipantID, cmd protocol.Chat) {
	if ctl.Limiter != nil {
		key := ctl.Orch.Registry.ClientToken(pid)
		if key == "" {
			key = string(pid)
		}
		if !ctl.Limiter.Allow(key) {
			log.Info().Str("module", "signal").Str("pid", string(pid)).Msg("chat rate limited")
			ctl.Orch.Reject(pid, domain.ErrRateLimited.Error())
			return
		}
	}
	ctl.Orch.Dispatch(ctx, pid, cmd)
}
