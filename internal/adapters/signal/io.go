package signal

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/protocol"
)

const msgUnknownType = "Unknown message type"

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				c.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

// readPump owns the connection lifetime: when it returns the participant is
// disconnected from its room and the socket is closed.
func (ctl *SignalWSController) readPump(
	ctx context.Context,
	cancel context.CancelFunc,
	pid domain.ParticipantID,
	c *WsSignalConn,
) {
	defer func() {
		log.Info().Str("module", "signal").Str("pid", string(pid)).Msg("readPump closing")
		cancel()
		ctl.Orch.Disconnect(pid)
		c.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Cancellation from elsewhere (kick, shutdown) must unblock ReadMessage.
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("pid", string(pid)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleSignal(ctx, pid, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, pid domain.ParticipantID, c *WsSignalConn, data []byte) {
	cmd, err := protocol.DecodeCommand(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("pid", string(pid)).Msg("bad frame")
		if errors.Is(err, protocol.ErrUnknownType) {
			ctl.sendError(c, msgUnknownType)
		}
		return
	}

	switch cmd := cmd.(type) {
	case protocol.Ping:
		ctl.handlePing(c)
	case protocol.Negotiation:
		ctl.handleNegotiation(ctx, pid, cmd)
	case protocol.Chat:
		ctl.handleChat(ctx, pid, cmd)
	default:
		ctl.handleRoomCommand(ctx, pid, cmd)
	}
}

func (ctl *SignalWSController) send(c *WsSignalConn, ev protocol.Event) {
	b, err := protocol.EncodeEvent(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode event")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, msg string) {
	ctl.send(c, protocol.Error{Message: msg})
}
