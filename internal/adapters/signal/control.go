package signal

import "github.com/dkeye/SeatVoice/internal/protocol"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.send(conn, protocol.Pong{})
}
