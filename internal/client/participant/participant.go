// Package participant runs a headless room participant: signaling, the peer
// mesh, local capture and rendering to disk.
package participant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/SeatVoice/internal/adapters/rtc"
	"github.com/dkeye/SeatVoice/internal/client/audio/device"
	"github.com/dkeye/SeatVoice/internal/client/capture"
	"github.com/dkeye/SeatVoice/internal/client/mesh"
	"github.com/dkeye/SeatVoice/internal/client/session"
	"github.com/dkeye/SeatVoice/internal/client/signaling"
	"github.com/dkeye/SeatVoice/internal/domain"
	"github.com/dkeye/SeatVoice/internal/protocol"
)

var ErrDisconnected = errors.New("disconnected from server")

type Config struct {
	Server  string        `mapstructure:"server"`
	Room    string        `mapstructure:"room"`
	Name    string        `mapstructure:"name"`
	Seat    string        `mapstructure:"seat"`
	Audio   bool          `mapstructure:"audio"`
	Capture string        `mapstructure:"capture"`
	Output  string        `mapstructure:"output"`
	STUN    []string      `mapstructure:"stun"`
	Wait    time.Duration `mapstructure:"wait"`

	Channels int  `mapstructure:"channels"`
	Volume   bool `mapstructure:"volume"`
}

// Run connects to the server and serves the participant until ctx ends or
// the connection drops. Lines read from input are parsed with ParseCommand.
func Run(ctx context.Context, cfg Config, input <-chan string) error {
	if cfg.Wait <= 0 {
		cfg.Wait = 10 * time.Second
	}
	sig, err := signaling.Dial(ctx, cfg.Server, cfg.Room)
	if err != nil {
		return err
	}
	defer sig.Close()

	self, err := awaitWelcome(ctx, sig, cfg.Wait)
	if err != nil {
		return err
	}
	logger := log.With().Str("module", "participant").Str("pid", string(self)).Logger()
	logger.Info().Str("room", cfg.Room).Msg("connected")

	track, err := capture.NewTrack(string(self))
	if err != nil {
		return fmt.Errorf("create capture track: %w", err)
	}
	rec, err := device.NewRecorder(device.Options{Dir: cfg.Output, Channels: cfg.Channels, Volume: cfg.Volume})
	if err != nil {
		return err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			logger.Error().Err(err).Msg("close recorder")
		}
	}()

	m := mesh.New(self, session.NewFactory(session.Config{
		WebRTC: rtc.DefaultWebRTCConfig(cfg.STUN...),
		Local:  track,
		Engine: rec,
		Sender: sig,
	}))

	if cfg.Seat != "" {
		if err := sig.Send(protocol.Join{Name: cfg.Name, SeatID: domain.SeatID(cfg.Seat)}); err != nil {
			return err
		}
		if cfg.Audio {
			if err := sig.Send(protocol.ToggleAudio{}); err != nil {
				return err
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.Run(gctx) })
	g.Go(func() error { return capture.Stream(gctx, track, cfg.Capture) })
	g.Go(func() error {
		<-gctx.Done()
		sig.Close()
		return nil
	})
	g.Go(func() error {
		for ev := range sig.Events() {
			switch ev := ev.(type) {
			case protocol.RoomState:
				m.Snapshot(domain.Snapshot(ev))
			case protocol.Relayed:
				m.Relayed(ev)
			case protocol.ChatMessage:
				logger.Info().Str("from", ev.UserName).Str("text", ev.Message).Msg("chat")
			case protocol.Error:
				logger.Warn().Str("error", ev.Message).Msg("server rejected request")
			case protocol.Pong:
				logger.Debug().Msg("pong")
			}
		}
		if gctx.Err() != nil {
			return nil
		}
		return ErrDisconnected
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-input:
				if !ok {
					return nil
				}
				cmd, err := ParseCommand(line)
				if err != nil {
					logger.Warn().Msg(err.Error())
					continue
				}
				if err := sig.Send(cmd); err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}

func awaitWelcome(ctx context.Context, sig *signaling.Client, wait time.Duration) (domain.ParticipantID, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-sig.Events():
			if !ok {
				return "", ErrDisconnected
			}
			if w, ok := ev.(protocol.Welcome); ok {
				return w.UserID, nil
			}
		case <-timer.C:
			return "", fmt.Errorf("no welcome within %s", wait)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
