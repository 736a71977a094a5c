// Package capture feeds the local participant's microphone track.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog/log"
)

const (
	frameDuration = 20 * time.Millisecond
	sampleRate    = 48000
)

// silenceFrame is a 20ms Opus frame that decodes to silence.
var silenceFrame = []byte{0xf8, 0xff, 0xfe}

// SampleWriter is satisfied by *webrtc.TrackLocalStaticSample.
type SampleWriter interface {
	WriteSample(media.Sample) error
}

// NewTrack creates the single local audio track shared by every session.
func NewTrack(streamID string) (*webrtc.TrackLocalStaticSample, error) {
	return webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: sampleRate, Channels: 2},
		"audio", streamID,
	)
}

// Stream writes audio into w until ctx ends: the Ogg/Opus file at path in a
// loop, or silence when path is empty.
func Stream(ctx context.Context, w SampleWriter, path string) error {
	if path == "" {
		return streamSilence(ctx, w)
	}
	return streamFile(ctx, w, path)
}

func streamSilence(ctx context.Context, w SampleWriter) error {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.WriteSample(media.Sample{Data: silenceFrame, Duration: frameDuration}); err != nil {
				return fmt.Errorf("write silence: %w", err)
			}
		}
	}
}

func streamFile(ctx context.Context, w SampleWriter, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer file.Close()

	ogg, _, err := oggreader.NewWith(file)
	if err != nil {
		return fmt.Errorf("read ogg header: %w", err)
	}

	var lastGranule uint64
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		page, header, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewind capture: %w", err)
			}
			if ogg, _, err = oggreader.NewWith(file); err != nil {
				return fmt.Errorf("read ogg header: %w", err)
			}
			lastGranule = 0
			log.Debug().Str("module", "capture").Str("file", path).Msg("looping capture")
			continue
		}
		if err != nil {
			return fmt.Errorf("read ogg page: %w", err)
		}

		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(samples) * time.Second / sampleRate
		if err := w.WriteSample(media.Sample{Data: page, Duration: duration}); err != nil {
			return fmt.Errorf("write sample: %w", err)
		}
	}
}
