package cmd

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dkeye/SeatVoice/internal/client/participant"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "seatvoice",
	Short: "Headless SeatVoice participant",
	Long: `seatvoice joins a SeatVoice room as a participant. It takes a seat, streams
an Ogg/Opus file (or silence) as its microphone and renders every peer it can
hear into <output>/<peer>.ogg. Lines on stdin are chat messages or commands:
/join <name> <seat>, /move <seat>, /mute, /ping.`,
	RunE: run,
}

func init() {
	f := rootCmd.Flags()
	f.String("server", "http://localhost:8080", "signaling server base URL")
	f.String("room", "main", "room to enter")
	f.String("name", "guest", "display name")
	f.String("seat", "", "seat to join on connect, e.g. seat-0-0")
	f.Bool("audio", false, "enable audio right after joining")
	f.String("capture", "", "Ogg/Opus file used as microphone; silence when empty")
	f.String("output", "./recordings", "directory for rendered peer audio")
	f.StringSlice("stun", nil, "STUN server URLs")
	f.Duration("wait", 0, "how long to wait for the server welcome")
	f.Int("channels", 2, "output channels; below 2 disables spatial rendering")
	f.Bool("volume", true, "output supports per-stream volume")
	f.String("log-level", "info", "log level")

	_ = v.BindPFlags(f)
	v.SetEnvPrefix("SEATVOICE_CLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

func run(cmd *cobra.Command, _ []string) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if lvl, err := zerolog.ParseLevel(v.GetString("log-level")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	var cfg participant.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return participant.Run(ctx, cfg, readLines(ctx))
}

func readLines(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("seatvoice")
		os.Exit(1)
	}
}
