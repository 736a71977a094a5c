package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/SeatVoice/internal/core"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Room RoomConfig `mapstructure:"room"`
	Chat ChatConfig `mapstructure:"chat"`
}

type RoomConfig struct {
	Grid       core.GridSpec `mapstructure:"grid"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

type ChatConfig struct {
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
	MaxLength  int           `mapstructure:"max_length"`
}

func setDefaults(v *viper.Viper) {
	grid := core.DefaultGrid()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "seatvoice-dev-secret")
	v.SetDefault("log_level", "info")

	v.SetDefault("room.grid.rows", grid.Rows)
	v.SetDefault("room.grid.cols", grid.Cols)
	v.SetDefault("room.grid.origin.x", grid.Origin.X)
	v.SetDefault("room.grid.origin.y", grid.Origin.Y)
	v.SetDefault("room.grid.spacing", grid.Spacing)
	v.SetDefault("room.send_buffer", 64)

	v.SetDefault("chat.rate_limit", 10)
	v.SetDefault("chat.rate_window", "10s")
	v.SetDefault("chat.max_length", 500)
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("SEATVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Int("seats", cfg.Room.Grid.Rows*cfg.Room.Grid.Cols).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Room.Grid.Rows <= 0 || c.Room.Grid.Cols <= 0 {
		return fmt.Errorf("invalid seat grid %dx%d", c.Room.Grid.Rows, c.Room.Grid.Cols)
	}
	if c.Room.SendBuffer <= 0 {
		return fmt.Errorf("invalid send buffer %d", c.Room.SendBuffer)
	}
	if c.Chat.RateLimit <= 0 || c.Chat.RateWindow <= 0 {
		return fmt.Errorf("invalid chat rate limit %d per %s", c.Chat.RateLimit, c.Chat.RateWindow)
	}
	return nil
}

// Level maps the configured log level, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
