package app

import (
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/dkeye/SeatVoice/internal/app"

// counter creates an Int64Counter on the global meter provider, falling back
// to a no-op instrument when registration fails.
func counter(name, desc string) metric.Int64Counter {
	c, err := otel.Meter(meterName).Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		log.Error().Err(err).Str("module", "app.metrics").Str("instrument", name).Msg("create counter")
		return noop.Int64Counter{}
	}
	return c
}
