// Package spatial maps distances between seats to audio attenuation.
package spatial

import (
	"math"

	"github.com/dkeye/SeatVoice/internal/domain"
)

// MaxHearingDistance is the distance at which gain reaches zero. Chat uses
// the same bound, inclusive.
const MaxHearingDistance = 80.0

// Gain returns the attenuation coefficient in [0, 1] for a distance given in
// seat-position units. Piecewise linear, continuous, non-increasing.
func Gain(distance float64) float64 {
	switch {
	case math.IsNaN(distance):
		return 0
	case distance <= 15:
		return 1.0
	case distance <= 30:
		return 0.8 + 0.2*(1-(distance-15)/15)
	case distance <= 50:
		return 0.4 + 0.4*(1-(distance-30)/20)
	case distance < MaxHearingDistance:
		return 0.4 * (1 - (distance-50)/30)
	default:
		return 0
	}
}

// Distance is the euclidean distance between two positions.
func Distance(a, b domain.Position) float64 {
	return a.DistanceTo(b)
}

// InRange reports whether b is close enough to a to receive proximity chat.
func InRange(a, b domain.Position) bool {
	return Distance(a, b) <= MaxHearingDistance
}

// Placement describes a remote source relative to the listener.
type Placement struct {
	// DX, DY point from listener to source; zero when co-located.
	DX, DY   float64
	Distance float64
	Gain     float64
}

// Place computes where a source at src sounds from for a listener at listener.
func Place(listener, src domain.Position) Placement {
	d := Distance(listener, src)
	p := Placement{Distance: d, Gain: Gain(d)}
	if d > 0 {
		p.DX = (src.X - listener.X) / d
		p.DY = (src.Y - listener.Y) / d
	}
	return p
}

// Pan returns equal-power left/right channel weights for a placement. Only
// the horizontal component is used; sources straight ahead or behind are
// centered.
func Pan(p Placement) (left, right float64) {
	theta := (p.DX + 1) * math.Pi / 4
	return math.Cos(theta), math.Sin(theta)
}
