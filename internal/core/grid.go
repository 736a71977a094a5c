package core

import (
	"fmt"

	"github.com/dkeye/SeatVoice/internal/domain"
)

// GridSpec lays seats out on a regular grid. Seat "seat-r-c" sits at
// Origin + (c, r) * Spacing.
type GridSpec struct {
	Rows    int             `mapstructure:"rows"`
	Cols    int             `mapstructure:"cols"`
	Origin  domain.Position `mapstructure:"origin"`
	Spacing float64         `mapstructure:"spacing"`
}

func DefaultGrid() GridSpec {
	return GridSpec{Rows: 4, Cols: 4, Origin: domain.Position{X: 20, Y: 20}, Spacing: 20}
}

func SeatIDAt(row, col int) domain.SeatID {
	return domain.SeatID(fmt.Sprintf("seat-%d-%d", row, col))
}

// Seats builds the free seats of the grid in row-major order.
func (g GridSpec) Seats() []domain.Seat {
	if g.Rows <= 0 || g.Cols <= 0 {
		return nil
	}
	seats := make([]domain.Seat, 0, g.Rows*g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			seats = append(seats, domain.Seat{
				ID: SeatIDAt(r, c),
				Position: domain.Position{
					X: g.Origin.X + float64(c)*g.Spacing,
					Y: g.Origin.Y + float64(r)*g.Spacing,
				},
			})
		}
	}
	return seats
}
