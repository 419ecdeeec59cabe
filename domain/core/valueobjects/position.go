package valueobjects

import (
	"fmt"
	"math"
)

// Position is a point in canvas coordinate space
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition creates a position, rejecting NaN and infinite coordinates
func NewPosition(x, y float64) (Position, error) {
	if !isFinite(x) || !isFinite(y) {
		return Position{}, fmt.Errorf("position must be finite, got (%v, %v)", x, y)
	}
	return Position{X: x, Y: y}, nil
}

// Sub returns p - o
func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y}
}

// Add returns p + o
func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y}
}

// Equals compares two positions exactly
func (p Position) Equals(o Position) bool {
	return p.X == o.X && p.Y == o.Y
}

// String returns "(x, y)"
func (p Position) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
