package valueobjects

import (
	"math"

	pkgerrors "flowboard/pkg/errors"
)

// Position is a value object representing block coordinates in world space
type Position struct {
	x float64
	y float64
}

// NewPosition creates a position with validation
func NewPosition(x, y float64) (Position, error) {
	if !IsFinite(x) || !IsFinite(y) {
		return Position{}, pkgerrors.NewValidationError("invalid coordinates: must be finite numbers")
	}
	return Position{x: x, y: y}, nil
}

// X returns the X coordinate
func (p Position) X() float64 {
	return p.x
}

// Y returns the Y coordinate
func (p Position) Y() float64 {
	return p.y
}

// DistanceTo calculates the Euclidean distance to another position
func (p Position) DistanceTo(other Position) float64 {
	dx := p.x - other.x
	dy := p.y - other.y
	return math.Sqrt(dx*dx + dy*dy)
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	const epsilon = 1e-9
	return math.Abs(p.x-other.x) < epsilon &&
		math.Abs(p.y-other.y) < epsilon
}

// Translate moves the position by the given offsets
func (p Position) Translate(dx, dy float64) (Position, error) {
	return NewPosition(p.x+dx, p.y+dy)
}

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
