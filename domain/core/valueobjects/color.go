package valueobjects

import (
	pkgerrors "flowboard/pkg/errors"
)

// Color is a block color drawn from a fixed palette
type Color string

const (
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorPurple Color = "purple"
	ColorOrange Color = "orange"
	ColorPink   Color = "pink"
	ColorTeal   Color = "teal"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
)

// Palette is the ordered set of block colors new blocks cycle through
var Palette = []Color{
	ColorBlue,
	ColorGreen,
	ColorPurple,
	ColorOrange,
	ColorPink,
	ColorTeal,
	ColorRed,
	ColorYellow,
}

var paletteHex = map[Color]string{
	ColorBlue:   "#3b82f6",
	ColorGreen:  "#22c55e",
	ColorPurple: "#a855f7",
	ColorOrange: "#f97316",
	ColorPink:   "#ec4899",
	ColorTeal:   "#14b8a6",
	ColorRed:    "#ef4444",
	ColorYellow: "#eab308",
}

// ParseColor validates a palette color name
func ParseColor(s string) (Color, error) {
	c := Color(s)
	if !c.IsValid() {
		return "", pkgerrors.NewValidationError("unknown color: " + s)
	}
	return c, nil
}

// IsValid reports whether the color belongs to the palette
func (c Color) IsValid() bool {
	_, ok := paletteHex[c]
	return ok
}

// Hex returns the CSS hex value used when rendering
func (c Color) Hex() string {
	if hex, ok := paletteHex[c]; ok {
		return hex
	}
	return paletteHex[ColorBlue]
}

// PaletteColor returns the palette entry for the nth block, cycling
func PaletteColor(n int) Color {
	if n < 0 {
		n = -n
	}
	return Palette[n%len(Palette)]
}
