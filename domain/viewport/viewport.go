// Package viewport maps between screen space (pointer coordinates) and world
// space (block coordinates) through a pan offset and a zoom factor.
package viewport

import (
	"flowboard/domain/config"
	"flowboard/domain/core/valueobjects"
)

// Viewport is the pan/zoom transform of one canvas session. It is never
// persisted. All operations ignore non-finite input and leave state unchanged.
type Viewport struct {
	zoom   float64
	panX   float64
	panY   float64
	bounds *config.CanvasConfig
}

// State is the plain form of a viewport for transport
type State struct {
	Zoom float64 `json:"zoom"`
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
}

// New returns the identity viewport with default bounds
func New() *Viewport {
	return NewWithConfig(config.DefaultCanvasConfig())
}

// NewWithConfig returns the identity viewport with custom zoom bounds
func NewWithConfig(cfg *config.CanvasConfig) *Viewport {
	if cfg == nil {
		cfg = config.DefaultCanvasConfig()
	}
	return &Viewport{zoom: 1, bounds: cfg}
}

// Zoom returns the current zoom factor
func (v *Viewport) Zoom() float64 {
	return v.zoom
}

// Pan returns the current pan offset in screen pixels
func (v *Viewport) Pan() (x, y float64) {
	return v.panX, v.panY
}

// State returns a copy of the transform
func (v *Viewport) State() State {
	return State{Zoom: v.zoom, PanX: v.panX, PanY: v.panY}
}

// ScreenToWorld inverse-applies pan and zoom
func (v *Viewport) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	return (sx - v.panX) / v.zoom, (sy - v.panY) / v.zoom
}

// WorldToScreen applies zoom then pan
func (v *Viewport) WorldToScreen(wx, wy float64) (sx, sy float64) {
	return wx*v.zoom + v.panX, wy*v.zoom + v.panY
}

// ZoomAt changes the zoom by delta, clamped to the configured range, keeping
// the world point under (sx, sy) fixed on screen.
func (v *Viewport) ZoomAt(sx, sy, delta float64) {
	if !finite(sx, sy, delta) {
		return
	}
	newZoom := v.bounds.ClampZoom(v.zoom + delta)
	if newZoom == v.zoom {
		return
	}
	ratio := newZoom / v.zoom
	v.panX = sx - (sx-v.panX)*ratio
	v.panY = sy - (sy-v.panY)*ratio
	v.zoom = newZoom
}

// ZoomWheel zooms at (sx, sy) by the amount a wheel event's deltaY implies
func (v *Viewport) ZoomWheel(sx, sy, deltaY float64) {
	v.ZoomAt(sx, sy, v.WheelDelta(deltaY))
}

// WheelDelta converts a wheel deltaY to a zoom delta. Scrolling up zooms in.
func (v *Viewport) WheelDelta(deltaY float64) float64 {
	return deltaY * v.bounds.WheelZoomFactor
}

// PanBy translates the pan offset
func (v *Viewport) PanBy(dx, dy float64) {
	if !finite(dx, dy) {
		return
	}
	v.panX += dx
	v.panY += dy
}

// SetPan replaces the pan offset
func (v *Viewport) SetPan(x, y float64) {
	if !finite(x, y) {
		return
	}
	v.panX = x
	v.panY = y
}

// Reset restores zoom 1 and pan (0, 0)
func (v *Viewport) Reset() {
	v.zoom = 1
	v.panX = 0
	v.panY = 0
}

func finite(vals ...float64) bool {
	for _, f := range vals {
		if !valueobjects.IsFinite(f) {
			return false
		}
	}
	return true
}
