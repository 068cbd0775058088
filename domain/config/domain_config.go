package config

import "time"

// CanvasConfig holds all configurable canvas rules and constraints
type CanvasConfig struct {
	// Viewport constraints
	MinZoom         float64
	MaxZoom         float64
	WheelZoomFactor float64

	// Spawn region for new blocks, in world coordinates
	SpawnMinX   float64
	SpawnMinY   float64
	SpawnWidth  float64
	SpawnHeight float64

	// Block constraints
	MaxTitleLength    int
	MaxContentLength  int
	MaxBlocksPerBoard int

	// History
	HistoryLimit int

	// Persistence
	AutosaveDelay time.Duration

	// Rendering
	BlockWidth         float64
	HeaderHeight       float64
	MinCurveOffset     float64
	MinStrokeWidth     float64
	MaxStrokeWidth     float64
	DefaultStrokeWidth float64
}

// DefaultCanvasConfig returns the default canvas configuration
func DefaultCanvasConfig() *CanvasConfig {
	return &CanvasConfig{
		MinZoom:         0.3,
		MaxZoom:         3.0,
		WheelZoomFactor: -0.001,

		SpawnMinX:   100,
		SpawnMinY:   100,
		SpawnWidth:  600,
		SpawnHeight: 400,

		MaxTitleLength:    200,
		MaxContentLength:  50000,
		MaxBlocksPerBoard: 2000,

		HistoryLimit: 50,

		AutosaveDelay: 800 * time.Millisecond,

		BlockWidth:         240,
		HeaderHeight:       36,
		MinCurveOffset:     40,
		MinStrokeWidth:     1,
		MaxStrokeWidth:     4,
		DefaultStrokeWidth: 2,
	}
}

// ProductionCanvasConfig returns production-specific configuration
func ProductionCanvasConfig() *CanvasConfig {
	config := DefaultCanvasConfig()

	config.MaxBlocksPerBoard = 1000
	config.MaxContentLength = 20000

	return config
}

// DevelopmentCanvasConfig returns development-specific configuration
func DevelopmentCanvasConfig() *CanvasConfig {
	config := DefaultCanvasConfig()

	config.MaxBlocksPerBoard = 10000
	config.HistoryLimit = 200

	return config
}

// LoadCanvasConfig loads canvas configuration based on environment
func LoadCanvasConfig(environment string) *CanvasConfig {
	switch environment {
	case "production":
		return ProductionCanvasConfig()
	case "development":
		return DevelopmentCanvasConfig()
	default:
		return DefaultCanvasConfig()
	}
}

// ClampZoom bounds a zoom factor to the configured range
func (c *CanvasConfig) ClampZoom(zoom float64) float64 {
	if zoom < c.MinZoom {
		return c.MinZoom
	}
	if zoom > c.MaxZoom {
		return c.MaxZoom
	}
	return zoom
}
