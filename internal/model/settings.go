package model

import (
	"fmt"
	"math"
)

// Defaults applied to newly registered permanent regions.
const (
	DefaultRegionDensity      = 0.5
	DefaultRegionViewDistance = 50
)

// RegionSettings holds the durable per-region rendering and notification settings
// of a permanent region. Values are copied, never shared.
type RegionSettings struct {
	RegionID            string // normalized
	World               string
	Color               Color
	Density             float64
	ViewDistance        int
	NotificationType    NotificationType
	NotificationMessage string
	ParticlesEnabled    bool
}

// DefaultRegionSettings returns the settings a region gets when first registered:
// red, density 0.5, view distance 50, no notification, particles on.
func DefaultRegionSettings(regionID, world string) RegionSettings {
	return RegionSettings{
		RegionID:         NormalizeID(regionID),
		World:            world,
		Color:            ColorRed,
		Density:          DefaultRegionDensity,
		ViewDistance:     DefaultRegionViewDistance,
		NotificationType: NotificationNone,
		ParticlesEnabled: true,
	}
}

// ValidateDensity rejects non-positive and non-finite densities. Density is used
// directly as the sampling step of the wireframe.
func ValidateDensity(d float64) error {
	if !(d > 0) || math.IsInf(d, 0) {
		return fmt.Errorf("%w: density %v must be finite and > 0", ErrInvalidParameter, d)
	}
	return nil
}

// ValidateViewDistance rejects non-positive view distances.
func ValidateViewDistance(d int) error {
	if d <= 0 {
		return fmt.Errorf("%w: view distance %d must be > 0", ErrInvalidParameter, d)
	}
	return nil
}

// Particle describes how a point is drawn.
type Particle struct {
	Color Color
	Size  float32
}

// Particle sizes used by the renderers.
const (
	ParticleSizeRegion    float32 = 2.5
	ParticleSizeSelection float32 = 2.0
)
