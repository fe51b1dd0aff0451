// Package geofence decides whether a position lies inside the no-fly zone.
//
// The zone is a single circle centered on the origin of the feed's
// coordinate system.
package geofence

import "math"

// DefaultRadius is the no-fly zone radius in feed units.
const DefaultRadius = 1000.0

// IsViolation reports whether (x, y) lies within radius of the origin.
// The boundary counts as inside.
func IsViolation(x, y, radius float64) bool {
	return math.Hypot(x, y) <= radius
}

// Zone is a configured no-fly zone.
type Zone struct {
	Radius float64
}

// NewZone returns a zone with the given radius, falling back to
// DefaultRadius for non-positive values.
func NewZone(radius float64) Zone {
	if radius <= 0 || math.IsNaN(radius) {
		radius = DefaultRadius
	}
	return Zone{Radius: radius}
}

// Contains reports whether (x, y) violates the zone.
func (z Zone) Contains(x, y float64) bool {
	return IsViolation(x, y, z.Radius)
}

// Distance returns the distance of (x, y) from the zone center.
func (z Zone) Distance(x, y float64) float64 {
	return math.Hypot(x, y)
}
