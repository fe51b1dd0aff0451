package httptransport

import (
	"dronewatch/internal/drone"
	"dronewatch/internal/violation"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Success string `json:"success"`
}

// RootResponse is returned by GET /.
type RootResponse struct {
	Message string `json:"message"`
}

// DronesResponse is returned by GET /drones.
type DronesResponse struct {
	Drones []drone.Position `json:"drones"`
}

// ViolationsResponse is returned by GET /nfz.
type ViolationsResponse struct {
	Violations []violation.Record `json:"violations"`
}
