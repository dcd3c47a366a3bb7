package model

import "time"

// Role is the access level of an authenticated user
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleOfficer Role = "Officer"
	RoleViewer  Role = "Viewer"
)

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleOfficer || r == RoleViewer
}

// CanRecord reports whether the role may submit measurements
func (r Role) CanRecord() bool {
	return r == RoleAdmin || r == RoleOfficer
}

// Identity is the authenticated caller. It lives only in process memory.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// LevelAlert is raised when a recorded water level leaves the safe range
type LevelAlert struct {
	MeasurementID string    `json:"measurement_id"`
	LocationID    string    `json:"location_id"`
	LocationName  string    `json:"location_name"`
	WaterLevel    float64   `json:"water_level"`
	MinLevel      float64   `json:"min_level"`
	MaxLevel      float64   `json:"max_level"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	RecordedBy    string    `json:"recorded_by"`
	RecordedAt    time.Time `json:"recorded_at"`
}
