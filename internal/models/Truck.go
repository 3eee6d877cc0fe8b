package models

import (
	"time"

	"gorm.io/gorm"
)

// Truck is a service vehicle. The Last* columns are a cached snapshot of
// its most recent GPS fix so live queries never have to join the history
// table. The snapshot is always written as a single UPDATE so readers
// never see a torn state.
type Truck struct {
	gorm.Model

	VehicleNumber string `json:"vehicle_number" gorm:"uniqueIndex;not null" binding:"required"`
	Name          string `json:"name"`

	// One truck per zone.
	ZoneID *uint `json:"zone_id" gorm:"uniqueIndex"`

	DriverName  string `json:"driver_name"`
	DriverPhone string `json:"driver_phone" gorm:"uniqueIndex;not null"`

	// Duty cycle.
	IsActive      bool       `json:"is_active" gorm:"default:false"`
	DutyStartedAt *time.Time `json:"duty_started_at,omitempty"`

	// Cached latest fix. Lat/Lng nil until the first fix arrives.
	LastLat        *float64   `json:"last_lat,omitempty"`
	LastLng        *float64   `json:"last_lng,omitempty"`
	LastSpeed      float64    `json:"last_speed"`   // km/h
	LastHeading    float64    `json:"last_heading"` // 0-360 degrees
	LastUpdate     *time.Time `json:"last_update,omitempty"`
	LastCapturedAt *time.Time `json:"last_captured_at,omitempty"`
}

// HasFix reports whether the truck has reported at least one GPS fix.
func (t *Truck) HasFix() bool {
	return t.LastLat != nil && t.LastLng != nil
}
