package models

import (
	"gorm.io/gorm"
)

// Zone represents a service ward: a rectangular area with at most one
// assigned truck and any number of resident users living inside it.
// The boundary is authored as min/max lat/lng (southwest and northeast
// corners); membership is an inclusive rectangle test, not a polygon.
type Zone struct {
	gorm.Model

	Name string `json:"name" gorm:"uniqueIndex;not null" binding:"required"`
	City string `json:"city"`

	// Boundary corners. Invariant: max > min on both axes.
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`

	// Typical operating window, informational only ("06:30 AM" style).
	TypicalStartTime *string `json:"typical_start_time,omitempty"`
	TypicalEndTime   *string `json:"typical_end_time,omitempty"`

	IsActive bool `json:"is_active" gorm:"default:true"`
}

// ContainsPoint reports whether the coordinate lies inside the zone
// boundary. Edges are inclusive.
func (z *Zone) ContainsPoint(lat, lng float64) bool {
	return z.MinLat <= lat && lat <= z.MaxLat &&
		z.MinLng <= lng && lng <= z.MaxLng
}
