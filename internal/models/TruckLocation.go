package models

import (
	"time"

	"gorm.io/gorm"
)

// TruckLocation is one row of append-only GPS history. Rows are never
// mutated; they are deleted only when the owning truck is deleted.
// Route reconstruction orders by CapturedAt, not arrival order, because
// offline batches sync out of chronological order.
type TruckLocation struct {
	gorm.Model

	TruckID uint `json:"truck_id" gorm:"index:idx_truck_location_time,priority:1"`

	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Speed     float64  `json:"speed"`   // km/h
	Heading   float64  `json:"heading"` // 0-360 degrees
	Accuracy  *float64 `json:"accuracy,omitempty"`

	CapturedAt time.Time `json:"captured_at" gorm:"index:idx_truck_location_time,priority:2"`
	SyncedAt   time.Time `json:"synced_at"`

	IsOfflineSync bool `json:"is_offline_sync" gorm:"default:false"`
}
