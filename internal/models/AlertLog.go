package models

import (
	"time"

	"gorm.io/gorm"
)

// AlertLog records every fired proximity alert. The unique index over
// (user, truck, date, tier) is the deduplication key: at most one alert
// per tier per day per user-truck pair, surviving process restarts.
// Rows are created exactly once and never mutated.
type AlertLog struct {
	gorm.Model

	UserID  uint `json:"user_id" gorm:"index:idx_alert_unique,unique,priority:1"`
	TruckID uint `json:"truck_id" gorm:"index:idx_alert_unique,unique,priority:2"`

	AlertDate time.Time `json:"alert_date" gorm:"type:date;index:idx_alert_unique,unique,priority:3"`
	AlertType string    `json:"alert_type" gorm:"index:idx_alert_unique,unique,priority:4"` // approaching / arriving / here

	// Context captured at send time.
	DistanceMeters int     `json:"distance_meters"`
	TruckLat       float64 `json:"truck_lat"`
	TruckLng       float64 `json:"truck_lng"`

	SentAt         time.Time `json:"sent_at"`
	Delivered      bool      `json:"delivered" gorm:"default:true"`
	DeliveryMethod string    `json:"delivery_method"` // push / missed_call / both / sound
}
