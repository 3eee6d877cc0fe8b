package models

import (
	"time"

	"gorm.io/gorm"
)

// Alert delivery preferences.
const (
	AlertTypePush       = "push"
	AlertTypeMissedCall = "missed_call"
	AlertTypeBoth       = "both"
	AlertTypeSound      = "sound"
)

// User is a resident tracking the truck that serves their zone. ZoneID is
// derived from the home coordinates via the zone membership test and is
// nil when no active zone covers the point.
type User struct {
	gorm.Model

	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone" gorm:"uniqueIndex;not null" binding:"required"`

	HomeLat     *float64 `json:"home_lat,omitempty"`
	HomeLng     *float64 `json:"home_lng,omitempty"`
	HomeAddress string   `json:"home_address"`

	ZoneID *uint `json:"zone_id,omitempty" gorm:"index"`

	// Alert preferences.
	AlertEnabled  bool   `json:"alert_enabled" gorm:"default:true"`
	AlertDistance int    `json:"alert_distance" gorm:"default:500"` // meters
	AlertType     string `json:"alert_type" gorm:"default:push"`    // push / missed_call / both / sound
	FCMToken      string `json:"fcm_token,omitempty"`

	// Informational only; authoritative dedup lives in AlertLog.
	LastAlertType *string    `json:"last_alert_type,omitempty"`
	LastAlertAt   *time.Time `json:"last_alert_at,omitempty"`

	IsActive bool `json:"is_active" gorm:"default:true"`
}

// HasHome reports whether the user has set home coordinates.
func (u *User) HasHome() bool {
	return u.HomeLat != nil && u.HomeLng != nil
}
