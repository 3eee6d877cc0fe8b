package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"truck_tracker/internal/config"
	"truck_tracker/internal/geo"
	"truck_tracker/internal/models"
)

// RegisterUser creates a resident account. A home location may come later
// via SetHomeLocation; the zone is derived from it, never set directly.
func RegisterUser(c *gin.Context) {
	var input struct {
		Name        string   `json:"name" binding:"required"`
		Phone       string   `json:"phone" binding:"required"`
		HomeLat     *float64 `json:"home_lat"`
		HomeLng     *float64 `json:"home_lng"`
		HomeAddress string   `json:"home_address"`
		FCMToken    string   `json:"fcm_token"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user input: " + err.Error()})
		return
	}

	user := models.User{
		Name:          input.Name,
		Phone:         input.Phone,
		HomeAddress:   input.HomeAddress,
		FCMToken:      input.FCMToken,
		AlertEnabled:  true,
		AlertDistance: settings.DefaultAlertDistance,
		AlertType:     models.AlertTypePush,
		IsActive:      true,
	}
	if input.HomeLat != nil && input.HomeLng != nil {
		if !geo.ValidCoordinate(*input.HomeLat, *input.HomeLng) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Home coordinates out of range"})
			return
		}
		user.HomeLat = input.HomeLat
		user.HomeLng = input.HomeLng
		user.ZoneID = zoneForPoint(*input.HomeLat, *input.HomeLng)
	}

	if err := config.DB.Create(&user).Error; err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "phone number already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func GetUser(c *gin.Context) {
	var user models.User
	if err := config.DB.First(&user, c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GetUserByPhone is the app's login-less lookup: the phone number is the
// identity.
func GetUserByPhone(c *gin.Context) {
	var user models.User
	if err := config.DB.Where("phone = ?", c.Param("phone")).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func ListUsers(c *gin.Context) {
	var users []models.User
	q := config.DB
	if zoneID := c.Query("zone_id"); zoneID != "" {
		q = q.Where("zone_id = ?", zoneID)
	}
	if err := q.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing users: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users})
}

// SetHomeLocation updates the home coordinates and re-derives the zone
// assignment from the active zone boundaries.
func SetHomeLocation(c *gin.Context) {
	var input struct {
		Lat     float64 `json:"lat" binding:"required"`
		Lng     float64 `json:"lng" binding:"required"`
		Address string  `json:"address"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid location input: " + err.Error()})
		return
	}
	if !geo.ValidCoordinate(input.Lat, input.Lng) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Coordinates out of range"})
		return
	}

	var user models.User
	if err := config.DB.First(&user, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	zoneID := zoneForPoint(input.Lat, input.Lng)
	fields := map[string]interface{}{
		"home_lat":     input.Lat,
		"home_lng":     input.Lng,
		"home_address": input.Address,
		"zone_id":      zoneID,
	}
	if err := config.DB.Model(&user).Updates(fields).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update home location"})
		return
	}

	resp := gin.H{"message": "Home location updated", "zone_assigned": zoneID != nil}
	if zoneID != nil {
		var zone models.Zone
		if err := config.DB.First(&zone, *zoneID).Error; err == nil {
			resp["zone"] = gin.H{"id": zone.ID, "name": zone.Name}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateAlertPreferences changes how and when the user is alerted.
func UpdateAlertPreferences(c *gin.Context) {
	var input struct {
		AlertEnabled  *bool   `json:"alert_enabled"`
		AlertDistance *int    `json:"alert_distance"`
		AlertType     *string `json:"alert_type"`
		FCMToken      *string `json:"fcm_token"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid preferences input: " + err.Error()})
		return
	}

	var user models.User
	if err := config.DB.First(&user, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	fields := map[string]interface{}{}
	if input.AlertEnabled != nil {
		fields["alert_enabled"] = *input.AlertEnabled
	}
	if input.AlertDistance != nil {
		if *input.AlertDistance <= 0 || *input.AlertDistance > settings.AlertDistanceApproaching {
			c.JSON(http.StatusBadRequest, gin.H{"error": "alert_distance out of range"})
			return
		}
		fields["alert_distance"] = *input.AlertDistance
	}
	if input.AlertType != nil {
		switch *input.AlertType {
		case models.AlertTypePush, models.AlertTypeMissedCall, models.AlertTypeBoth, models.AlertTypeSound:
			fields["alert_type"] = *input.AlertType
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown alert_type"})
			return
		}
	}
	if input.FCMToken != nil {
		fields["fcm_token"] = *input.FCMToken
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No preferences provided"})
		return
	}

	if err := config.DB.Model(&user).Updates(fields).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update preferences"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Preferences updated"})
}

// DeleteUser removes the account and its alert history.
func DeleteUser(c *gin.Context) {
	var user models.User
	if err := config.DB.First(&user, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.AlertLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("Failed to delete user.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// zoneForPoint finds the first active zone containing the coordinate, or
// nil when the point is outside every service area.
func zoneForPoint(lat, lng float64) *uint {
	var zones []models.Zone
	if err := config.DB.Where("is_active = ?", true).Find(&zones).Error; err != nil {
		logrus.WithError(err).Error("Failed to load zones for point lookup.")
		return nil
	}
	for i := range zones {
		if zones[i].ContainsPoint(lat, lng) {
			id := zones[i].ID
			return &id
		}
	}
	return nil
}
