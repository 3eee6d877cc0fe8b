package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"truck_tracker/internal/config"
	"truck_tracker/internal/models"
)

// CreateZone registers a new service ward. Boundary corners must form a
// proper rectangle (max strictly greater than min on both axes).
func CreateZone(c *gin.Context) {
	var input struct {
		Name             string  `json:"name" binding:"required"`
		City             string  `json:"city"`
		MinLat           float64 `json:"min_lat" binding:"required"`
		MinLng           float64 `json:"min_lng" binding:"required"`
		MaxLat           float64 `json:"max_lat" binding:"required"`
		MaxLng           float64 `json:"max_lng" binding:"required"`
		TypicalStartTime *string `json:"typical_start_time"`
		TypicalEndTime   *string `json:"typical_end_time"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid zone input: " + err.Error()})
		return
	}
	if input.MaxLat <= input.MinLat || input.MaxLng <= input.MinLng {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Zone boundary invalid: max must exceed min on both axes"})
		return
	}

	zone := models.Zone{
		Name:             input.Name,
		City:             input.City,
		MinLat:           input.MinLat,
		MinLng:           input.MinLng,
		MaxLat:           input.MaxLat,
		MaxLng:           input.MaxLng,
		TypicalStartTime: input.TypicalStartTime,
		TypicalEndTime:   input.TypicalEndTime,
		IsActive:         true,
	}
	if err := config.DB.Create(&zone).Error; err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "zone name already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create zone: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"zone": zone})
}

func ListZones(c *gin.Context) {
	var zones []models.Zone
	q := config.DB
	if c.Query("active") == "true" {
		q = q.Where("is_active = ?", true)
	}
	if city := c.Query("city"); city != "" {
		q = q.Where("city = ?", city)
	}
	if err := q.Find(&zones).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing zones: " + err.Error()})
		return
	}

	// Attach each zone's truck summary in one query.
	var trucks []models.Truck
	config.DB.Where("zone_id IS NOT NULL").Find(&trucks)
	byZone := make(map[uint]*models.Truck, len(trucks))
	for i := range trucks {
		byZone[*trucks[i].ZoneID] = &trucks[i]
	}

	out := make([]gin.H, 0, len(zones))
	for i := range zones {
		entry := gin.H{"zone": zones[i]}
		if truck, ok := byZone[zones[i].ID]; ok {
			entry["truck"] = gin.H{
				"id":             truck.ID,
				"vehicle_number": truck.VehicleNumber,
				"is_active":      truck.IsActive,
			}
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func GetZone(c *gin.Context) {
	var zone models.Zone
	if err := config.DB.First(&zone, c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Zone not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching zone"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"zone": zone})
}

func UpdateZone(c *gin.Context) {
	var zone models.Zone
	if err := config.DB.First(&zone, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Zone not found"})
		return
	}

	var input struct {
		Name             *string  `json:"name"`
		City             *string  `json:"city"`
		MinLat           *float64 `json:"min_lat"`
		MinLng           *float64 `json:"min_lng"`
		MaxLat           *float64 `json:"max_lat"`
		MaxLng           *float64 `json:"max_lng"`
		TypicalStartTime *string  `json:"typical_start_time"`
		TypicalEndTime   *string  `json:"typical_end_time"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update"})
		return
	}

	fields := map[string]interface{}{}
	if input.Name != nil {
		fields["name"] = *input.Name
	}
	if input.City != nil {
		fields["city"] = *input.City
	}
	// Boundary edits are validated against the merged rectangle, so a
	// partial update cannot invert the corners.
	next := zone
	if input.MinLat != nil {
		fields["min_lat"] = *input.MinLat
		next.MinLat = *input.MinLat
	}
	if input.MinLng != nil {
		fields["min_lng"] = *input.MinLng
		next.MinLng = *input.MinLng
	}
	if input.MaxLat != nil {
		fields["max_lat"] = *input.MaxLat
		next.MaxLat = *input.MaxLat
	}
	if input.MaxLng != nil {
		fields["max_lng"] = *input.MaxLng
		next.MaxLng = *input.MaxLng
	}
	if input.TypicalStartTime != nil {
		fields["typical_start_time"] = *input.TypicalStartTime
	}
	if input.TypicalEndTime != nil {
		fields["typical_end_time"] = *input.TypicalEndTime
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields provided"})
		return
	}
	if next.MaxLat <= next.MinLat || next.MaxLng <= next.MinLng {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Zone boundary invalid: max must exceed min on both axes"})
		return
	}
	if err := config.DB.Model(&zone).Updates(fields).Error; err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "zone name already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update zone"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"zone": zone})
}

// DeactivateZone soft-disables a ward without touching its users or
// history.
func DeactivateZone(c *gin.Context) {
	var zone models.Zone
	if err := config.DB.First(&zone, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Zone not found"})
		return
	}
	if err := config.DB.Model(&zone).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate zone"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Zone deactivated", "zone_id": zone.ID})
}

// ZoneStats reports the zone's audience and truck assignment at a glance.
func ZoneStats(c *gin.Context) {
	var zone models.Zone
	if err := config.DB.First(&zone, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Zone not found"})
		return
	}

	var userCount int64
	config.DB.Model(&models.User{}).Where("zone_id = ? AND is_active = ?", zone.ID, true).Count(&userCount)
	var alertedToday int64
	config.DB.Model(&models.User{}).Where("zone_id = ? AND last_alert_at IS NOT NULL", zone.ID).Count(&alertedToday)

	var truck models.Truck
	hasTruck := config.DB.Where("zone_id = ?", zone.ID).First(&truck).Error == nil

	var fixesToday int64
	if hasTruck {
		config.DB.Model(&models.TruckLocation{}).
			Where("truck_id = ? AND captured_at >= ?", truck.ID, startOfDay(time.Now())).
			Count(&fixesToday)
	}

	stats := gin.H{
		"zone_id":       zone.ID,
		"name":          zone.Name,
		"is_active":     zone.IsActive,
		"user_count":    userCount,
		"alerted_users": alertedToday,
		"has_truck":     hasTruck,
		"connected":     hub.ZoneUserCount(zone.ID),
	}
	if hasTruck {
		stats["truck_id"] = truck.ID
		stats["truck_on_duty"] = truck.IsActive
		stats["fixes_today"] = fixesToday
	}
	c.JSON(http.StatusOK, stats)
}

// startOfDay truncates to local midnight.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
