package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"truck_tracker/internal/config"
	"truck_tracker/internal/live"
	"truck_tracker/internal/middleware"
	"truck_tracker/internal/models"
	"truck_tracker/internal/tracking"
)

func CreateTruck(c *gin.Context) {
	var input struct {
		VehicleNumber string `json:"vehicle_number" binding:"required"`
		Name          string `json:"name"`
		DriverName    string `json:"driver_name"`
		DriverPhone   string `json:"driver_phone" binding:"required"`
		ZoneID        *uint  `json:"zone_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid truck input: " + err.Error()})
		return
	}

	truck := models.Truck{
		VehicleNumber: input.VehicleNumber,
		Name:          input.Name,
		DriverName:    input.DriverName,
		DriverPhone:   input.DriverPhone,
		ZoneID:        input.ZoneID,
	}
	if err := config.DB.Create(&truck).Error; err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "vehicle number, driver phone or zone already taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create truck: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"truck": truck})
}

func ListTrucks(c *gin.Context) {
	var trucks []models.Truck
	q := config.DB
	if c.Query("active") == "true" {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&trucks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing trucks: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": trucks})
}

func UpdateTruck(c *gin.Context) {
	var truck models.Truck
	if err := config.DB.First(&truck, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Truck not found"})
		return
	}

	var input struct {
		Name        *string `json:"name"`
		DriverName  *string `json:"driver_name"`
		DriverPhone *string `json:"driver_phone"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update"})
		return
	}

	fields := map[string]interface{}{}
	if input.Name != nil {
		fields["name"] = *input.Name
	}
	if input.DriverName != nil {
		fields["driver_name"] = *input.DriverName
	}
	if input.DriverPhone != nil {
		fields["driver_phone"] = *input.DriverPhone
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields provided"})
		return
	}
	if err := config.DB.Model(&truck).Updates(fields).Error; err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "driver phone already taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update truck"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"truck": truck})
}

// AssignZone moves the truck to a zone (or unassigns with a null id).
// The one-truck-per-zone constraint is enforced by the unique index.
func AssignZone(c *gin.Context) {
	var truck models.Truck
	if err := config.DB.First(&truck, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Truck not found"})
		return
	}

	var input struct {
		ZoneID *uint `json:"zone_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if input.ZoneID != nil {
		var zone models.Zone
		if err := config.DB.First(&zone, *input.ZoneID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Zone not found"})
			return
		}
	}

	if err := config.DB.Model(&truck).Update("zone_id", input.ZoneID).Error; err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "zone already has a truck assigned"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign zone"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Zone assignment updated", "truck_id": truck.ID, "zone_id": input.ZoneID})
}

// DriverLogin exchanges the driver's phone number for a JWT scoped to
// their truck. Duty and location endpoints require it.
func DriverLogin(c *gin.Context) {
	var input struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid login input: " + err.Error()})
		return
	}

	var truck models.Truck
	if err := config.DB.Where("driver_phone = ?", input.Phone).First(&truck).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No truck registered for this phone number"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	token, err := middleware.GenerateToken(truck.ID, "driver")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	resp := gin.H{"token": token, "truck": truck}
	if truck.ZoneID != nil {
		var zone models.Zone
		if err := config.DB.First(&zone, *truck.ZoneID).Error; err == nil {
			resp["zone"] = gin.H{"id": zone.ID, "name": zone.Name}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// StartDuty begins a duty cycle: records the start time, clears the
// zone's alert suppression so residents can be alerted again today, and
// notifies connected listeners.
func StartDuty(c *gin.Context) {
	truckID, ok := middleware.TruckIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing truck identity"})
		return
	}

	truck, changed, err := tracker.SetDuty(truckID, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Truck not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start duty"})
		return
	}
	if changed && truck.ZoneID != nil {
		broadcaster.PublishStatusChange(*truck.ZoneID)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Duty started",
		"truck_id":   truck.ID,
		"started_at": truck.DutyStartedAt,
		"changed":    changed,
	})
}

// StopDuty ends the duty cycle. The last snapshot stays visible so the
// app can still show where the truck parked.
func StopDuty(c *gin.Context) {
	truckID, ok := middleware.TruckIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing truck identity"})
		return
	}

	var startedAt *time.Time
	if existing, err := fetchTruck(truckID); err == nil {
		startedAt = existing.DutyStartedAt
	}

	truck, changed, err := tracker.SetDuty(truckID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Truck not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to stop duty"})
		return
	}
	if changed && truck.ZoneID != nil {
		broadcaster.PublishStatusChange(*truck.ZoneID)
	}

	resp := gin.H{"message": "Duty stopped", "truck_id": truck.ID, "changed": changed}
	if changed && startedAt != nil {
		resp["duty_duration"] = tracking.FormatDuration(startedAt, time.Now())
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateLocation ingests one live GPS fix from the driver app. Alert
// evaluation and fan-out happen in the background; the driver gets an
// immediate ack.
func UpdateLocation(c *gin.Context) {
	truckID, ok := middleware.TruckIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing truck identity"})
		return
	}

	var fix live.Fix
	if err := c.ShouldBindJSON(&fix); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid location payload: " + err.Error()})
		return
	}

	truck, err := tracker.RecordFix(truckID, fix)
	if err != nil {
		if errors.Is(err, live.ErrInvalidFix) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Location fix rejected: coordinates or timestamp invalid"})
			return
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Truck not found"})
			return
		}
		logrus.WithError(err).WithField("truck_id", truckID).Error("Failed to record location fix.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record location"})
		return
	}

	dispatcher.Enqueue(truck.ID)
	if truck.ZoneID != nil {
		broadcaster.PublishTruckLocation(*truck.ZoneID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "recorded", "truck_id": truck.ID, "captured_at": fix.CapturedAt})
}

// SyncLocations ingests a batch of fixes buffered while the device was
// offline. Rows beyond the configured cap are refused outright.
func SyncLocations(c *gin.Context) {
	truckID, ok := middleware.TruckIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing truck identity"})
		return
	}

	var input struct {
		Locations []live.Fix `json:"locations" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sync payload: " + err.Error()})
		return
	}
	if len(input.Locations) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty location batch"})
		return
	}
	if len(input.Locations) > settings.LocationBatchMax {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Batch too large"})
		return
	}

	synced, failed, err := tracker.SyncBatch(truckID, input.Locations)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Truck not found"})
			return
		}
		logrus.WithError(err).WithField("truck_id", truckID).Error("Offline sync failed.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sync failed"})
		return
	}

	if synced > 0 {
		dispatcher.Enqueue(truckID)
		if truck, tErr := fetchTruck(truckID); tErr == nil && truck.ZoneID != nil {
			broadcaster.PublishTruckLocation(*truck.ZoneID)
		}
	}

	c.JSON(http.StatusOK, gin.H{"synced": synced, "failed": failed})
}

// TruckStatus returns the truck's public snapshot for ops dashboards.
func TruckStatus(c *gin.Context) {
	var truck models.Truck
	if err := config.DB.First(&truck, c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Truck not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching truck"})
		return
	}

	now := time.Now()
	var fixesToday int64
	config.DB.Model(&models.TruckLocation{}).
		Where("truck_id = ? AND captured_at >= ?", truck.ID, startOfDay(now)).
		Count(&fixesToday)

	resp := gin.H{
		"truck_id":       truck.ID,
		"vehicle_number": truck.VehicleNumber,
		"is_active":      truck.IsActive,
		"zone_id":        truck.ZoneID,
		"last_lat":       truck.LastLat,
		"last_lng":       truck.LastLng,
		"last_speed":     truck.LastSpeed,
		"last_heading":   truck.LastHeading,
		"duty_duration":  tracking.FormatDuration(truck.DutyStartedAt, now),
		"fixes_today":    fixesToday,
	}
	if truck.ZoneID != nil {
		var zone models.Zone
		if err := config.DB.First(&zone, *truck.ZoneID).Error; err == nil {
			resp["zone_name"] = zone.Name
		}
	}
	if ago := tracking.SecondsAgo(truck.LastUpdate, now); ago != nil {
		resp["last_update_seconds_ago"] = *ago
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteTruck removes the truck and its location history. Alert log rows
// stay as an audit trail.
func DeleteTruck(c *gin.Context) {
	var truck models.Truck
	if err := config.DB.First(&truck, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Truck not found"})
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("truck_id = ?", truck.ID).Delete(&models.TruckLocation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&truck).Error
	})
	if err != nil {
		logrus.WithError(err).WithField("truck_id", truck.ID).Error("Failed to delete truck.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete truck"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Truck deleted"})
}

func fetchTruck(id uint) (*models.Truck, error) {
	var truck models.Truck
	if err := config.DB.First(&truck, id).Error; err != nil {
		return nil, err
	}
	return &truck, nil
}
