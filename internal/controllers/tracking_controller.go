package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"truck_tracker/internal/tracking"
)

// TrackUser is the pull counterpart of the WebSocket push: one call
// returns everything the user's screen needs right now.
func TrackUser(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	view, err := trackSvc.TrackUser(uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Tracking query failed"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// RouteHistory returns the truck's recent path for the user's zone.
// The window defaults to 30 minutes.
func RouteHistory(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	minutes := 30
	if raw := c.Query("minutes"); raw != "" {
		parsed, pErr := strconv.Atoi(raw)
		if pErr != nil || parsed <= 0 || parsed > 24*60 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid minutes parameter"})
			return
		}
		minutes = parsed
	}

	history, err := trackSvc.RouteHistory(uint(userID), minutes)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, tracking.ErrNoZone):
			c.JSON(http.StatusNotFound, gin.H{"error": "No service zone assigned"})
		case errors.Is(err, tracking.ErrNoTruck):
			c.JSON(http.StatusNotFound, gin.H{"error": "No truck assigned to your zone"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "History query failed"})
		}
		return
	}
	c.JSON(http.StatusOK, history)
}
