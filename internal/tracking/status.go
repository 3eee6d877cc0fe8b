package tracking

import (
	"fmt"
	"math"
	"time"

	"truck_tracker/internal/config"
)

// Status describes the truck relative to one user's home.
type Status string

const (
	StatusOffline     Status = "offline"
	StatusNotStarted  Status = "not_started"
	StatusHere        Status = "here"
	StatusArriving    Status = "arriving"
	StatusApproaching Status = "approaching"
	StatusPassed      Status = "passed"

	// Terminal composed-view states with no truck to classify.
	StatusNoZone  Status = "no_zone"
	StatusNoTruck Status = "no_truck"
)

// passedHysteresis is how much the distance must grow over the previous
// sample before the truck counts as having passed the home.
const passedHysteresis = 50

// DetermineStatus classifies a distance/activity pair. prevDistance is an
// optional earlier sample used for the best-effort "passed" heuristic.
func DetermineStatus(distanceMeters float64, onDuty, hasFix bool, prevDistance *float64, cfg *config.Settings) Status {
	if !onDuty {
		return StatusOffline
	}
	if !hasFix {
		return StatusNotStarted
	}

	if prevDistance != nil && distanceMeters > *prevDistance+passedHysteresis {
		return StatusPassed
	}

	if distanceMeters < float64(cfg.AlertDistanceHere) {
		return StatusHere
	}
	if distanceMeters < float64(cfg.AlertDistanceArriving) {
		return StatusArriving
	}
	return StatusApproaching
}

// ETA is an arrival estimate alongside its display forms.
type ETA struct {
	Minutes     int    `json:"minutes"`
	Text        string `json:"text"`
	ArrivalTime string `json:"arrival_time"`
}

// TrafficMultiplier returns the slowdown factor for the given local time.
// Peak windows are 07:00-10:00 and 17:00-20:00.
func TrafficMultiplier(now time.Time, cfg *config.Settings) float64 {
	hour := now.Hour()
	if (hour >= 7 && hour < 10) || (hour >= 17 && hour < 20) {
		return cfg.TrafficPeakMultiplier
	}
	return cfg.TrafficNormalMultiplier
}

// EstimateETA estimates arrival from distance and the truck's reported
// speed in km/h. Reported speed is dampened to account for stop-and-go
// collection work; a stationary or crawling truck falls back to the
// configured average speed.
func EstimateETA(distanceMeters, speedKmh float64, now time.Time, cfg *config.Settings) ETA {
	var avgSpeed float64
	if speedKmh > 3 {
		avgSpeed = math.Min(speedKmh*0.7, 20)
	} else {
		avgSpeed = cfg.AvgTruckSpeedKmh
	}

	effective := avgSpeed / TrafficMultiplier(now, cfg)
	metersPerMin := effective * 1000 / 60

	var minutes float64
	if metersPerMin > 0 {
		minutes = distanceMeters / metersPerMin
	} else {
		minutes = distanceMeters / 200
	}

	mins := int(math.Round(minutes))
	if mins < 1 {
		mins = 1
	}

	return ETA{
		Minutes:     mins,
		Text:        etaText(mins),
		ArrivalTime: now.Add(time.Duration(mins) * time.Minute).Format("03:04 PM"),
	}
}

func etaText(minutes int) string {
	switch {
	case minutes == 1:
		return "~1 min"
	case minutes < 60:
		return fmt.Sprintf("~%d mins", minutes)
	default:
		h := minutes / 60
		m := minutes % 60
		if m > 0 {
			return fmt.Sprintf("~%dh %dm", h, m)
		}
		return fmt.Sprintf("~%dh", h)
	}
}

// SecondsAgo returns whole seconds between then and now, floored at zero.
func SecondsAgo(then *time.Time, now time.Time) *int {
	if then == nil {
		return nil
	}
	s := int(now.Sub(*then).Seconds())
	if s < 0 {
		s = 0
	}
	return &s
}

// FormatDuration renders the elapsed time since start as "2h 15m" style.
func FormatDuration(start *time.Time, now time.Time) string {
	if start == nil {
		return ""
	}
	total := int(now.Sub(*start).Minutes())
	if total < 0 {
		total = 0
	}
	h := total / 60
	m := total % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
