package alerts

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"truck_tracker/internal/config"
	"truck_tracker/internal/geo"
	"truck_tracker/internal/models"
)

// Alert tiers in priority order: approaching < arriving < here. Once a
// tier has fired for a (user, truck, day), no same-or-lower tier fires
// again that day.
const (
	TierApproaching = "approaching"
	TierArriving    = "arriving"
	TierHere        = "here"
)

var tierPriority = map[string]int{
	TierApproaching: 1,
	TierArriving:    2,
	TierHere:        3,
}

// Store is the persistence the engine needs. The GORM implementation
// lives in internal/store; tests supply fakes.
type Store interface {
	// AlertsForDay returns all alert log rows for the user/truck pair on
	// the given calendar date.
	AlertsForDay(userID, truckID uint, day time.Time) ([]models.AlertLog, error)
	CreateAlertLog(entry *models.AlertLog) error
	// UpdateUserAlertState writes the informational last-alert fields.
	UpdateUserAlertState(userID uint, tier *string, at *time.Time) error
	// UsersInZone returns active users of the zone with alerts enabled.
	UsersInZone(zoneID uint) ([]models.User, error)
	// ResetZoneAlertState clears the informational fields for every user
	// in the zone and purges the day's alert log rows so a restarted duty
	// cycle can re-alert.
	ResetZoneAlertState(zoneID uint, day time.Time) error
}

// Decision is a fired-alert candidate: everything needed to deliver and
// log one alert.
type Decision struct {
	UserID         uint    `json:"user_id"`
	TruckID        uint    `json:"truck_id"`
	Tier           string  `json:"alert_type"`
	DistanceMeters int     `json:"distance_meters"`
	Message        string  `json:"message"`
	PlaySound      bool    `json:"play_sound"`
	TruckLat       float64 `json:"truck_lat"`
	TruckLng       float64 `json:"truck_lng"`
}

// Preview is the read-only variant included in tracking responses. It
// never mutates the log; the app uses it to display state and cue sound.
type Preview struct {
	ShouldAlert    bool   `json:"should_alert"`
	Tier           string `json:"alert_type"`
	DistanceMeters int    `json:"distance_meters"`
	Message        string `json:"message"`
	PlaySound      bool   `json:"play_sound"`
}

// Engine decides whether a freshly computed distance fires a new alert.
type Engine struct {
	store Store
	cfg   *config.Settings
	Now   func() time.Time
}

func NewEngine(store Store, cfg *config.Settings) *Engine {
	return &Engine{store: store, cfg: cfg, Now: time.Now}
}

// classifyTier maps a distance onto an alert tier, or "" when no tier
// qualifies. The approaching tier is gated by both the global ceiling and
// the user's personal alert_distance preference.
func (e *Engine) classifyTier(user *models.User, distance float64) string {
	switch {
	case distance < float64(e.cfg.AlertDistanceHere):
		return TierHere
	case distance < float64(e.cfg.AlertDistanceArriving):
		return TierArriving
	case distance < float64(e.cfg.AlertDistanceApproaching) && distance <= float64(user.AlertDistance):
		return TierApproaching
	}
	return ""
}

// Evaluate runs the full decision procedure for one user against the
// truck's current snapshot. It returns nil when no alert should fire.
// Evaluate itself never writes; call Record once delivery is resolved.
func (e *Engine) Evaluate(user *models.User, truck *models.Truck, distance float64) (*Decision, error) {
	if !user.AlertEnabled || !user.HasHome() {
		return nil, nil
	}
	if !truck.IsActive || !truck.HasFix() {
		return nil, nil
	}

	tier := e.classifyTier(user, distance)
	if tier == "" {
		return nil, nil
	}

	today := e.Now()
	existing, err := e.store.AlertsForDay(user.ID, truck.ID, today)
	if err != nil {
		return nil, fmt.Errorf("alert dedup lookup: %w", err)
	}
	for _, a := range existing {
		// Same tier already sent today, or a same-or-higher priority tier
		// fired earlier: tiers are monotonic within a day.
		if tierPriority[a.AlertType] >= tierPriority[tier] {
			return nil, nil
		}
	}

	meters := int(distance)
	return &Decision{
		UserID:         user.ID,
		TruckID:        truck.ID,
		Tier:           tier,
		DistanceMeters: meters,
		Message:        AlertMessage(tier, meters),
		PlaySound:      tier == TierArriving || tier == TierHere,
		TruckLat:       *truck.LastLat,
		TruckLng:       *truck.LastLng,
	}, nil
}

// EvaluateZone checks every alert-enabled user in the truck's zone and
// returns the decisions that should fire.
func (e *Engine) EvaluateZone(truck *models.Truck) ([]*Decision, error) {
	if truck.ZoneID == nil {
		return nil, nil
	}
	users, err := e.store.UsersInZone(*truck.ZoneID)
	if err != nil {
		return nil, fmt.Errorf("listing zone users: %w", err)
	}

	var decisions []*Decision
	for i := range users {
		user := &users[i]
		if !user.HasHome() || !truck.HasFix() {
			continue
		}
		distance := geo.Distance(*truck.LastLat, *truck.LastLng, *user.HomeLat, *user.HomeLng)
		d, err := e.Evaluate(user, truck, distance)
		if err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Error("Alert evaluation failed for user.")
			continue
		}
		if d != nil {
			decisions = append(decisions, d)
		}
	}
	return decisions, nil
}

// Record persists the alert log row for a fired decision and updates the
// user's informational last-alert fields. The log write is the dedup
// record; it is never retracted afterwards.
func (e *Engine) Record(d *Decision, deliveryMethod string) error {
	now := e.Now()
	entry := &models.AlertLog{
		UserID:         d.UserID,
		TruckID:        d.TruckID,
		AlertDate:      DayStart(now),
		AlertType:      d.Tier,
		DistanceMeters: d.DistanceMeters,
		TruckLat:       d.TruckLat,
		TruckLng:       d.TruckLng,
		SentAt:         now,
		Delivered:      true,
		DeliveryMethod: deliveryMethod,
	}
	if err := e.store.CreateAlertLog(entry); err != nil {
		return fmt.Errorf("writing alert log: %w", err)
	}

	tier := d.Tier
	if err := e.store.UpdateUserAlertState(d.UserID, &tier, &now); err != nil {
		logrus.WithError(err).WithField("user_id", d.UserID).Warn("Failed to update user last-alert fields.")
	}
	return nil
}

// PreviewFor computes the alert info for a tracking response without
// mutating anything. ShouldAlert mirrors what the ingestion path would
// decide for the exact tier.
func (e *Engine) PreviewFor(user *models.User, truck *models.Truck, distance float64) (*Preview, error) {
	if !user.AlertEnabled {
		return nil, nil
	}

	tier := e.classifyTier(user, distance)
	if tier == "" {
		return nil, nil
	}

	existing, err := e.store.AlertsForDay(user.ID, truck.ID, e.Now())
	if err != nil {
		return nil, fmt.Errorf("alert dedup lookup: %w", err)
	}
	shouldAlert := true
	for _, a := range existing {
		if a.AlertType == tier {
			shouldAlert = false
			break
		}
	}

	meters := int(distance)
	return &Preview{
		ShouldAlert:    shouldAlert,
		Tier:           tier,
		DistanceMeters: meters,
		Message:        AlertMessage(tier, meters),
		PlaySound:      shouldAlert && (tier == TierArriving || tier == TierHere),
	}, nil
}

// ResetZone clears alert suppression for every user in the zone. Called
// when a duty cycle starts so a restarted truck can re-alert the same day.
func (e *Engine) ResetZone(zoneID uint) error {
	if err := e.store.ResetZoneAlertState(zoneID, e.Now()); err != nil {
		return fmt.Errorf("resetting zone %d alert state: %w", zoneID, err)
	}
	logrus.WithField("zone_id", zoneID).Info("Zone alert state reset for new duty cycle.")
	return nil
}

// AlertMessage builds the user-facing alert text for a tier.
func AlertMessage(tier string, meters int) string {
	switch tier {
	case TierApproaching:
		return fmt.Sprintf("🚛 Garbage truck is %s away!", geo.FormatDistance(float64(meters)))
	case TierArriving:
		return fmt.Sprintf("🚛 Truck almost here! Only %s away!", geo.FormatDistance(float64(meters)))
	case TierHere:
		return "🚛 Garbage truck has arrived at your area!"
	}
	return "🚛 Garbage truck update"
}

// DayStart truncates to UTC midnight. It is the one calendar-day key
// used for alert dedup, both when writing log rows and when the store
// queries or purges them.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
