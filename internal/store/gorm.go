package store

import (
	"time"

	"gorm.io/gorm"

	"truck_tracker/internal/alerts"
	"truck_tracker/internal/models"
)

// GormStore is the single persistence implementation behind the tracking,
// live and alert packages. Each of those packages declares the narrow
// interface it consumes; GormStore satisfies all of them.
type GormStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) GetZone(id uint) (*models.Zone, error) {
	var zone models.Zone
	if err := s.db.First(&zone, id).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

func (s *GormStore) GetTruck(id uint) (*models.Truck, error) {
	var truck models.Truck
	if err := s.db.First(&truck, id).Error; err != nil {
		return nil, err
	}
	return &truck, nil
}

// GetTruckByZone returns gorm.ErrRecordNotFound when the zone has no
// assigned truck.
func (s *GormStore) GetTruckByZone(zoneID uint) (*models.Truck, error) {
	var truck models.Truck
	if err := s.db.Where("zone_id = ?", zoneID).First(&truck).Error; err != nil {
		return nil, err
	}
	return &truck, nil
}

// UpdateTruck applies all fields in a single UPDATE so concurrent readers
// never observe a half-written snapshot.
func (s *GormStore) UpdateTruck(id uint, fields map[string]interface{}) error {
	return s.db.Model(&models.Truck{}).Where("id = ?", id).Updates(fields).Error
}

func (s *GormStore) CreateLocation(loc *models.TruckLocation) error {
	return s.db.Create(loc).Error
}

// LocationsSince returns the truck's history rows captured after the
// cutoff, oldest first.
func (s *GormStore) LocationsSince(truckID uint, since time.Time) ([]models.TruckLocation, error) {
	var rows []models.TruckLocation
	err := s.db.
		Where("truck_id = ? AND captured_at >= ?", truckID, since).
		Order("captured_at ASC").
		Find(&rows).Error
	return rows, err
}

// UsersInZone returns the zone's active users with alerts enabled, the
// audience of a proximity broadcast.
func (s *GormStore) UsersInZone(zoneID uint) ([]models.User, error) {
	var users []models.User
	err := s.db.
		Where("zone_id = ? AND is_active = ? AND alert_enabled = ?", zoneID, true, true).
		Find(&users).Error
	return users, err
}

// AlertsForDay returns every alert log row for the user/truck pair on the
// given calendar date.
func (s *GormStore) AlertsForDay(userID, truckID uint, day time.Time) ([]models.AlertLog, error) {
	var rows []models.AlertLog
	err := s.db.
		Where("user_id = ? AND truck_id = ? AND alert_date = ?", userID, truckID, alerts.DayStart(day)).
		Find(&rows).Error
	return rows, err
}

func (s *GormStore) CreateAlertLog(entry *models.AlertLog) error {
	return s.db.Create(entry).Error
}

// UpdateUserAlertState writes the informational last-alert fields on the
// user row. Dedup correctness lives in the alert_logs unique index, not
// here.
func (s *GormStore) UpdateUserAlertState(userID uint, tier *string, at *time.Time) error {
	return s.db.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_alert_type": tier,
			"last_alert_at":   at,
		}).Error
}

// ResetZoneAlertState purges the day's alert log rows for every user in
// the zone and clears their last-alert fields, so a restarted duty cycle
// can alert again the same calendar day.
func (s *GormStore) ResetZoneAlertState(zoneID uint, day time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var userIDs []uint
		if err := tx.Model(&models.User{}).
			Where("zone_id = ?", zoneID).
			Pluck("id", &userIDs).Error; err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}
		if err := tx.Where("user_id IN ? AND alert_date = ?", userIDs, alerts.DayStart(day)).
			Delete(&models.AlertLog{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id IN ?", userIDs).
			Updates(map[string]interface{}{
				"last_alert_type": nil,
				"last_alert_at":   nil,
			}).Error
	})
}
