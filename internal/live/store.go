package live

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"truck_tracker/internal/geo"
	"truck_tracker/internal/models"
)

// ErrInvalidFix marks a fix with out-of-range coordinates or a missing
// capture timestamp.
var ErrInvalidFix = errors.New("invalid location fix")

// Fix is one GPS sample from the driver device.
type Fix struct {
	Lat        float64   `json:"lat" binding:"required"`
	Lng        float64   `json:"lng" binding:"required"`
	Speed      float64   `json:"speed"`
	Heading    float64   `json:"heading"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	CapturedAt time.Time `json:"captured_at" binding:"required"`
}

// Validate rejects malformed fixes before they touch the store.
func (f *Fix) Validate() error {
	if !geo.ValidCoordinate(f.Lat, f.Lng) {
		return ErrInvalidFix
	}
	if f.CapturedAt.IsZero() {
		return ErrInvalidFix
	}
	return nil
}

// TruckStore is the persistence the tracker needs. The GORM
// implementation lives in internal/store; tests supply fakes.
type TruckStore interface {
	GetTruck(id uint) (*models.Truck, error)
	// UpdateTruck must apply all fields as one atomic UPDATE so readers
	// never observe a torn snapshot.
	UpdateTruck(id uint, fields map[string]interface{}) error
	CreateLocation(loc *models.TruckLocation) error
}

// ZoneResetter clears alert suppression for a zone when a duty cycle
// starts. Satisfied by the alert engine.
type ZoneResetter interface {
	ResetZone(zoneID uint) error
}

// Tracker is the live location store: the authoritative per-truck cached
// snapshot plus the append-only fix history. A per-truck mutex serializes
// snapshot read-modify-write; the snapshot always reflects the fix with
// the latest captured timestamp (last-writer-wins by capture time, not by
// arrival).
type Tracker struct {
	store  TruckStore
	cache  *SnapshotCache
	alerts ZoneResetter
	Now    func() time.Time

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewTracker(store TruckStore, cache *SnapshotCache, alerts ZoneResetter) *Tracker {
	return &Tracker{
		store:  store,
		cache:  cache,
		alerts: alerts,
		Now:    time.Now,
		locks:  make(map[uint]*sync.Mutex),
	}
}

func (t *Tracker) lockTruck(id uint) func() {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &sync.Mutex{}
		t.locks[id] = l
	}
	t.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// RecordFix ingests a single live fix: appends a history row, folds the
// fix into the cached snapshot, and auto-activates an off-duty truck (a
// GPS fix is an implicit duty start). Alert evaluation and broadcast are
// the caller's background concern; this call never waits on delivery.
func (t *Tracker) RecordFix(truckID uint, fix Fix) (*models.Truck, error) {
	if err := fix.Validate(); err != nil {
		return nil, err
	}

	unlock := t.lockTruck(truckID)
	defer unlock()

	truck, err := t.store.GetTruck(truckID)
	if err != nil {
		return nil, err
	}
	now := t.Now()

	if err := t.store.CreateLocation(&models.TruckLocation{
		TruckID:       truckID,
		Latitude:      fix.Lat,
		Longitude:     fix.Lng,
		Speed:         fix.Speed,
		Heading:       fix.Heading,
		Accuracy:      fix.Accuracy,
		CapturedAt:    fix.CapturedAt,
		SyncedAt:      now,
		IsOfflineSync: false,
	}); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if !truck.IsActive {
		truck.IsActive = true
		truck.DutyStartedAt = &now
		fields["is_active"] = true
		fields["duty_started_at"] = now
	}
	t.foldSnapshot(truck, fix, now, fields)

	if err := t.store.UpdateTruck(truckID, fields); err != nil {
		return nil, err
	}
	t.cache.Update(context.Background(), truck)

	return truck, nil
}

// SyncBatch ingests an offline batch. Fixes are sorted by captured
// timestamp before processing; a malformed row is counted as failed
// without aborting its siblings. The snapshot ends up on the
// chronologically last applied fix.
func (t *Tracker) SyncBatch(truckID uint, fixes []Fix) (synced, failed int, err error) {
	sorted := make([]Fix, len(fixes))
	copy(sorted, fixes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CapturedAt.Before(sorted[j].CapturedAt)
	})

	unlock := t.lockTruck(truckID)
	defer unlock()

	truck, err := t.store.GetTruck(truckID)
	if err != nil {
		return 0, 0, err
	}
	now := t.Now()

	var last *Fix
	for i := range sorted {
		fix := sorted[i]
		if vErr := fix.Validate(); vErr != nil {
			failed++
			continue
		}
		if cErr := t.store.CreateLocation(&models.TruckLocation{
			TruckID:       truckID,
			Latitude:      fix.Lat,
			Longitude:     fix.Lng,
			Speed:         fix.Speed,
			Heading:       fix.Heading,
			Accuracy:      fix.Accuracy,
			CapturedAt:    fix.CapturedAt,
			SyncedAt:      now,
			IsOfflineSync: true,
		}); cErr != nil {
			logrus.WithError(cErr).WithField("truck_id", truckID).Warn("Offline fix rejected during batch sync.")
			failed++
			continue
		}
		synced++
		last = &sorted[i]
	}

	if last != nil {
		fields := make(map[string]interface{})
		if !truck.IsActive {
			truck.IsActive = true
			truck.DutyStartedAt = &now
			fields["is_active"] = true
			fields["duty_started_at"] = now
		}
		t.foldSnapshot(truck, *last, now, fields)
		if uErr := t.store.UpdateTruck(truckID, fields); uErr != nil {
			return synced, failed, uErr
		}
		t.cache.Update(context.Background(), truck)
	}

	return synced, failed, nil
}

// foldSnapshot applies a fix to the cached snapshot when its capture time
// is not older than what the snapshot already holds.
func (t *Tracker) foldSnapshot(truck *models.Truck, fix Fix, now time.Time, fields map[string]interface{}) {
	if truck.LastCapturedAt != nil && fix.CapturedAt.Before(*truck.LastCapturedAt) {
		return
	}
	lat, lng, captured := fix.Lat, fix.Lng, fix.CapturedAt
	truck.LastLat = &lat
	truck.LastLng = &lng
	truck.LastSpeed = fix.Speed
	truck.LastHeading = fix.Heading
	truck.LastUpdate = &now
	truck.LastCapturedAt = &captured

	fields["last_lat"] = fix.Lat
	fields["last_lng"] = fix.Lng
	fields["last_speed"] = fix.Speed
	fields["last_heading"] = fix.Heading
	fields["last_update"] = now
	fields["last_captured_at"] = fix.CapturedAt
}

// SetDuty flips the duty flag. Idempotent: setting the current value is a
// no-op returning the current state. Starting duty records the start time
// and resets the zone's alert suppression; stopping keeps the snapshot so
// the last known position stays displayable.
func (t *Tracker) SetDuty(truckID uint, active bool) (truck *models.Truck, changed bool, err error) {
	unlock := t.lockTruck(truckID)
	defer unlock()

	truck, err = t.store.GetTruck(truckID)
	if err != nil {
		return nil, false, err
	}
	if truck.IsActive == active {
		return truck, false, nil
	}

	fields := map[string]interface{}{"is_active": active}
	truck.IsActive = active
	if active {
		now := t.Now()
		truck.DutyStartedAt = &now
		fields["duty_started_at"] = now
	}
	if err = t.store.UpdateTruck(truckID, fields); err != nil {
		return nil, false, err
	}

	if active && truck.ZoneID != nil && t.alerts != nil {
		if rErr := t.alerts.ResetZone(*truck.ZoneID); rErr != nil {
			logrus.WithError(rErr).WithField("zone_id", *truck.ZoneID).Error("Failed to reset zone alert state on duty start.")
		}
	}

	return truck, true, nil
}
