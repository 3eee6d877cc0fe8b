package live

import (
	"testing"
	"time"

	"truck_tracker/internal/models"
)

type fakeTruckStore struct {
	trucks    map[uint]*models.Truck
	locations []models.TruckLocation
	updates   []map[string]interface{}
}

func (f *fakeTruckStore) GetTruck(id uint) (*models.Truck, error) {
	return f.trucks[id], nil
}

func (f *fakeTruckStore) UpdateTruck(id uint, fields map[string]interface{}) error {
	f.updates = append(f.updates, fields)
	return nil
}

func (f *fakeTruckStore) CreateLocation(loc *models.TruckLocation) error {
	f.locations = append(f.locations, *loc)
	return nil
}

type fakeResetter struct {
	zones []uint
}

func (f *fakeResetter) ResetZone(zoneID uint) error {
	f.zones = append(f.zones, zoneID)
	return nil
}

func ptrU(v uint) *uint       { return &v }
func ptrF(v float64) *float64 { return &v }
func ts(sec int) time.Time    { return time.Date(2024, 1, 15, 9, 0, sec, 0, time.UTC) }
func fix(lat float64, t time.Time) Fix {
	return Fix{Lat: lat, Lng: 77.60, Speed: 10, Heading: 90, CapturedAt: t}
}

func newTestTracker(truck *models.Truck) (*Tracker, *fakeTruckStore, *fakeResetter) {
	store := &fakeTruckStore{trucks: map[uint]*models.Truck{truck.ID: truck}}
	resetter := &fakeResetter{}
	tracker := NewTracker(store, nil, resetter)
	return tracker, store, resetter
}

func offDutyTruck() *models.Truck {
	tr := &models.Truck{
		VehicleNumber: "KA-01-1234",
		DriverPhone:   "9999900002",
		ZoneID:        ptrU(3),
		IsActive:      false,
	}
	tr.ID = 7
	return tr
}

func TestRecordFixAutoActivatesAndUpdatesSnapshot(t *testing.T) {
	tracker, store, _ := newTestTracker(offDutyTruck())

	truck, err := tracker.RecordFix(7, fix(12.94, ts(0)))
	if err != nil {
		t.Fatalf("RecordFix: %v", err)
	}

	if !truck.IsActive || truck.DutyStartedAt == nil {
		t.Error("expected implicit duty start from first fix")
	}
	if !truck.HasFix() || *truck.LastLat != 12.94 {
		t.Errorf("snapshot not updated: %+v", truck)
	}
	if len(store.locations) != 1 || store.locations[0].IsOfflineSync {
		t.Errorf("expected one live history row, got %+v", store.locations)
	}

	// Snapshot atomicity: one UpdateTruck call carrying the whole tuple.
	if len(store.updates) != 1 {
		t.Fatalf("expected a single update, got %d", len(store.updates))
	}
	for _, key := range []string{"last_lat", "last_lng", "last_speed", "last_heading", "last_update", "last_captured_at"} {
		if _, ok := store.updates[0][key]; !ok {
			t.Errorf("snapshot update missing %q", key)
		}
	}
}

func TestRecordFixRejectsInvalid(t *testing.T) {
	tracker, store, _ := newTestTracker(offDutyTruck())

	if _, err := tracker.RecordFix(7, fix(91.0, ts(0))); err != ErrInvalidFix {
		t.Errorf("out-of-range lat: expected ErrInvalidFix, got %v", err)
	}
	if _, err := tracker.RecordFix(7, Fix{Lat: 12.94, Lng: 77.60}); err != ErrInvalidFix {
		t.Errorf("zero timestamp: expected ErrInvalidFix, got %v", err)
	}
	if len(store.locations) != 0 {
		t.Error("invalid fixes must not reach history")
	}
}

func TestSyncBatchSortsByCapturedTimestamp(t *testing.T) {
	tracker, store, _ := newTestTracker(offDutyTruck())

	// Receipt order t=5, t=1, t=3: snapshot must end on t=5's values.
	fixes := []Fix{fix(12.95, ts(5)), fix(12.91, ts(1)), fix(12.93, ts(3))}
	synced, failed, err := tracker.SyncBatch(7, fixes)
	if err != nil {
		t.Fatalf("SyncBatch: %v", err)
	}
	if synced != 3 || failed != 0 {
		t.Errorf("synced=%d failed=%d, want 3/0", synced, failed)
	}

	truck := store.trucks[7]
	if *truck.LastLat != 12.95 {
		t.Errorf("snapshot lat %f, want the chronologically last fix (12.95)", *truck.LastLat)
	}
	if truck.LastCapturedAt == nil || !truck.LastCapturedAt.Equal(ts(5)) {
		t.Errorf("snapshot captured-at %v, want %v", truck.LastCapturedAt, ts(5))
	}
	if len(store.locations) != 3 {
		t.Fatalf("expected 3 history rows, got %d", len(store.locations))
	}
	for _, loc := range store.locations {
		if !loc.IsOfflineSync {
			t.Error("batch rows must be flagged offline-sync")
		}
	}
}

func TestSyncBatchCountsPerRowFailures(t *testing.T) {
	tracker, _, _ := newTestTracker(offDutyTruck())

	fixes := []Fix{
		fix(12.95, ts(5)),
		{Lat: 200, Lng: 77.60, CapturedAt: ts(2)}, // bad latitude
		{Lat: 12.93, Lng: 77.60},                  // missing timestamp
	}
	synced, failed, err := tracker.SyncBatch(7, fixes)
	if err != nil {
		t.Fatalf("SyncBatch: %v", err)
	}
	if synced != 1 || failed != 2 {
		t.Errorf("synced=%d failed=%d, want 1/2", synced, failed)
	}
}

func TestSyncBatchDoesNotRegressSnapshot(t *testing.T) {
	truck := offDutyTruck()
	truck.IsActive = true
	newer := ts(10)
	truck.LastLat, truck.LastLng = ptrF(12.99), ptrF(77.61)
	truck.LastCapturedAt = &newer
	tracker, store, _ := newTestTracker(truck)

	// A late-arriving batch that is older than the current snapshot is
	// appended to history but must not win the snapshot.
	synced, _, err := tracker.SyncBatch(7, []Fix{fix(12.91, ts(4))})
	if err != nil {
		t.Fatalf("SyncBatch: %v", err)
	}
	if synced != 1 {
		t.Fatalf("synced=%d, want 1", synced)
	}
	if *store.trucks[7].LastLat != 12.99 {
		t.Errorf("snapshot regressed to %f", *store.trucks[7].LastLat)
	}
	if len(store.locations) != 1 {
		t.Errorf("history row missing for stale fix")
	}
}

func TestSetDutyIdempotent(t *testing.T) {
	tracker, store, resetter := newTestTracker(offDutyTruck())

	truck, changed, err := tracker.SetDuty(7, false)
	if err != nil {
		t.Fatalf("SetDuty: %v", err)
	}
	if changed || truck.IsActive {
		t.Error("setting current value must be a no-op")
	}
	if len(store.updates) != 0 {
		t.Error("no-op duty set must not write")
	}

	truck, changed, err = tracker.SetDuty(7, true)
	if err != nil {
		t.Fatalf("SetDuty: %v", err)
	}
	if !changed || !truck.IsActive || truck.DutyStartedAt == nil {
		t.Errorf("duty start not applied: %+v", truck)
	}
	if len(resetter.zones) != 1 || resetter.zones[0] != 3 {
		t.Errorf("duty start must reset zone alert state, got %v", resetter.zones)
	}
}

func TestSetDutyStopKeepsSnapshot(t *testing.T) {
	truck := offDutyTruck()
	truck.IsActive = true
	captured := ts(1)
	truck.LastLat, truck.LastLng = ptrF(12.94), ptrF(77.60)
	truck.LastCapturedAt = &captured
	tracker, _, resetter := newTestTracker(truck)

	stopped, changed, err := tracker.SetDuty(7, false)
	if err != nil {
		t.Fatalf("SetDuty: %v", err)
	}
	if !changed || stopped.IsActive {
		t.Error("expected duty stop")
	}
	if !stopped.HasFix() {
		t.Error("duty stop must keep the last known position")
	}
	if len(resetter.zones) != 0 {
		t.Error("duty stop must not reset zone alert state")
	}
}
