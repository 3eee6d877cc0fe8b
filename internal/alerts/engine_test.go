package alerts

import (
	"sync"
	"testing"
	"time"

	"truck_tracker/internal/config"
	"truck_tracker/internal/models"
)

// fakeStore implements Store and TruckSource in memory.
type fakeStore struct {
	mu     sync.Mutex
	logs   []models.AlertLog
	users  []models.User
	trucks map[uint]*models.Truck
	resets []uint
}

func (f *fakeStore) AlertsForDay(userID, truckID uint, day time.Time) ([]models.AlertLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AlertLog
	for _, l := range f.logs {
		if l.UserID == userID && l.TruckID == truckID && sameDay(l.AlertDate, day) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateAlertLog(entry *models.AlertLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *entry)
	return nil
}

func (f *fakeStore) UpdateUserAlertState(userID uint, tier *string, at *time.Time) error {
	return nil
}

func (f *fakeStore) UsersInZone(zoneID uint) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		if u.ZoneID != nil && *u.ZoneID == zoneID && u.AlertEnabled && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) ResetZoneAlertState(zoneID uint, day time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, zoneID)
	var kept []models.AlertLog
	for _, l := range f.logs {
		if !sameDay(l.AlertDate, day) {
			kept = append(kept, l)
		}
	}
	f.logs = kept
	return nil
}

func (f *fakeStore) GetTruck(id uint) (*models.Truck, error) {
	return f.trucks[id], nil
}

func (f *fakeStore) GetUser(id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID == id {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) logCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logs)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func ptrF(v float64) *float64 { return &v }
func ptrU(v uint) *uint       { return &v }

func testUser() *models.User {
	u := &models.User{
		Name:          "Asha",
		Phone:         "9999900001",
		HomeLat:       ptrF(12.94),
		HomeLng:       ptrF(77.60),
		ZoneID:        ptrU(1),
		AlertEnabled:  true,
		AlertDistance: 500,
		AlertType:     models.AlertTypeSound,
		IsActive:      true,
	}
	u.ID = 1
	return u
}

func testTruck() *models.Truck {
	tr := &models.Truck{
		VehicleNumber: "KA-01-1234",
		DriverPhone:   "9999900002",
		ZoneID:        ptrU(1),
		IsActive:      true,
		LastLat:       ptrF(12.941),
		LastLng:       ptrF(77.601),
	}
	tr.ID = 7
	return tr
}

func newTestEngine(t *testing.T, store Store) *Engine {
	t.Helper()
	cfg, err := config.LoadSettings()
	if err != nil {
		t.Fatalf("loading settings: %v", err)
	}
	return NewEngine(store, cfg)
}

func TestEvaluateGates(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(t, store)
	truck := testTruck()

	disabled := testUser()
	disabled.AlertEnabled = false
	if d, _ := engine.Evaluate(disabled, truck, 80); d != nil {
		t.Error("alerts disabled: expected no decision")
	}

	noHome := testUser()
	noHome.HomeLat, noHome.HomeLng = nil, nil
	if d, _ := engine.Evaluate(noHome, truck, 80); d != nil {
		t.Error("no home coordinates: expected no decision")
	}

	offDuty := testTruck()
	offDuty.IsActive = false
	if d, _ := engine.Evaluate(testUser(), offDuty, 80); d != nil {
		t.Error("truck off duty: expected no decision")
	}

	noFix := testTruck()
	noFix.LastLat, noFix.LastLng = nil, nil
	if d, _ := engine.Evaluate(testUser(), noFix, 80); d != nil {
		t.Error("truck without fix: expected no decision")
	}
}

func TestEvaluateTierSelection(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(t, store)
	truck := testTruck()

	cases := []struct {
		distance      float64
		alertDistance int
		wantTier      string
	}{
		{80, 500, TierHere},
		{300, 500, TierArriving},
		{900, 1000, TierApproaching},
		{900, 500, ""},   // above the user's personal preference
		{1200, 2000, ""}, // above the global approaching ceiling
	}
	for _, c := range cases {
		user := testUser()
		user.AlertDistance = c.alertDistance
		d, err := engine.Evaluate(user, truck, c.distance)
		if err != nil {
			t.Fatalf("Evaluate(%f): %v", c.distance, err)
		}
		got := ""
		if d != nil {
			got = d.Tier
		}
		if got != c.wantTier {
			t.Errorf("distance %f (pref %d): tier %q, want %q", c.distance, c.alertDistance, got, c.wantTier)
		}
	}
}

func TestEvaluateDedupExactlyOncePerDay(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(t, store)
	user := testUser()
	truck := testTruck()

	for i := 0; i < 5; i++ {
		d, err := engine.Evaluate(user, truck, 80)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if d != nil {
			if err := engine.Record(d, models.AlertTypeSound); err != nil {
				t.Fatalf("Record: %v", err)
			}
		}
	}

	if got := store.logCount(); got != 1 {
		t.Errorf("expected exactly one alert log row, got %d", got)
	}
}

func TestEvaluateTierMonotonicity(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(t, store)
	user := testUser()
	user.AlertDistance = 1000
	truck := testTruck()

	// Arriving already fired today.
	d, _ := engine.Evaluate(user, truck, 300)
	if d == nil || d.Tier != TierArriving {
		t.Fatalf("expected arriving decision, got %+v", d)
	}
	if err := engine.Record(d, models.AlertTypeSound); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// Truck moved away and back out to approaching range: no downgrade.
	if d, _ := engine.Evaluate(user, truck, 900); d != nil {
		t.Errorf("expected no downgrade alert after arriving, got tier %q", d.Tier)
	}

	// Escalation to here still fires.
	d, _ = engine.Evaluate(user, truck, 50)
	if d == nil || d.Tier != TierHere {
		t.Errorf("expected here escalation, got %+v", d)
	}
}

func TestEvaluateZoneEscalationSequence(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(t, store)
	user := testUser()
	user.AlertDistance = 1000
	truck := testTruck()

	// Truck approaches the home: 3000m, 900m, 300m, 50m. Three tiers fire
	// once each, 3000m never qualifies.
	for _, distance := range []float64{3000, 900, 300, 50} {
		d, err := engine.Evaluate(user, truck, distance)
		if err != nil {
			t.Fatalf("Evaluate(%f): %v", distance, err)
		}
		if d != nil {
			if err := engine.Record(d, models.AlertTypeSound); err != nil {
				t.Fatalf("Record: %v", err)
			}
		}
	}

	if got := store.logCount(); got != 3 {
		t.Errorf("expected 3 alert log rows (one per tier), got %d", got)
	}
}

func TestPreviewDoesNotMutate(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(t, store)
	user := testUser()
	truck := testTruck()

	p, err := engine.PreviewFor(user, truck, 80)
	if err != nil {
		t.Fatalf("PreviewFor: %v", err)
	}
	if p == nil || !p.ShouldAlert || p.Tier != TierHere || !p.PlaySound {
		t.Errorf("unexpected preview %+v", p)
	}
	if got := store.logCount(); got != 0 {
		t.Errorf("preview must not write log rows, found %d", got)
	}

	// Once the tier is logged, preview reports it as already sent.
	d, _ := engine.Evaluate(user, truck, 80)
	if err := engine.Record(d, models.AlertTypeSound); err != nil {
		t.Fatalf("Record: %v", err)
	}
	p, _ = engine.PreviewFor(user, truck, 80)
	if p == nil || p.ShouldAlert || p.PlaySound {
		t.Errorf("expected suppressed preview after record, got %+v", p)
	}
}

func TestResetZoneAllowsReAlertSameDay(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(t, store)
	user := testUser()
	truck := testTruck()

	d, _ := engine.Evaluate(user, truck, 80)
	if err := engine.Record(d, models.AlertTypeSound); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if d, _ := engine.Evaluate(user, truck, 80); d != nil {
		t.Fatal("expected suppression before reset")
	}

	if err := engine.ResetZone(*truck.ZoneID); err != nil {
		t.Fatalf("ResetZone: %v", err)
	}

	d, _ = engine.Evaluate(user, truck, 80)
	if d == nil {
		t.Error("expected re-alert after duty-cycle reset on the same day")
	}
}

// fakeDeliverer records delivery attempts with a fixed outcome.
type fakeDeliverer struct {
	mu        sync.Mutex
	succeed   bool
	method    string
	delivered int
}

func (f *fakeDeliverer) Deliver(user *models.User, d *Decision) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered++
	return f.succeed, f.method
}

func TestDispatcherRecordsSoundOnlyAlerts(t *testing.T) {
	user := testUser()
	truck := testTruck()
	store := &fakeStore{
		users:  []models.User{*user},
		trucks: map[uint]*models.Truck{truck.ID: truck},
	}
	engine := newTestEngine(t, store)
	deliverer := &fakeDeliverer{succeed: false, method: models.AlertTypeSound}

	d := NewDispatcher(store, engine, deliverer, 4)
	d.Enqueue(truck.ID)
	d.Close()

	// User preference is sound-only: the log row persists even though no
	// external channel succeeded.
	if got := store.logCount(); got != 1 {
		t.Errorf("expected 1 alert log row, got %d", got)
	}
}

func TestDispatcherSkipsLogOnFailedExternalDelivery(t *testing.T) {
	user := testUser()
	user.AlertType = models.AlertTypePush
	truck := testTruck()
	store := &fakeStore{
		users:  []models.User{*user},
		trucks: map[uint]*models.Truck{truck.ID: truck},
	}
	engine := newTestEngine(t, store)
	deliverer := &fakeDeliverer{succeed: false, method: models.AlertTypeSound}

	d := NewDispatcher(store, engine, deliverer, 4)
	d.Enqueue(truck.ID)
	d.Close()

	if got := store.logCount(); got != 0 {
		t.Errorf("push-only user with failed delivery: expected no log row, got %d", got)
	}
}

func TestDayStartIsOneKeyAcrossLocations(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	at := time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)

	utcKey := DayStart(at)
	localKey := DayStart(at.In(kolkata))
	if !utcKey.Equal(localKey) {
		t.Errorf("same instant produced two day keys: %v vs %v", utcKey, localKey)
	}
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if !utcKey.Equal(want) {
		t.Errorf("day key = %v, want %v", utcKey, want)
	}
}
