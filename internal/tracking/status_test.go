package tracking

import (
	"testing"
	"time"

	"truck_tracker/internal/config"
)

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	cfg, err := config.LoadSettings()
	if err != nil {
		t.Fatalf("loading settings: %v", err)
	}
	return cfg
}

func TestDetermineStatusDistanceBands(t *testing.T) {
	cfg := testSettings(t)

	cases := []struct {
		distance float64
		want     Status
	}{
		{50, StatusHere},
		{99, StatusHere},
		{100, StatusArriving},
		{499, StatusArriving},
		{500, StatusApproaching},
		{3000, StatusApproaching},
	}
	for _, c := range cases {
		got := DetermineStatus(c.distance, true, true, nil, cfg)
		if got != c.want {
			t.Errorf("DetermineStatus(%f) = %q, want %q", c.distance, got, c.want)
		}
	}
}

func TestDetermineStatusOffDutyAndNoFix(t *testing.T) {
	cfg := testSettings(t)

	if got := DetermineStatus(50, false, true, nil, cfg); got != StatusOffline {
		t.Errorf("off duty: got %q, want offline", got)
	}
	if got := DetermineStatus(0, true, false, nil, cfg); got != StatusNotStarted {
		t.Errorf("no fix: got %q, want not_started", got)
	}
}

func TestDetermineStatusPassedHeuristic(t *testing.T) {
	cfg := testSettings(t)

	prev := 200.0
	if got := DetermineStatus(260, true, true, &prev, cfg); got != StatusPassed {
		t.Errorf("moving away beyond hysteresis: got %q, want passed", got)
	}
	// Within hysteresis the distance band still wins.
	if got := DetermineStatus(240, true, true, &prev, cfg); got != StatusArriving {
		t.Errorf("within hysteresis: got %q, want arriving", got)
	}
}

func TestTrafficMultiplier(t *testing.T) {
	cfg := testSettings(t)

	morningPeak := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	eveningPeak := time.Date(2024, 1, 15, 18, 30, 0, 0, time.UTC)
	midday := time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)

	if got := TrafficMultiplier(morningPeak, cfg); got != cfg.TrafficPeakMultiplier {
		t.Errorf("morning peak: got %f", got)
	}
	if got := TrafficMultiplier(eveningPeak, cfg); got != cfg.TrafficPeakMultiplier {
		t.Errorf("evening peak: got %f", got)
	}
	if got := TrafficMultiplier(midday, cfg); got != cfg.TrafficNormalMultiplier {
		t.Errorf("midday: got %f", got)
	}
}

func TestEstimateETAUsesAverageSpeedWhenSlow(t *testing.T) {
	cfg := testSettings(t)
	midday := time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)

	// Speed 0 -> 12 km/h / 1.2 = 10 km/h effective = 166.67 m/min.
	// 1000 m -> 6 minutes.
	eta := EstimateETA(1000, 0, midday, cfg)
	if eta.Minutes != 6 {
		t.Errorf("expected 6 minutes, got %d", eta.Minutes)
	}
	if eta.Text != "~6 mins" {
		t.Errorf("unexpected text %q", eta.Text)
	}
	if eta.ArrivalTime != "01:06 PM" {
		t.Errorf("unexpected arrival time %q", eta.ArrivalTime)
	}
}

func TestEstimateETADampensReportedSpeed(t *testing.T) {
	cfg := testSettings(t)
	midday := time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)

	// Speed 20 -> 14 km/h dampened, / 1.2 = 11.667 km/h = 194.4 m/min.
	// 1944 m -> 10 minutes.
	eta := EstimateETA(1944, 20, midday, cfg)
	if eta.Minutes != 10 {
		t.Errorf("expected 10 minutes, got %d", eta.Minutes)
	}

	// Reported speed above the cap is clamped to 20 km/h.
	fast := EstimateETA(1944, 100, midday, cfg)
	slow := EstimateETA(1944, 29, midday, cfg) // 29*0.7 = 20.3, also clamped
	if fast.Minutes != slow.Minutes {
		t.Errorf("expected clamped speeds to agree: %d vs %d", fast.Minutes, slow.Minutes)
	}
}

func TestEstimateETAMinimumOneMinute(t *testing.T) {
	cfg := testSettings(t)
	midday := time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)

	eta := EstimateETA(5, 0, midday, cfg)
	if eta.Minutes != 1 {
		t.Errorf("expected floor of 1 minute, got %d", eta.Minutes)
	}
	if eta.Text != "~1 min" {
		t.Errorf("unexpected text %q", eta.Text)
	}
}

func TestFormatDuration(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	start := now.Add(-135 * time.Minute)
	if got := FormatDuration(&start, now); got != "2h 15m" {
		t.Errorf("got %q, want 2h 15m", got)
	}
	short := now.Add(-5 * time.Minute)
	if got := FormatDuration(&short, now); got != "5m" {
		t.Errorf("got %q, want 5m", got)
	}
	if got := FormatDuration(nil, now); got != "" {
		t.Errorf("got %q, want empty for nil start", got)
	}
}
