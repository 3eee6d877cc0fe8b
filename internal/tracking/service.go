package tracking

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"truck_tracker/internal/alerts"
	"truck_tracker/internal/config"
	"truck_tracker/internal/geo"
	"truck_tracker/internal/models"
)

var (
	ErrNoZone  = errors.New("no service zone assigned")
	ErrNoTruck = errors.New("no truck assigned to zone")
)

// Store is the read access the query service needs.
type Store interface {
	GetUser(id uint) (*models.User, error)
	GetZone(id uint) (*models.Zone, error)
	// GetTruckByZone returns gorm.ErrRecordNotFound when the zone has no
	// assigned truck.
	GetTruckByZone(zoneID uint) (*models.Truck, error)
	// LocationsSince returns the truck's history rows captured after the
	// cutoff, ordered by captured timestamp.
	LocationsSince(truckID uint, since time.Time) ([]models.TruckLocation, error)
}

// ZoneInfo, TruckInfo, DistanceInfo and DutyInfo are the composed-view
// fragments shared by the poll endpoint and the websocket push.
type ZoneInfo struct {
	ID           uint    `json:"id"`
	Name         string  `json:"name"`
	TypicalStart *string `json:"typical_start,omitempty"`
	TypicalEnd   *string `json:"typical_end,omitempty"`
}

type TruckInfo struct {
	ID                   uint       `json:"id"`
	VehicleNumber        string     `json:"vehicle_number"`
	DriverName           string     `json:"driver_name,omitempty"`
	IsActive             bool       `json:"is_active"`
	Lat                  *float64   `json:"lat"`
	Lng                  *float64   `json:"lng"`
	Speed                float64    `json:"speed"`
	Heading              float64    `json:"heading"`
	LastUpdate           *time.Time `json:"last_update,omitempty"`
	LastUpdateSecondsAgo *int       `json:"last_update_seconds_ago,omitempty"`
}

type DistanceInfo struct {
	Meters int    `json:"meters"`
	Text   string `json:"text"`
}

type DutyInfo struct {
	StartedAt *time.Time `json:"started_at,omitempty"`
	Duration  string     `json:"duration,omitempty"`
}

// View is the full composed answer to "what should this user see right
// now". Every branch of the decision tree yields a terminal View.
type View struct {
	Status   Status          `json:"status"`
	Message  string          `json:"message,omitempty"`
	Zone     *ZoneInfo       `json:"zone,omitempty"`
	Truck    *TruckInfo      `json:"truck,omitempty"`
	Distance *DistanceInfo   `json:"distance,omitempty"`
	ETA      *ETA            `json:"eta,omitempty"`
	Duty     *DutyInfo       `json:"duty,omitempty"`
	Alert    *alerts.Preview `json:"alert,omitempty"`
}

// RoutePoint is one history sample in a route reconstruction.
type RoutePoint struct {
	Lat   float64   `json:"lat"`
	Lng   float64   `json:"lng"`
	Speed float64   `json:"speed"`
	Time  time.Time `json:"time"`
}

type RouteHistory struct {
	TruckID uint         `json:"truck_id"`
	Points  []RoutePoint `json:"points"`
	Start   *time.Time   `json:"start,omitempty"`
	End     *time.Time   `json:"end,omitempty"`
}

// Service composes geo math, the status estimator and the alert preview
// into the per-user tracking answer.
type Service struct {
	store  Store
	engine *alerts.Engine
	cfg    *config.Settings
	Now    func() time.Time
}

func NewService(store Store, engine *alerts.Engine, cfg *config.Settings) *Service {
	return &Service{store: store, engine: engine, cfg: cfg, Now: time.Now}
}

// TrackUser walks the decision tree: no zone -> no truck -> off duty ->
// no fix -> no home -> full computation. Each branch is terminal. The
// alert info is the read-only preview; the log is only written by the
// background ingestion path.
func (s *Service) TrackUser(userID uint) (*View, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, err
	}

	if user.ZoneID == nil {
		return &View{
			Status:  StatusNoZone,
			Message: "No service zone assigned. Please set your home location.",
		}, nil
	}

	zone, err := s.store.GetZone(*user.ZoneID)
	if err != nil {
		return nil, err
	}
	zoneInfo := &ZoneInfo{
		ID:           zone.ID,
		Name:         zone.Name,
		TypicalStart: zone.TypicalStartTime,
		TypicalEnd:   zone.TypicalEndTime,
	}

	truck, err := s.store.GetTruckByZone(zone.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &View{
				Status:  StatusNoTruck,
				Message: "No truck assigned to your zone yet.",
				Zone:    zoneInfo,
			}, nil
		}
		return nil, err
	}

	now := s.Now()
	truckInfo := &TruckInfo{
		ID:                   truck.ID,
		VehicleNumber:        truck.VehicleNumber,
		DriverName:           truck.DriverName,
		IsActive:             truck.IsActive,
		Lat:                  truck.LastLat,
		Lng:                  truck.LastLng,
		Speed:                truck.LastSpeed,
		Heading:              truck.LastHeading,
		LastUpdate:           truck.LastUpdate,
		LastUpdateSecondsAgo: SecondsAgo(truck.LastUpdate, now),
	}

	if !truck.IsActive {
		msg := "Truck is not on duty right now."
		if zone.TypicalStartTime != nil {
			msg = fmt.Sprintf("%s Usually starts around %s.", msg, *zone.TypicalStartTime)
		}
		return &View{
			Status:  StatusOffline,
			Message: msg,
			Zone:    zoneInfo,
			Truck:   truckInfo,
		}, nil
	}

	duty := &DutyInfo{
		StartedAt: truck.DutyStartedAt,
		Duration:  FormatDuration(truck.DutyStartedAt, now),
	}

	if !truck.HasFix() {
		return &View{
			Status:  StatusNotStarted,
			Message: "Truck started duty. Waiting for GPS signal...",
			Zone:    zoneInfo,
			Truck:   truckInfo,
			Duty:    duty,
		}, nil
	}

	if !user.HasHome() {
		return &View{
			Status:  StatusApproaching,
			Message: "Please set your home location to see distance and ETA.",
			Zone:    zoneInfo,
			Truck:   truckInfo,
			Duty:    duty,
		}, nil
	}

	distance := geo.Distance(*truck.LastLat, *truck.LastLng, *user.HomeLat, *user.HomeLng)
	eta := EstimateETA(distance, truck.LastSpeed, now, s.cfg)
	status := DetermineStatus(distance, true, true, nil, s.cfg)

	view := &View{
		Status: status,
		Zone:   zoneInfo,
		Truck:  truckInfo,
		Distance: &DistanceInfo{
			Meters: int(distance),
			Text:   geo.FormatDistance(distance),
		},
		ETA:  &eta,
		Duty: duty,
	}

	preview, err := s.engine.PreviewFor(user, truck, distance)
	if err != nil {
		// The view still serves without the alert block.
		logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to compute alert preview for tracking view.")
	} else {
		view.Alert = preview
	}
	return view, nil
}

// RouteHistory reconstructs the truck's route over the trailing window,
// ordered by device-captured timestamp.
func (s *Service) RouteHistory(userID uint, minutes int) (*RouteHistory, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user.ZoneID == nil {
		return nil, ErrNoZone
	}
	truck, err := s.store.GetTruckByZone(*user.ZoneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoTruck
		}
		return nil, err
	}

	cutoff := s.Now().Add(-time.Duration(minutes) * time.Minute)
	rows, err := s.store.LocationsSince(truck.ID, cutoff)
	if err != nil {
		return nil, err
	}

	history := &RouteHistory{TruckID: truck.ID, Points: make([]RoutePoint, 0, len(rows))}
	for _, r := range rows {
		history.Points = append(history.Points, RoutePoint{
			Lat:   r.Latitude,
			Lng:   r.Longitude,
			Speed: r.Speed,
			Time:  r.CapturedAt,
		})
	}
	if len(rows) > 0 {
		first, last := rows[0].CapturedAt, rows[len(rows)-1].CapturedAt
		history.Start, history.End = &first, &last
	}
	return history, nil
}
