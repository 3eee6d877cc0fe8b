package ws

import (
	"time"

	"github.com/sirupsen/logrus"

	"truck_tracker/internal/config"
	"truck_tracker/internal/tracking"
)

// ViewSource computes the personalized tracking view for one user.
// Satisfied by the tracking service.
type ViewSource interface {
	TrackUser(userID uint) (*tracking.View, error)
}

type job struct {
	zoneID uint
	kind   string
}

// Broadcaster turns truck events into per-user pushes. Ingestion enqueues
// a zone id and returns immediately; the worker computes each listener's
// personalized view and sends it. A full queue drops the event since the
// next fix supersedes it anyway.
type Broadcaster struct {
	hub   *Hub
	views ViewSource
	jobs  chan job
	done  chan struct{}
	Now   func() time.Time
}

func NewBroadcaster(hub *Hub, views ViewSource, cfg *config.Settings) *Broadcaster {
	b := &Broadcaster{
		hub:   hub,
		views: views,
		jobs:  make(chan job, cfg.BroadcastQueue),
		done:  make(chan struct{}),
		Now:   time.Now,
	}
	go b.run()
	return b
}

// PublishTruckLocation notifies the zone's listeners that the truck
// moved. Non-blocking.
func (b *Broadcaster) PublishTruckLocation(zoneID uint) {
	b.publish(job{zoneID: zoneID, kind: "location_update"})
}

// PublishStatusChange notifies the zone's listeners of a duty change.
func (b *Broadcaster) PublishStatusChange(zoneID uint) {
	b.publish(job{zoneID: zoneID, kind: "status_change"})
}

func (b *Broadcaster) publish(j job) {
	select {
	case b.jobs <- j:
	default:
		logrus.WithField("zone_id", j.zoneID).Warn("Broadcast queue full, dropping event.")
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)
	for j := range b.jobs {
		b.process(j)
	}
}

func (b *Broadcaster) process(j job) {
	// Nobody listening on this zone, skip the store round-trips.
	if b.hub.ZoneUserCount(j.zoneID) == 0 {
		return
	}
	for _, userID := range b.hub.zoneAudience(j.zoneID) {
		view, err := b.views.TrackUser(userID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("Failed to compute view for broadcast.")
			continue
		}
		b.hub.SendToUser(userID, Envelope{
			Type:      j.kind,
			Data:      view,
			Timestamp: b.Now(),
		})
	}
}

// Close stops the worker after draining queued events.
func (b *Broadcaster) Close() {
	close(b.jobs)
	<-b.done
}
