package alerts

import (
	"time"

	"github.com/sirupsen/logrus"

	"truck_tracker/internal/models"
)

// Deliverer resolves a fired decision into a delivery attempt. Satisfied
// by Notifier; tests swap in fakes.
type Deliverer interface {
	Deliver(user *models.User, d *Decision) (bool, string)
}

// TruckSource is the read access the background worker needs.
type TruckSource interface {
	GetTruck(id uint) (*models.Truck, error)
	GetUser(id uint) (*models.User, error)
}

// Dispatcher decouples alert evaluation and delivery from the fix
// ingestion path: ingestion enqueues a truck id and returns, a worker
// drains the queue. A full queue drops the job rather than blocking GPS
// ingestion.
type Dispatcher struct {
	jobs     chan uint
	store    TruckSource
	engine   *Engine
	notifier Deliverer
	done     chan struct{}
}

func NewDispatcher(store TruckSource, engine *Engine, notifier Deliverer, queueSize int) *Dispatcher {
	d := &Dispatcher{
		jobs:     make(chan uint, queueSize),
		store:    store,
		engine:   engine,
		notifier: notifier,
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue schedules alert evaluation for a truck. Never blocks.
func (d *Dispatcher) Enqueue(truckID uint) {
	select {
	case d.jobs <- truckID:
	default:
		logrus.WithField("truck_id", truckID).Warn("Alert queue full, dropping evaluation job.")
	}
}

// Close stops the worker after the queued jobs drain.
func (d *Dispatcher) Close() {
	close(d.jobs)
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for truckID := range d.jobs {
		d.process(truckID)
	}
}

func (d *Dispatcher) process(truckID uint) {
	started := time.Now()

	truck, err := d.store.GetTruck(truckID)
	if err != nil {
		logrus.WithError(err).WithField("truck_id", truckID).Error("Alert job: truck lookup failed.")
		return
	}

	decisions, err := d.engine.EvaluateZone(truck)
	if err != nil {
		logrus.WithError(err).WithField("truck_id", truckID).Error("Alert job: zone evaluation failed.")
		return
	}

	for _, dec := range decisions {
		user, err := d.store.GetUser(dec.UserID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", dec.UserID).Error("Alert job: user lookup failed.")
			continue
		}

		delivered, method := d.notifier.Deliver(user, dec)
		// The log row is the dedup record: persist when any channel got
		// through, or when the user only wants the in-app sound cue.
		if delivered || user.AlertType == models.AlertTypeSound {
			if err := d.engine.Record(dec, method); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"user_id": dec.UserID,
					"tier":    dec.Tier,
				}).Error("Alert job: failed to record alert.")
			}
		}
	}

	if len(decisions) > 0 {
		logrus.WithFields(logrus.Fields{
			"truck_id":   truckID,
			"alerts":     len(decisions),
			"elapsed_ms": time.Since(started).Milliseconds(),
		}).Info("Alert evaluation completed.")
	}
}
