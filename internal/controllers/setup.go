package controllers

import (
	"truck_tracker/internal/alerts"
	"truck_tracker/internal/config"
	"truck_tracker/internal/live"
	"truck_tracker/internal/tracking"
	"truck_tracker/internal/ws"
)

// Shared service handles, wired once at startup.
var (
	settings    *config.Settings
	tracker     *live.Tracker
	trackSvc    *tracking.Service
	dispatcher  *alerts.Dispatcher
	hub         *ws.Hub
	broadcaster *ws.Broadcaster
)

// Setup hands the controllers their service dependencies. Must run before
// the router starts serving.
func Setup(cfg *config.Settings, t *live.Tracker, svc *tracking.Service, d *alerts.Dispatcher, h *ws.Hub, b *ws.Broadcaster) {
	settings = cfg
	tracker = t
	trackSvc = svc
	dispatcher = d
	hub = h
	broadcaster = b
}
