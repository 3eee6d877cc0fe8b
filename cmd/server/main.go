package main

import (
	"context"
	"log"
	"net/http"

	"truck_tracker/internal/alerts"
	"truck_tracker/internal/config"
	"truck_tracker/internal/controllers"
	"truck_tracker/internal/live"
	"truck_tracker/internal/logger"
	"truck_tracker/internal/middleware"
	"truck_tracker/internal/routes"
	"truck_tracker/internal/store"
	"truck_tracker/internal/tracking"
	"truck_tracker/internal/ws"
)

func main() {
	// Initialize structured logging to file
	logger.Setup()

	cfg, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Connect to the database
	config.InitDB()
	st := store.New(config.GetDB())

	// Core services.
	engine := alerts.NewEngine(st, cfg)
	notifier := alerts.NewNotifier(cfg)
	dispatcher := alerts.NewDispatcher(st, engine, notifier, cfg.AlertQueueSize)
	defer dispatcher.Close()

	cache := live.NewSnapshotCache(context.Background(), cfg)
	defer cache.Close()
	tracker := live.NewTracker(st, cache, engine)

	trackSvc := tracking.NewService(st, engine, cfg)

	hub := ws.NewHub()
	broadcaster := ws.NewBroadcaster(hub, trackSvc, cfg)
	defer broadcaster.Close()

	controllers.Setup(cfg, tracker, trackSvc, dispatcher, hub, broadcaster)

	// Setup Gin router
	r := routes.SetupRouter()

	// Wrap with CORS
	handler := middleware.EnableCORS(r)

	log.Printf("🚀 %s running at %s", cfg.AppName, cfg.HTTPAddr)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, handler))
}
