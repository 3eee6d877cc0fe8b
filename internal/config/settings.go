package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Settings carries every tunable knob of the tracking and alerting core.
// All fields can be overridden via environment variables.
type Settings struct {
	AppName  string `env:"APP_NAME" envDefault:"Truck Tracker"`
	Debug    bool   `env:"DEBUG" envDefault:"true"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`

	// Alert tier distances in meters. The approaching tier is additionally
	// gated by each user's personal alert_distance preference.
	AlertDistanceHere        int `env:"ALERT_DISTANCE_HERE" envDefault:"100"`
	AlertDistanceArriving    int `env:"ALERT_DISTANCE_ARRIVING" envDefault:"500"`
	AlertDistanceApproaching int `env:"ALERT_DISTANCE_APPROACHING" envDefault:"1000"`
	DefaultAlertDistance     int `env:"DEFAULT_ALERT_DISTANCE" envDefault:"500"`

	// ETA model.
	AvgTruckSpeedKmh        float64 `env:"AVG_TRUCK_SPEED" envDefault:"12.0"`
	TrafficPeakMultiplier   float64 `env:"TRAFFIC_PEAK_MULTIPLIER" envDefault:"1.5"`
	TrafficNormalMultiplier float64 `env:"TRAFFIC_NORMAL_MULTIPLIER" envDefault:"1.2"`

	// Ingestion limits and background work sizing.
	LocationBatchMax int `env:"LOCATION_BATCH_MAX" envDefault:"1000"`
	AlertQueueSize   int `env:"ALERT_QUEUE_SIZE" envDefault:"256"`
	BroadcastQueue   int `env:"BROADCAST_QUEUE_SIZE" envDefault:"256"`

	// Delivery providers (opaque sinks; skipped when unconfigured).
	FCMServerKey     string `env:"FCM_SERVER_KEY"`
	FCMURL           string `env:"FCM_URL" envDefault:"https://fcm.googleapis.com/fcm/send"`
	MissedCallAPIURL string `env:"MISSED_CALL_API_URL"`
	MissedCallAPIKey string `env:"MISSED_CALL_API_KEY"`

	// Optional redis mirror of each truck's latest snapshot.
	RedisAddr         string `env:"REDIS_ADDR"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	RedisDB           int    `env:"REDIS_DB" envDefault:"0"`
	SnapshotTTLSecond int    `env:"SNAPSHOT_TTL_SECONDS" envDefault:"60"`
}

// LoadSettings reads .env (if present) and parses the environment into a
// Settings value.
func LoadSettings() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on env vars")
	}
	cfg := &Settings{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
