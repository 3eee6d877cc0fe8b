package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"truck_tracker/internal/config"
	"truck_tracker/internal/models"
)

// Notifier delivers fired alerts through the configured external
// providers. Both providers are opaque JSON sinks; when unconfigured the
// send is skipped with a warning. Delivery failure never fails the
// triggering request.
type Notifier struct {
	cfg    *config.Settings
	client *http.Client
}

func NewNotifier(cfg *config.Settings) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Deliver attempts the user's preferred channels. It returns whether any
// channel succeeded and the delivery method to record; "sound" means
// in-app only.
func (n *Notifier) Deliver(user *models.User, d *Decision) (bool, string) {
	success := false
	method := models.AlertTypeSound

	if user.AlertType == models.AlertTypePush || user.AlertType == models.AlertTypeBoth {
		if user.FCMToken != "" {
			if err := n.SendPush(user.FCMToken, "🚛 Garbage Truck Alert", d.Message, map[string]string{
				"type":       "truck_alert",
				"alert_type": d.Tier,
				"distance":   strconv.Itoa(d.DistanceMeters),
				"play_sound": strconv.FormatBool(d.PlaySound),
				"truck_lat":  strconv.FormatFloat(d.TruckLat, 'f', -1, 64),
				"truck_lng":  strconv.FormatFloat(d.TruckLng, 'f', -1, 64),
			}); err != nil {
				logrus.WithError(err).WithField("user_id", user.ID).Error("Push notification failed.")
			} else {
				success = true
				method = models.AlertTypePush
			}
		}
	}

	if user.AlertType == models.AlertTypeMissedCall || user.AlertType == models.AlertTypeBoth {
		if err := n.SendMissedCall(user.Phone); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Error("Missed call trigger failed.")
		} else {
			success = true
			if method == models.AlertTypeSound {
				method = models.AlertTypeMissedCall
			} else {
				method = models.AlertTypeBoth
			}
		}
	}

	return success, method
}

// SendPush posts an FCM-style notification payload.
func (n *Notifier) SendPush(token, title, body string, data map[string]string) error {
	if n.cfg.FCMServerKey == "" {
		logrus.Warn("FCM_SERVER_KEY not configured, skipping push notification.")
		return fmt.Errorf("push provider not configured")
	}

	payload, err := json.Marshal(map[string]interface{}{
		"to": token,
		"notification": map[string]string{
			"title": title,
			"body":  body,
			"sound": "default",
		},
		"data":     data,
		"priority": "high",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, n.cfg.FCMURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "key="+n.cfg.FCMServerKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push provider returned status %d", resp.StatusCode)
	}
	return nil
}

// SendMissedCall asks the telephony provider to ring the user briefly.
func (n *Notifier) SendMissedCall(phone string) error {
	if n.cfg.MissedCallAPIURL == "" || n.cfg.MissedCallAPIKey == "" {
		logrus.Warn("Missed call API not configured, skipping.")
		return fmt.Errorf("missed call provider not configured")
	}

	payload, err := json.Marshal(map[string]interface{}{
		"to":       phone,
		"duration": 5,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, n.cfg.MissedCallAPIURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.MissedCallAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("missed call provider returned status %d", resp.StatusCode)
	}
	return nil
}
