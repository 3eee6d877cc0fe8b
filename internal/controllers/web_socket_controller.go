package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"truck_tracker/internal/config"
	"truck_tracker/internal/models"
	"truck_tracker/internal/ws"
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for development (restrict in production!)
	},
}

// Application close codes sent before dropping an unusable connection.
const (
	closeNoZone = 4003
	closeNoUser = 4004
)

// HandleTrackingWebSocket upgrades the connection and streams the user's
// personalized tracking view: one full frame on connect, then a push on
// every truck event in their zone. The client may send "ping" for a
// liveness check and "refresh" to force a fresh frame.
func HandleTrackingWebSocket(c *gin.Context) {
	userID64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	userID := uint(userID64)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()
	// One writer at a time: the read loop's replies and the hub's
	// broadcast fan-out share this connection.
	sc := ws.NewSafeConn(conn)

	var user models.User
	if err := config.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			closeWith(sc, closeNoUser, "User not found")
		} else {
			closeWith(sc, websocket.CloseInternalServerErr, "Lookup failed")
		}
		return
	}
	if user.ZoneID == nil {
		closeWith(sc, closeNoZone, "No zone assigned to user")
		return
	}

	hub.Register(userID, *user.ZoneID, sc)
	defer hub.Unregister(userID, sc)

	sendFullView(sc, userID)

	for {
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("user_id", userID).Info("Tracking WebSocket closed.")
			} else {
				logrus.WithError(err).WithField("user_id", userID).Warn("Error reading WebSocket message.")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var inbound struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(p, &inbound); err != nil {
			// Unknown frames are tolerated, not an error.
			continue
		}
		switch inbound.Type {
		case "ping":
			sc.WriteJSON(ws.Envelope{Type: "pong", Timestamp: time.Now()})
		case "refresh":
			sendFullView(sc, userID)
		default:
			// Clients only listen on this stream.
		}
	}
}

func sendFullView(conn *ws.SafeConn, userID uint) {
	view, err := trackSvc.TrackUser(userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to compute view for WebSocket client.")
		conn.WriteJSON(ws.Envelope{Type: "error", Data: gin.H{"error": "tracking query failed"}, Timestamp: time.Now()})
		return
	}
	conn.WriteJSON(ws.Envelope{Type: "location_update", Data: view, Timestamp: time.Now()})
}

func closeWith(conn *ws.SafeConn, code int, reason string) {
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
