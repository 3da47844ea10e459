// Package notify delivers incident alerts to connected operator clients.
package notify

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"crashwatch/internal/logger"
	"crashwatch/internal/ws"
)

// alert is the push payload operator dashboards receive for a new incident.
type alert struct {
	Function        string `json:"function"`
	CameraID        int    `json:"camera_id"`
	StartingFrameID int    `json:"starting_frame_id"`
	City            string `json:"city"`
	District        string `json:"district"`
	Thumbnail       string `json:"thumbnail,omitempty"`
}

// HubNotifier broadcasts incident alerts over the operator WebSocket hub.
type HubNotifier struct {
	hub *ws.Hub
	log *logger.Logger
}

// NewHubNotifier returns a notifier over the given hub.
func NewHubNotifier(hub *ws.Hub, log *logger.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, log: log}
}

// Alert pushes the incident to every connected operator client.
func (n *HubNotifier) Alert(cameraID int, city, district string, offset int, thumbnail []byte) error {
	payload, err := json.Marshal(alert{
		Function:        "NOTIFICATION",
		CameraID:        cameraID,
		StartingFrameID: offset,
		City:            city,
		District:        district,
		Thumbnail:       base64.StdEncoding.EncodeToString(thumbnail),
	})
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	n.hub.Broadcast(payload)
	n.log.Info("incident alert sent for camera %d offset %d (%d clients)",
		cameraID, offset, n.hub.ClientCount())
	return nil
}
