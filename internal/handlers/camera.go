package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"crashwatch/internal/logger"
	"crashwatch/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const readDeadline = 60 * time.Second

// CameraSocketHandler accepts a capture-node connection and feeds its tagged
// messages into the pipeline. One connection gets one reader goroutine; the
// dispatcher keeps per-camera ordering from there.
func CameraSocketHandler(dispatcher *pipeline.Dispatcher, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("camera websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(readDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(readDeadline))
			return nil
		})

		log.Info("capture node connected from %s", r.RemoteAddr)

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				log.Info("capture node disconnected: %v", err)
				return
			}
			conn.SetReadDeadline(time.Now().Add(readDeadline))

			msg, err := pipeline.DecodeWire(payload)
			if err != nil {
				log.Error("discarding malformed camera message: %v", err)
				continue
			}
			dispatcher.Enqueue(msg)
		}
	}
}
