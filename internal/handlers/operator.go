package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"crashwatch/internal/logger"
	"crashwatch/internal/pipeline"
	"crashwatch/internal/ws"
)

// incidentReply is one record of a SEARCH or RECENT_INCIDENTS reply.
type incidentReply struct {
	CameraID        int    `json:"camera_id"`
	StartingFrameID int    `json:"starting_frame_id"`
	City            string `json:"city"`
	District        string `json:"district"`
	IncidentTime    string `json:"incident_time"`
	Thumbnail       string `json:"thumbnail,omitempty"`
}

type queryReply struct {
	Function string          `json:"function"`
	Records  []incidentReply `json:"records"`
}

type videoReply struct {
	Function        string   `json:"function"`
	CameraID        int      `json:"camera_id"`
	StartingFrameID int      `json:"starting_frame_id"`
	Frames          []string `json:"frames"`
}

type errorReply struct {
	Function string `json:"function"`
	Error    string `json:"error"`
}

// OperatorSocketHandler serves operator clients: it registers the connection
// for incident push notifications and answers SEARCH, RECENT_INCIDENTS and
// REQ_VIDEO requests. Storage failures produce an explicit error reply; a
// query matching nothing produces an empty record list.
func OperatorSocketHandler(orch *pipeline.Orchestrator, hub *ws.Hub, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("operator websocket upgrade failed: %v", err)
			return
		}

		hub.Register(conn)
		defer hub.Unregister(conn)

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}

			msg, err := pipeline.DecodeWire(payload)
			if err != nil {
				log.Error("discarding malformed operator message: %v", err)
				sendJSON(hub, conn, log, errorReply{Function: "ERROR", Error: "malformed request"})
				continue
			}

			switch msg.Stage {
			case pipeline.StageSearch:
				views, err := orch.Search(msg)
				replyViews(hub, conn, log, "SEARCH_RESULT", views, err)
			case pipeline.StageRecentIncidents:
				views, err := orch.Recent()
				replyViews(hub, conn, log, "RECENT_INCIDENTS_RESULT", views, err)
			case pipeline.StageReqVideo:
				frames, err := orch.Video(msg.CameraID, msg.StartOffset)
				if err != nil {
					log.Error("video request failed for camera %d offset %d: %v", msg.CameraID, msg.StartOffset, err)
					sendJSON(hub, conn, log, errorReply{Function: "ERROR", Error: "video unavailable"})
					break
				}
				reply := videoReply{
					Function:        "VIDEO",
					CameraID:        msg.CameraID,
					StartingFrameID: msg.StartOffset,
					Frames:          make([]string, 0, len(frames)),
				}
				for _, frame := range frames {
					reply.Frames = append(reply.Frames, base64.StdEncoding.EncodeToString(frame))
				}
				sendJSON(hub, conn, log, reply)
			default:
				log.Warning("operator sent unsupported function %q", msg.Stage)
				sendJSON(hub, conn, log, errorReply{Function: "ERROR", Error: "unsupported function"})
			}
			msg.Close()
		}
	}
}

func replyViews(hub *ws.Hub, conn *websocket.Conn, log *logger.Logger, function string, views []pipeline.IncidentView, err error) {
	if err != nil {
		log.Error("%s query failed: %v", function, err)
		sendJSON(hub, conn, log, errorReply{Function: "ERROR", Error: "query failed"})
		return
	}

	reply := queryReply{Function: function, Records: make([]incidentReply, 0, len(views))}
	for _, v := range views {
		reply.Records = append(reply.Records, incidentReply{
			CameraID:        v.CameraID,
			StartingFrameID: v.FrameID,
			City:            v.City,
			District:        v.District,
			IncidentTime:    v.IncidentTime,
			Thumbnail:       base64.StdEncoding.EncodeToString(v.Thumbnail),
		})
	}
	sendJSON(hub, conn, log, reply)
}

func sendJSON(hub *ws.Hub, conn *websocket.Conn, log *logger.Logger, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error("failed to encode reply: %v", err)
		return
	}
	if err := hub.Send(conn, payload); err != nil {
		log.Error("failed to send reply: %v", err)
	}
}
