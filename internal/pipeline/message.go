package pipeline

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"crashwatch/internal/model"
)

// Stage tags carried by pipeline messages.
const (
	StageFeed            = "FEED"
	StageDetect          = "DETECT"
	StageTrack           = "TRACK"
	StageCrash           = "CRASH"
	StageResult          = "RESULT"
	StageSearch          = "SEARCH"
	StageReqVideo        = "REQ_VIDEO"
	StageRecentIncidents = "RECENT_INCIDENTS"
)

// Message is one tagged pipeline message. A single Message travels the whole
// FEED→RESULT traversal; stage handlers attach their outputs and forward it
// with the next tag. Timing windows accumulate on the message for end-to-end
// latency accounting.
type Message struct {
	Stage string

	CameraID    int
	StartOffset int
	Frames      []gocv.Mat
	Width       int
	Height      int

	UsePrecomputed bool
	BoxesSource    string
	City           string
	District       string

	Boxes    [][]model.Box
	Tracks   []model.TrackRecord
	Geometry *model.Box
	RepFrame *gocv.Mat

	DetectStart time.Time
	DetectEnd   time.Time
	TrackStart  time.Time
	TrackEnd    time.Time
	CrashStart  time.Time

	// Query fields (SEARCH only).
	StartDate string
	EndDate   string
	StartTime string
	EndTime   string
}

// Close releases the frame data owned by the message.
func (m *Message) Close() {
	for i := range m.Frames {
		m.Frames[i].Close()
	}
	m.Frames = nil
	if m.RepFrame != nil {
		m.RepFrame.Close()
		m.RepFrame = nil
	}
}

// wireMessage is the JSON envelope exchanged with capture nodes and operator
// clients. Frames are base64-encoded JPEGs.
type wireMessage struct {
	Function        string   `json:"function"`
	CameraID        int      `json:"camera_id"`
	StartingFrameID int      `json:"starting_frame_id"`
	Frames          []string `json:"frames,omitempty"`
	FrameWidth      int      `json:"frame_width,omitempty"`
	FrameHeight     int      `json:"frame_height,omitempty"`
	ReadFile        bool     `json:"read_file,omitempty"`
	BoxesSource     string   `json:"boxes_source,omitempty"`
	City            string   `json:"city,omitempty"`
	District        string   `json:"district,omitempty"`
	StartDate       string   `json:"start_date,omitempty"`
	EndDate         string   `json:"end_date,omitempty"`
	StartTime       string   `json:"start_time,omitempty"`
	EndTime         string   `json:"end_time,omitempty"`
}

// DecodeWire parses a JSON wire payload into a Message, decoding any frames.
// The caller owns the returned Message and must Close it after processing.
func DecodeWire(payload []byte) (*Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	msg := &Message{
		Stage:          wire.Function,
		CameraID:       wire.CameraID,
		StartOffset:    wire.StartingFrameID,
		Width:          wire.FrameWidth,
		Height:         wire.FrameHeight,
		UsePrecomputed: wire.ReadFile,
		BoxesSource:    wire.BoxesSource,
		City:           wire.City,
		District:       wire.District,
		StartDate:      wire.StartDate,
		EndDate:        wire.EndDate,
		StartTime:      wire.StartTime,
		EndTime:        wire.EndTime,
	}

	for i, encoded := range wire.Frames {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			msg.Close()
			return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
		}
		frame, err := gocv.IMDecode(raw, gocv.IMReadColor)
		if err != nil {
			msg.Close()
			return nil, fmt.Errorf("failed to decode frame %d image: %w", i, err)
		}
		msg.Frames = append(msg.Frames, frame)
	}

	return msg, nil
}

// validate checks the required-field set for the message's stage tag.
func (m *Message) validate() error {
	switch m.Stage {
	case StageFeed, StageDetect:
		if err := m.validateBatch(); err != nil {
			return err
		}
		if m.UsePrecomputed && m.BoxesSource == "" {
			return fmt.Errorf("%s message with read_file set has no boxes source", m.Stage)
		}
	case StageTrack:
		if err := m.validateBatch(); err != nil {
			return err
		}
		if m.Boxes == nil {
			return fmt.Errorf("TRACK message has no boxes")
		}
	case StageCrash:
		if len(m.Frames) == 0 {
			return fmt.Errorf("CRASH message has no frames")
		}
		if m.City == "" || m.District == "" {
			return fmt.Errorf("CRASH message has no origin tag")
		}
		if m.DetectStart.IsZero() || m.DetectEnd.IsZero() {
			return fmt.Errorf("CRASH message has no detect timing window")
		}
	case StageResult:
		if m.City == "" || m.District == "" {
			return fmt.Errorf("RESULT message has no origin tag")
		}
	}
	return nil
}

func (m *Message) validateBatch() error {
	if len(m.Frames) == 0 {
		return fmt.Errorf("%s message has no frames", m.Stage)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%s message has invalid dimensions %dx%d", m.Stage, m.Width, m.Height)
	}
	if m.City == "" || m.District == "" {
		return fmt.Errorf("%s message has no origin tag", m.Stage)
	}
	return nil
}
