package model

// TimeLayout is the storage format for incident timestamps (UTC, second
// precision). String comparison on this layout matches chronological order.
const TimeLayout = "2006-01-02 15:04:05"

const (
	// SegmentStride is the number of frames between stored segment boundaries.
	SegmentStride = 30
	// PreSegments is how many segments before the trigger segment a highlight
	// clip reaches back.
	PreSegments = 3
	// DefaultSegmentCount is the segment count recorded for incidents whose
	// ledger entry had to be synthesized from the image store.
	DefaultSegmentCount = PreSegments + 1
)

// IncidentKey uniquely identifies an incident: one camera, one starting
// frame offset. A later incident with the same key replaces the earlier one.
type IncidentKey struct {
	CameraID int
	FrameID  int
}

// IncidentRecord is the durable metadata for one detected incident.
// Records are immutable once written; replays for the same key overwrite.
type IncidentRecord struct {
	CameraID     int    `json:"camera_id"`
	FrameID      int    `json:"frame_id"`
	Segments     int    `json:"segments"`
	City         string `json:"city"`
	District     string `json:"district"`
	IncidentTime string `json:"incident_time"`
}

// Key returns the unique (camera, starting frame) key for the record.
func (r IncidentRecord) Key() IncidentKey {
	return IncidentKey{CameraID: r.CameraID, FrameID: r.FrameID}
}
