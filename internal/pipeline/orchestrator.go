package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"crashwatch/internal/capability"
	"crashwatch/internal/highlight"
	"crashwatch/internal/logger"
	"crashwatch/internal/metrics"
	"crashwatch/internal/model"
	"crashwatch/internal/query"
	"crashwatch/internal/store"
)

// SegmentWriter persists raw frame batches.
type SegmentWriter interface {
	WriteSegment(cameraID, offset int, frames []gocv.Mat, width, height int) error
}

// VideoSource streams stored highlight clips.
type VideoSource interface {
	ReadIncident(cameraID, offset int) ([]gocv.Mat, error)
}

// Reconstructor builds the highlight clip for a confirmed incident.
type Reconstructor interface {
	Reconstruct(cameraID, trigger int, box model.Box) error
}

// ThumbnailSource resolves incident thumbnails, (nil, nil) meaning none.
type ThumbnailSource interface {
	Thumbnail(cameraID, offset int) ([]byte, error)
}

// ImageStore persists incident thumbnails plus metadata.
type ImageStore interface {
	Upsert(rec model.IncidentRecord, image []byte) error
}

// RecordLedger is the durable incident metadata log.
type RecordLedger interface {
	Append(rec model.IncidentRecord) error
	Records() []model.IncidentRecord
}

// Notifier delivers incident alerts. Alert failures never block persistence,
// which has already completed by the time it is called.
type Notifier interface {
	Alert(cameraID int, city, district string, offset int, thumbnail []byte) error
}

// Deps collects the collaborators of the orchestrator.
type Deps struct {
	Segments SegmentWriter
	Videos   VideoSource
	Recon    Reconstructor
	Thumbs   ThumbnailSource
	Images   ImageStore
	Ledger   RecordLedger
	Notifier Notifier

	Detector capability.Detector
	Tracker  capability.Tracker
	Impact   capability.Impact

	Metrics *metrics.Metrics
	Log     *logger.Logger
}

// cameraStats is the per-camera throughput accounting: the highest frame
// count observed and the accumulated capability time across all stages.
type cameraStats struct {
	frames int
	total  time.Duration
}

// Orchestrator dispatches tagged messages through the analysis stages and
// owns per-camera throughput accounting.
type Orchestrator struct {
	deps Deps

	statsMu sync.Mutex
	stats   map[int]*cameraStats

	now func() time.Time
}

// New returns an Orchestrator over the given collaborators.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:  deps,
		stats: make(map[int]*cameraStats),
		now:   time.Now,
	}
}

// Process handles one tagged message. Stage handlers forward to the next
// stage with a direct synchronous call, so a FEED message runs the whole
// traversal before Process returns. Unrecognized tags are counted and
// ignored; nothing here may take the process down.
func (o *Orchestrator) Process(msg *Message) {
	o.deps.Metrics.IncTraversals(msg.Stage)

	if err := msg.validate(); err != nil {
		o.drop(msg, err)
		return
	}

	switch msg.Stage {
	case StageFeed:
		o.feed(msg)
	case StageDetect:
		o.detect(msg)
	case StageTrack:
		o.track(msg)
	case StageCrash:
		o.crash(msg)
	case StageResult:
		o.result(msg)
	case StageSearch, StageRecentIncidents, StageReqVideo:
		// Query operations bypass the stage chain; operator handlers call
		// Search, Recent and Video directly for their replies.
	default:
		o.deps.Metrics.IncUnknownStage()
		o.deps.Log.Warning("unknown stage tag %q from camera %d ignored", msg.Stage, msg.CameraID)
	}
}

func (o *Orchestrator) forward(msg *Message, stage string) {
	msg.Stage = stage
	o.Process(msg)
}

func (o *Orchestrator) drop(msg *Message, err error) {
	o.deps.Metrics.IncDropped()
	o.deps.Log.Error("traversal dropped at %s for camera %d offset %d: %v",
		msg.Stage, msg.CameraID, msg.StartOffset, err)
}

// feed persists the batch and forwards it unchanged to detection.
func (o *Orchestrator) feed(msg *Message) {
	err := o.deps.Segments.WriteSegment(msg.CameraID, msg.StartOffset, msg.Frames, msg.Width, msg.Height)
	if err != nil {
		o.drop(msg, err)
		return
	}
	o.forward(msg, StageDetect)
}

// detect runs the detection capability and forwards the boxes to tracking.
func (o *Orchestrator) detect(msg *Message) {
	start := o.now()
	boxes, err := o.deps.Detector.Detect(msg.Frames, msg.Width, msg.Height, msg.UsePrecomputed, msg.BoxesSource)
	if err != nil {
		o.drop(msg, err)
		return
	}
	msg.DetectStart, msg.DetectEnd = start, o.now()
	msg.Boxes = boxes

	o.account("detect", msg, msg.DetectEnd.Sub(start))
	o.forward(msg, StageTrack)
}

// track runs the tracking capability; the detect timing window travels on
// the message unchanged.
func (o *Orchestrator) track(msg *Message) {
	start := o.now()
	tracks, err := o.deps.Tracker.Track(msg.Frames, msg.Boxes, msg.Width, msg.Height)
	if err != nil {
		o.drop(msg, err)
		return
	}
	msg.TrackStart, msg.TrackEnd = start, o.now()
	msg.Tracks = tracks

	o.account("track", msg, msg.TrackEnd.Sub(start))
	o.forward(msg, StageCrash)
}

// crash runs impact analysis and forwards the geometry (or nil) to result.
func (o *Orchestrator) crash(msg *Message) {
	start := o.now()
	geometry, repFrame, err := o.deps.Impact.Analyze(msg.Frames, msg.Tracks)
	if err != nil {
		o.drop(msg, err)
		return
	}
	end := o.now()
	msg.CrashStart = start
	msg.Geometry = geometry
	msg.RepFrame = repFrame

	o.account("crash", msg, end.Sub(start))
	o.deps.Log.Info("camera %d offset %d end-to-end stage latency %v",
		msg.CameraID, msg.StartOffset, end.Sub(msg.DetectStart))
	o.forward(msg, StageResult)
}

// result persists the incident: highlight clip, image store row, ledger
// record, then the alert. Empty geometry means no incident and is a no-op.
func (o *Orchestrator) result(msg *Message) {
	if msg.Geometry == nil || msg.Geometry.Empty() {
		return
	}

	err := o.deps.Recon.Reconstruct(msg.CameraID, msg.StartOffset, *msg.Geometry)
	reconstructed := true
	if errors.Is(err, highlight.ErrNoSegments) {
		reconstructed = false
		o.deps.Log.Warning("no segments for incident at camera %d offset %d, using placeholder thumbnail",
			msg.CameraID, msg.StartOffset)
	} else if err != nil {
		o.drop(msg, err)
		return
	}

	rec := model.IncidentRecord{
		CameraID:     msg.CameraID,
		FrameID:      msg.StartOffset,
		Segments:     model.DefaultSegmentCount,
		City:         msg.City,
		District:     msg.District,
		IncidentTime: o.now().UTC().Format(model.TimeLayout),
	}

	thumbnail, err := o.resolveThumbnail(msg, rec, reconstructed)
	if err != nil {
		o.drop(msg, err)
		return
	}

	if err := o.deps.Images.Upsert(rec, thumbnail); err != nil {
		o.drop(msg, err)
		return
	}
	if err := o.deps.Ledger.Append(rec); err != nil {
		o.drop(msg, err)
		return
	}
	o.deps.Metrics.IncIncidents()
	o.deps.Log.Info("incident recorded for camera %d offset %d at %s in %s, %s",
		rec.CameraID, rec.FrameID, rec.IncidentTime, rec.City, rec.District)

	if err := o.deps.Notifier.Alert(rec.CameraID, rec.City, rec.District, rec.FrameID, thumbnail); err != nil {
		o.deps.Log.Error("alert delivery failed for camera %d offset %d: %v", rec.CameraID, rec.FrameID, err)
	}
}

// resolveThumbnail picks the incident thumbnail: the representative frame
// from impact analysis, then a clip-derived frame, then the placeholder card.
func (o *Orchestrator) resolveThumbnail(msg *Message, rec model.IncidentRecord, reconstructed bool) ([]byte, error) {
	if msg.RepFrame != nil && !msg.RepFrame.Empty() {
		return store.EncodeJPEG(*msg.RepFrame)
	}

	if reconstructed {
		thumb, err := o.deps.Thumbs.Thumbnail(msg.CameraID, msg.StartOffset)
		if err != nil {
			return nil, err
		}
		if thumb != nil {
			return thumb, nil
		}
	}

	return highlight.PlaceholderThumbnail(msg.CameraID, msg.StartOffset, rec.City, rec.District, rec.IncidentTime)
}

// account folds one capability invocation into the per-camera counters and
// logs the running average. The frame count is the highest frame offset the
// camera has reached; a lower count than recorded means the camera id was
// rebound to a restarted stream, which resets the baseline but keeps the
// accumulated time.
func (o *Orchestrator) account(stage string, msg *Message, elapsed time.Duration) {
	frameCount := msg.StartOffset + len(msg.Frames)

	o.statsMu.Lock()
	st := o.stats[msg.CameraID]
	if st == nil {
		st = &cameraStats{}
		o.stats[msg.CameraID] = st
	}
	if frameCount < st.frames {
		o.deps.Log.Warning("camera %d frame count went backwards (%d -> %d), resetting offset baseline",
			msg.CameraID, st.frames, frameCount)
	}
	st.frames = frameCount
	st.total += elapsed
	frames, total := st.frames, st.total
	o.statsMu.Unlock()

	o.deps.Metrics.ObserveStage(stage, elapsed)
	o.deps.Log.Info("avg %s time camera %d: %v (total %v over %d frames)",
		stage, msg.CameraID, total/time.Duration(frames), total, frames)
}

// CameraStats returns the recorded frame count and accumulated stage time
// for a camera.
func (o *Orchestrator) CameraStats(cameraID int) (frames int, total time.Duration, ok bool) {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	st := o.stats[cameraID]
	if st == nil {
		return 0, 0, false
	}
	return st.frames, st.total, true
}

// IncidentView is one row of an operator query reply.
type IncidentView struct {
	CameraID     int    `json:"camera_id"`
	FrameID      int    `json:"starting_frame_id"`
	City         string `json:"city"`
	District     string `json:"district"`
	IncidentTime string `json:"incident_time"`
	Thumbnail    []byte `json:"thumbnail,omitempty"`
}

// Search answers a SEARCH message against the ledger, bypassing the stage
// chain. Malformed date or time input disables the range filter.
func (o *Orchestrator) Search(msg *Message) ([]IncidentView, error) {
	f := query.Filter{
		City:     msg.City,
		District: msg.District,
		Start:    query.Normalize(msg.StartDate, msg.StartTime),
		End:      query.Normalize(msg.EndDate, msg.EndTime),
	}
	return o.views(query.Search(o.deps.Ledger.Records(), f))
}

// Recent answers a RECENT_INCIDENTS message: the ten most recent incidents,
// all filters ignored.
func (o *Orchestrator) Recent() ([]IncidentView, error) {
	return o.views(query.Recent(o.deps.Ledger.Records()))
}

func (o *Orchestrator) views(records []model.IncidentRecord) ([]IncidentView, error) {
	views := make([]IncidentView, 0, len(records))
	for _, rec := range records {
		thumb, err := o.deps.Thumbs.Thumbnail(rec.CameraID, rec.FrameID)
		if err != nil {
			return nil, fmt.Errorf("thumbnail lookup failed for (%d, %d): %w", rec.CameraID, rec.FrameID, err)
		}
		views = append(views, IncidentView{
			CameraID:     rec.CameraID,
			FrameID:      rec.FrameID,
			City:         rec.City,
			District:     rec.District,
			IncidentTime: rec.IncidentTime,
			Thumbnail:    thumb,
		})
	}
	return views, nil
}

// Video answers a REQ_VIDEO message with the JPEG-encoded frames of the
// stored highlight clip.
func (o *Orchestrator) Video(cameraID, offset int) ([][]byte, error) {
	frames, err := o.deps.Videos.ReadIncident(cameraID, offset)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range frames {
			frames[i].Close()
		}
	}()

	encoded := make([][]byte, 0, len(frames))
	for i := range frames {
		jpeg, err := store.EncodeJPEG(frames[i])
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, jpeg)
	}
	return encoded, nil
}
