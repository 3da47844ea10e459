package capability

import (
	"sort"

	"github.com/LdDl/mot-go/mot"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"crashwatch/internal/model"
)

// Tracker turns per-frame detection boxes into per-object trajectories.
type Tracker interface {
	Track(frames []gocv.Mat, boxes [][]model.Box, width, height int) ([]model.TrackRecord, error)
}

// NewTracker selects a tracker variant: "iou" or "null".
func NewTracker(kind string) (Tracker, error) {
	switch kind {
	case "iou":
		return &IoUTracker{maxNoMatch: 15, iouThreshold: 0.0}, nil
	case "null":
		return NullTracker{}, nil
	default:
		return nil, errors.Errorf("unknown tracker kind %q", kind)
	}
}

// NullTracker reports no tracked objects.
type NullTracker struct{}

func (NullTracker) Track(_ []gocv.Mat, _ [][]model.Box, _, _ int) ([]model.TrackRecord, error) {
	return nil, nil
}

// IoUTracker matches boxes frame-to-frame with IoU plus a Kalman-predicted
// distance fallback. Each Track call runs a fresh matcher over one batch;
// object identity does not persist across batches.
type IoUTracker struct {
	maxNoMatch   int
	iouThreshold float64
}

func (t *IoUTracker) Track(_ []gocv.Mat, boxes [][]model.Box, _, _ int) ([]model.TrackRecord, error) {
	tracker := mot.NewIoUTracker[*mot.SimpleBlob](t.maxNoMatch, t.iouThreshold)

	for _, frameBoxes := range boxes {
		blobs := make([]*mot.SimpleBlob, 0, len(frameBoxes))
		for _, box := range frameBoxes {
			blobs = append(blobs, mot.NewSimpleBlob(mot.Rectangle{
				X:      float64(box.XMin),
				Y:      float64(box.YMin),
				Width:  float64(box.XMax - box.XMin),
				Height: float64(box.YMax - box.YMin),
			}))
		}
		if err := tracker.MatchObjects(blobs); err != nil {
			return nil, errors.Wrap(err, "object matching failed")
		}
	}

	records := make([]model.TrackRecord, 0, len(tracker.Objects))
	for id, blob := range tracker.Objects {
		bbox := blob.GetBBox()
		rec := model.TrackRecord{
			ObjectID: id.String(),
			LastBox: model.Box{
				XMin: int(bbox.X),
				YMin: int(bbox.Y),
				XMax: int(bbox.X + bbox.Width),
				YMax: int(bbox.Y + bbox.Height),
			},
		}
		for _, pt := range blob.GetTrack() {
			rec.Trajectory = append(rec.Trajectory, model.Point{X: pt.X, Y: pt.Y})
		}
		records = append(records, rec)
	}

	// Map iteration order is random; keep output deterministic.
	sort.Slice(records, func(i, j int) bool { return records[i].ObjectID < records[j].ObjectID })
	return records, nil
}
