package capability

import (
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"crashwatch/internal/model"
)

// Impact decides whether a frame batch contains a collision. It returns the
// impact region and optionally a representative frame, or nil geometry for
// "no incident".
type Impact interface {
	Analyze(frames []gocv.Mat, tracks []model.TrackRecord) (*model.Box, *gocv.Mat, error)
}

// NewImpact selects an impact-analysis variant: "heuristic" or "null".
func NewImpact(kind string) (Impact, error) {
	switch kind {
	case "heuristic":
		return &HeuristicImpact{minApproachSpeed: 3.0}, nil
	case "null":
		return NullImpact{}, nil
	default:
		return nil, errors.Errorf("unknown impact-analysis kind %q", kind)
	}
}

// NullImpact never reports an incident.
type NullImpact struct{}

func (NullImpact) Analyze(_ []gocv.Mat, _ []model.TrackRecord) (*model.Box, *gocv.Mat, error) {
	return nil, nil, nil
}

// HeuristicImpact flags a collision when two tracked objects end the batch
// overlapping after closing in on each other faster than minApproachSpeed
// pixels per frame. The representative frame is the middle of the batch.
type HeuristicImpact struct {
	minApproachSpeed float64
}

func (h *HeuristicImpact) Analyze(frames []gocv.Mat, tracks []model.TrackRecord) (*model.Box, *gocv.Mat, error) {
	for i := 0; i < len(tracks); i++ {
		for j := i + 1; j < len(tracks); j++ {
			a, b := tracks[i], tracks[j]
			if !a.LastBox.Intersects(b.LastBox) {
				continue
			}
			if approachSpeed(a.Trajectory, b.Trajectory) < h.minApproachSpeed {
				continue
			}

			region := a.LastBox.Union(b.LastBox)
			var rep *gocv.Mat
			if len(frames) > 0 {
				frame := frames[len(frames)/2].Clone()
				rep = &frame
			}
			return &region, rep, nil
		}
	}
	return nil, nil, nil
}

// approachSpeed is the average per-frame shrink of the distance between two
// trajectories over their shared tail.
func approachSpeed(a, b []model.Point) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}

	first := distance(a[len(a)-n], b[len(b)-n])
	last := distance(a[len(a)-1], b[len(b)-1])
	return (first - last) / float64(n-1)
}

func distance(p, q model.Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}
