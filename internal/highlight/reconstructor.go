// Package highlight reconstructs bounded before/after incident clips from
// previously stored segments and burns a visual marker into them.
package highlight

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"crashwatch/internal/logger"
	"crashwatch/internal/model"
	"crashwatch/internal/store"
)

// Label is the text burned into marked frames.
const Label = "Incident"

// ErrNoSegments reports that no stored segment could be read for the
// requested window, so reconstruction is impossible. It is distinct from
// storage failures so callers can choose a placeholder policy.
var ErrNoSegments = errors.New("no usable segments for highlight clip")

// Store is the segment persistence the reconstructor needs.
type Store interface {
	ReadSegment(cameraID, offset int) ([]gocv.Mat, error)
	WriteIncident(cameraID, offset int, frames []gocv.Mat, width, height int) error
}

// Reconstructor assembles highlight clips from buffered segments.
type Reconstructor struct {
	store Store
	log   *logger.Logger
}

// NewReconstructor returns a Reconstructor over the given segment store.
func NewReconstructor(s Store, log *logger.Logger) *Reconstructor {
	return &Reconstructor{store: s, log: log}
}

// Reconstruct assembles the highlight clip for an incident triggered at the
// given frame offset, burns the incident rectangle into the marked ranges,
// and writes the clip to the incidents namespace under the same key.
func (r *Reconstructor) Reconstruct(cameraID, trigger int, box model.Box) error {
	var frames []gocv.Mat
	defer func() { closeFrames(frames) }()

	for _, offset := range walkOffsets(trigger) {
		segment, err := r.store.ReadSegment(cameraID, offset)
		if errors.Is(err, store.ErrClipNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read segment (%d, %d): %w", cameraID, offset, err)
		}
		frames = append(frames, segment...)
	}

	if len(frames) == 0 {
		return ErrNoSegments
	}

	width := frames[0].Cols()
	height := frames[0].Rows()
	if width == 0 || height == 0 {
		return fmt.Errorf("segment (%d, %d) has zero-dimension frames", cameraID, trigger)
	}

	for _, mk := range markPlan(len(frames)) {
		if err := drawMark(&frames[mk.index], box, mk.filled); err != nil {
			return fmt.Errorf("failed to mark frame %d: %w", mk.index, err)
		}
	}

	if err := r.store.WriteIncident(cameraID, trigger, frames, width, height); err != nil {
		return err
	}

	r.log.Info("highlight clip written for camera %d offset %d (%d frames)", cameraID, trigger, len(frames))
	return nil
}

// walkOffsets returns the starting offsets of the window's segments in
// chronological order: the pre-segments, then the trigger segment. Offsets
// before the stream start are skipped.
func walkOffsets(trigger int) []int {
	offsets := make([]int, 0, model.PreSegments+1)
	for k := model.PreSegments; k >= 0; k-- {
		offset := trigger - k*model.SegmentStride
		if offset < 0 {
			continue
		}
		offsets = append(offsets, offset)
	}
	return offsets
}

// mark tells which frame index to mark and with which draw style.
type mark struct {
	index  int
	filled bool
}

// markPlan computes the burn-in schedule for a clip of n frames. When the
// clip covers at least two segments beyond the final one, every 6th frame of
// the approach window [n-60, n-30) gets a filled mark. The final 30 frames
// (or all of a shorter clip) alternate filled and outlined by frame parity.
func markPlan(n int) []mark {
	var plan []mark

	if n >= 60 {
		for i := n - 60; i < n-30; i += 6 {
			plan = append(plan, mark{index: i, filled: true})
		}
	}

	start := n - 30
	if start < 0 {
		start = 0
	}
	for i := start; i < n; i++ {
		plan = append(plan, mark{index: i, filled: i%2 == 0})
	}
	return plan
}

func drawMark(frame *gocv.Mat, box model.Box, filled bool) error {
	red := color.RGBA{R: 255}
	thickness := 2
	if filled {
		thickness = -1
	}

	rect := image.Rect(box.XMin, box.YMin, box.XMax, box.YMax)
	if err := gocv.Rectangle(frame, rect, red, thickness); err != nil {
		return err
	}
	return gocv.PutText(frame, Label, image.Pt(12, 40), gocv.FontHersheySimplex, 1.0, red, 4)
}

func closeFrames(frames []gocv.Mat) {
	for i := range frames {
		frames[i].Close()
	}
}
