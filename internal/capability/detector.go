// Package capability holds the pluggable analysis algorithms the pipeline
// treats as black boxes: vehicle detection, multi-object tracking and impact
// analysis. Each has variants selected once at construction and invoked
// uniformly thereafter.
package capability

import (
	"encoding/json"
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"crashwatch/internal/logger"
	"crashwatch/internal/model"
)

const detectionThreshold = 0.5

// COCO class ids of vehicle-like objects for the SSD MobileNet model.
var vehicleClasses = map[int]bool{
	2: true, // bicycle
	3: true, // car
	4: true, // motorcycle
	6: true, // bus
	8: true, // truck
}

// Detector produces per-frame vehicle boxes for a frame batch.
type Detector interface {
	Detect(frames []gocv.Mat, width, height int, usePrecomputed bool, boxesSource string) ([][]model.Box, error)
}

// NewDetector selects a detector variant: "model" (DNN), "file"
// (pre-computed boxes) or "null".
func NewDetector(kind, modelPath, configPath string, log *logger.Logger) (Detector, error) {
	switch kind {
	case "model":
		return newDNNDetector(modelPath, configPath, log)
	case "file":
		return FileDetector{}, nil
	case "null":
		return NullDetector{}, nil
	default:
		return nil, errors.Errorf("unknown detector kind %q", kind)
	}
}

// NullDetector reports no vehicles in any frame.
type NullDetector struct{}

func (NullDetector) Detect(frames []gocv.Mat, _, _ int, _ bool, _ string) ([][]model.Box, error) {
	return make([][]model.Box, len(frames)), nil
}

// FileDetector reads pre-computed per-frame boxes from a JSON file.
type FileDetector struct{}

func (FileDetector) Detect(frames []gocv.Mat, _, _ int, _ bool, boxesSource string) ([][]model.Box, error) {
	return readBoxesFile(boxesSource, len(frames))
}

func readBoxesFile(path string, frameCount int) ([][]model.Box, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read boxes file")
	}

	var boxes [][]model.Box
	if err := json.Unmarshal(data, &boxes); err != nil {
		return nil, errors.Wrap(err, "failed to parse boxes file")
	}

	// Pad so every frame has a (possibly empty) box list.
	for len(boxes) < frameCount {
		boxes = append(boxes, nil)
	}
	return boxes, nil
}

// DNNDetector runs an SSD network over every frame. Forward passes are
// serialized; gocv networks are not safe for concurrent use.
type DNNDetector struct {
	net gocv.Net
	mu  sync.Mutex
	log *logger.Logger
}

func newDNNDetector(modelPath, configPath string, log *logger.Logger) (*DNNDetector, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, errors.Errorf("model file not found: %s", modelPath)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.Errorf("model config file not found: %s", configPath)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, errors.New("failed to load detection network")
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		return nil, errors.Wrap(err, "failed to set network backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		return nil, errors.Wrap(err, "failed to set network target")
	}

	log.Info("detection network loaded from %s", modelPath)
	return &DNNDetector{net: net, log: log}, nil
}

// Detect runs the network per frame. When usePrecomputed is set the boxes
// source file is used instead, bypassing the network entirely.
func (d *DNNDetector) Detect(frames []gocv.Mat, width, height int, usePrecomputed bool, boxesSource string) ([][]model.Box, error) {
	if usePrecomputed {
		return readBoxesFile(boxesSource, len(frames))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	boxes := make([][]model.Box, len(frames))
	for i := range frames {
		frameBoxes, err := d.detectFrame(frames[i], width, height)
		if err != nil {
			return nil, errors.Wrapf(err, "detection failed on frame %d", i)
		}
		boxes[i] = frameBoxes
	}
	return boxes, nil
}

func (d *DNNDetector) detectFrame(frame gocv.Mat, width, height int) ([]model.Box, error) {
	blob := gocv.BlobFromImage(frame, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	var boxes []model.Box
	detections := output.Reshape(1, output.Total()/7)
	defer detections.Close()

	for i := 0; i < detections.Rows(); i++ {
		confidence := detections.GetFloatAt(i, 2)
		if confidence <= detectionThreshold {
			continue
		}
		classID := int(detections.GetFloatAt(i, 1))
		if !vehicleClasses[classID] {
			continue
		}

		box := model.Box{
			XMin: clamp(int(detections.GetFloatAt(i, 3)*float32(width)), 0, width),
			YMin: clamp(int(detections.GetFloatAt(i, 4)*float32(height)), 0, height),
			XMax: clamp(int(detections.GetFloatAt(i, 5)*float32(width)), 0, width),
			YMax: clamp(int(detections.GetFloatAt(i, 6)*float32(height)), 0, height),
		}
		if !box.Empty() {
			boxes = append(boxes, box)
		}
	}
	return boxes, nil
}

// Close releases the network.
func (d *DNNDetector) Close() error {
	return d.net.Close()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
