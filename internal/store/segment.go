package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

const (
	clipFPS   = 30
	clipCodec = "MJPG"

	segmentNamespace  = "segments"
	incidentNamespace = "incidents"

	// thumbnailFrame is the frame index sampled from an incident clip when no
	// stored thumbnail exists.
	thumbnailFrame = 89
)

// ErrClipNotFound reports that no clip is stored under the requested key.
// Callers treat it as a missing-key condition, distinct from I/O failures.
var ErrClipNotFound = errors.New("clip not found")

// SegmentStore persists raw frame runs and reconstructed highlight clips as
// playable files, keyed by (camera id, starting frame offset). Raw segments
// and highlight clips live in separate namespaces.
type SegmentStore struct {
	baseDir string
}

// NewSegmentStore creates the namespace directories under baseDir.
func NewSegmentStore(baseDir string) (*SegmentStore, error) {
	for _, ns := range []string{segmentNamespace, incidentNamespace} {
		if err := os.MkdirAll(filepath.Join(baseDir, ns), 0755); err != nil {
			return nil, fmt.Errorf("failed to create clip directory: %w", err)
		}
	}
	return &SegmentStore{baseDir: baseDir}, nil
}

func (s *SegmentStore) clipPath(namespace string, cameraID, offset int) string {
	return filepath.Join(s.baseDir, namespace, fmt.Sprintf("(%d) %d.avi", cameraID, offset))
}

// WriteSegment stores a raw frame batch under the segments namespace.
// Writing the same key again replaces the clip, last writer wins.
func (s *SegmentStore) WriteSegment(cameraID, offset int, frames []gocv.Mat, width, height int) error {
	return s.write(segmentNamespace, cameraID, offset, frames, width, height)
}

// WriteIncident stores a highlight clip under the incidents namespace.
func (s *SegmentStore) WriteIncident(cameraID, offset int, frames []gocv.Mat, width, height int) error {
	return s.write(incidentNamespace, cameraID, offset, frames, width, height)
}

func (s *SegmentStore) write(namespace string, cameraID, offset int, frames []gocv.Mat, width, height int) error {
	path := s.clipPath(namespace, cameraID, offset)

	writer, err := gocv.VideoWriterFile(path, clipCodec, clipFPS, width, height, true)
	if err != nil {
		return fmt.Errorf("failed to open clip writer %s: %w", path, err)
	}
	defer writer.Close()

	for i := range frames {
		if err := writer.Write(frames[i]); err != nil {
			return fmt.Errorf("failed to write frame %d of %s: %w", i, path, err)
		}
	}
	return nil
}

// ReadSegment returns all frames of one raw segment in order. The caller owns
// the returned Mats and must close them.
func (s *SegmentStore) ReadSegment(cameraID, offset int) ([]gocv.Mat, error) {
	return s.read(segmentNamespace, cameraID, offset)
}

// ReadIncident returns all frames of one highlight clip in order.
func (s *SegmentStore) ReadIncident(cameraID, offset int) ([]gocv.Mat, error) {
	return s.read(incidentNamespace, cameraID, offset)
}

func (s *SegmentStore) read(namespace string, cameraID, offset int) ([]gocv.Mat, error) {
	path := s.clipPath(namespace, cameraID, offset)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrClipNotFound, path)
	}

	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open clip %s: %w", path, err)
	}
	defer capture.Close()

	var frames []gocv.Mat
	for {
		frame := gocv.NewMat()
		if ok := capture.Read(&frame); !ok {
			frame.Close()
			break
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// IncidentThumbnail samples a single JPEG-encoded frame from a highlight
// clip: frame 90 of the clip, or the last frame of shorter clips.
func (s *SegmentStore) IncidentThumbnail(cameraID, offset int) ([]byte, error) {
	path := s.clipPath(incidentNamespace, cameraID, offset)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrClipNotFound, path)
	}

	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open clip %s: %w", path, err)
	}
	defer capture.Close()

	total := int(capture.Get(gocv.VideoCaptureFrameCount))
	frameNo := thumbnailFrame
	if total-1 < frameNo {
		frameNo = total - 1
	}
	if frameNo < 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrClipNotFound, path)
	}
	capture.Set(gocv.VideoCapturePosFrames, float64(frameNo))

	frame := gocv.NewMat()
	defer frame.Close()
	if ok := capture.Read(&frame); !ok {
		return nil, fmt.Errorf("failed to read frame %d of %s", frameNo, path)
	}

	return EncodeJPEG(frame)
}

// EncodeJPEG encodes a frame as JPEG bytes.
func EncodeJPEG(frame gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
