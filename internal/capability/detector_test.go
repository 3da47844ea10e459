package capability

import (
	"os"
	"path/filepath"
	"testing"

	"crashwatch/internal/logger"
)

func writeBoxesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boxes.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestFileDetector_ReadsAndPadsBoxes(t *testing.T) {
	path := writeBoxesFile(t, `[
		[{"xmin": 10, "ymin": 20, "xmax": 30, "ymax": 40}],
		[]
	]`)

	boxes, err := FileDetector{}.Detect(nil, 640, 480, true, path)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(boxes) != 2 {
		t.Fatalf("expected 2 frame entries, got %d", len(boxes))
	}
	if len(boxes[0]) != 1 || boxes[0][0].XMin != 10 || boxes[0][0].YMax != 40 {
		t.Errorf("unexpected first-frame boxes: %+v", boxes[0])
	}
}

func TestReadBoxesFile_PadsToFrameCount(t *testing.T) {
	path := writeBoxesFile(t, `[[{"xmin": 1, "ymin": 1, "xmax": 2, "ymax": 2}]]`)

	boxes, err := readBoxesFile(path, 5)
	if err != nil {
		t.Fatalf("readBoxesFile: %v", err)
	}
	if len(boxes) != 5 {
		t.Fatalf("expected padding to 5 entries, got %d", len(boxes))
	}
	for i := 1; i < 5; i++ {
		if len(boxes[i]) != 0 {
			t.Errorf("padded entry %d not empty: %+v", i, boxes[i])
		}
	}
}

func TestReadBoxesFile_MissingFile(t *testing.T) {
	if _, err := readBoxesFile(filepath.Join(t.TempDir(), "absent.json"), 1); err == nil {
		t.Fatal("expected error for missing boxes file")
	}
}

func TestReadBoxesFile_MalformedJSON(t *testing.T) {
	path := writeBoxesFile(t, `{not json`)
	if _, err := readBoxesFile(path, 1); err == nil {
		t.Fatal("expected error for malformed boxes file")
	}
}

func TestNewDetector_UnknownKind(t *testing.T) {
	if _, err := NewDetector("telepathy", "", "", logger.Discard()); err == nil {
		t.Fatal("expected error for unknown detector kind")
	}
}

func TestNullDetector_EmptyBoxesPerFrame(t *testing.T) {
	boxes, err := NullDetector{}.Detect(nil, 640, 480, false, "")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(boxes) != 0 {
		t.Errorf("expected no entries for an empty batch, got %d", len(boxes))
	}
}

func TestClamp(t *testing.T) {
	if got := clamp(-5, 0, 100); got != 0 {
		t.Errorf("clamp(-5) = %d", got)
	}
	if got := clamp(150, 0, 100); got != 100 {
		t.Errorf("clamp(150) = %d", got)
	}
	if got := clamp(42, 0, 100); got != 42 {
		t.Errorf("clamp(42) = %d", got)
	}
}
