package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"crashwatch/internal/model"
)

func tempLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "incident_records.json")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return l
}

func TestAppend_ReplacesOnSameKey(t *testing.T) {
	l := tempLedger(t)

	rec := model.IncidentRecord{CameraID: 42, FrameID: 0, Segments: 4, City: "Pune", District: "District 4", IncidentTime: "2024-01-01 10:00:00"}
	if err := l.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Replaying the same key overwrites, never duplicates.
	rec.IncidentTime = "2024-01-01 11:00:00"
	if err := l.Append(rec); err != nil {
		t.Fatalf("Append replay: %v", err)
	}

	records := l.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record after replay, got %d", len(records))
	}
	if records[0].IncidentTime != "2024-01-01 11:00:00" {
		t.Errorf("replay did not overwrite: %+v", records[0])
	}
}

func TestOpen_ReloadsPersistedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incident_records.json")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.Append(model.IncidentRecord{CameraID: 1, FrameID: 30, IncidentTime: "2024-01-01 10:00:00"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Len() != 1 {
		t.Fatalf("expected 1 record after reload, got %d", reopened.Len())
	}
}

func TestReconcile_SynthesizesImageStoreOnlyKeys(t *testing.T) {
	l := tempLedger(t)
	if err := l.Append(model.IncidentRecord{CameraID: 1, FrameID: 30, Segments: 4, IncidentTime: "2024-01-01 10:00:00"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	imageRecords := []model.IncidentRecord{
		{CameraID: 7, FrameID: 120, City: "Pune", District: "District 2", IncidentTime: "2024-01-02 10:00:00"},
		{CameraID: 1, FrameID: 30, IncidentTime: "2024-01-01 10:00:00"},
	}
	if err := l.Reconcile(imageRecords); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	records := l.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records after merge, got %d", len(records))
	}

	var synthesized *model.IncidentRecord
	for i := range records {
		if records[i].Key() == (model.IncidentKey{CameraID: 7, FrameID: 120}) {
			synthesized = &records[i]
		}
	}
	if synthesized == nil {
		t.Fatal("image-store key (7, 120) missing from merged ledger")
	}
	if synthesized.Segments != model.DefaultSegmentCount {
		t.Errorf("synthesized record segments = %d, want %d", synthesized.Segments, model.DefaultSegmentCount)
	}
}

func TestReconcile_IsAdditiveAndIdempotent(t *testing.T) {
	l := tempLedger(t)
	if err := l.Append(model.IncidentRecord{CameraID: 5, FrameID: 60, IncidentTime: "2024-01-05 10:00:00"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// A ledger entry absent from the image store is never deleted.
	if err := l.Reconcile(nil); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("reconcile deleted a ledger entry, %d records left", l.Len())
	}

	imageRecords := []model.IncidentRecord{{CameraID: 9, FrameID: 0, IncidentTime: "2024-01-06 10:00:00"}}
	if err := l.Reconcile(imageRecords); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if err := l.Reconcile(imageRecords); err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("reconcile not idempotent, got %d records", l.Len())
	}
}

func TestRecords_SortedNewestFirstWithMissingTimesLast(t *testing.T) {
	l := tempLedger(t)
	for _, rec := range []model.IncidentRecord{
		{CameraID: 1, FrameID: 0, IncidentTime: ""},
		{CameraID: 2, FrameID: 0, IncidentTime: "2024-01-02 10:00:00"},
		{CameraID: 3, FrameID: 0, IncidentTime: "2024-01-03 10:00:00"},
	} {
		if err := l.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	records := l.Records()
	if records[0].CameraID != 3 || records[1].CameraID != 2 || records[2].CameraID != 1 {
		t.Errorf("unexpected order: %+v", records)
	}
}

func TestOpen_SurfacesCorruptLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incident_records.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected error for corrupt ledger file")
	}
}
