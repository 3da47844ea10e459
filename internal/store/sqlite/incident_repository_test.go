package sqlite

import (
	"bytes"
	"path/filepath"
	"testing"

	"crashwatch/internal/model"
)

func testRepository(t *testing.T) *IncidentImageRepository {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewIncidentImageRepository(db)
}

func TestUpsert_ReplacesOnDuplicateKey(t *testing.T) {
	repo := testRepository(t)

	rec := model.IncidentRecord{CameraID: 7, FrameID: 120, City: "Pune", District: "District 2", IncidentTime: "2024-01-01 10:00:00"}
	if err := repo.Upsert(rec, []byte("first")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Upsert(rec, []byte("second")); err != nil {
		t.Fatalf("Upsert replay: %v", err)
	}

	count, err := repo.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row after replay, got %d", count)
	}

	image, err := repo.GetImage(7, 120)
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	if !bytes.Equal(image, []byte("second")) {
		t.Errorf("replay did not replace image, got %q", image)
	}
}

func TestGetImage_MissingKeyYieldsNil(t *testing.T) {
	repo := testRepository(t)

	image, err := repo.GetImage(99, 0)
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	if image != nil {
		t.Errorf("expected nil image for missing key, got %q", image)
	}
}

func TestRecords_OrderedByTimeDescending(t *testing.T) {
	repo := testRepository(t)

	for _, rec := range []model.IncidentRecord{
		{CameraID: 1, FrameID: 30, City: "Pune", District: "District 4", IncidentTime: "2024-01-01 10:00:00"},
		{CameraID: 2, FrameID: 60, City: "Pune", District: "District 7", IncidentTime: "2024-01-03 10:00:00"},
		{CameraID: 3, FrameID: 90, City: "Mumbai", District: "District 1", IncidentTime: "2024-01-02 10:00:00"},
	} {
		if err := repo.Upsert(rec, []byte("img")); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	records, err := repo.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].CameraID != 2 || records[1].CameraID != 3 || records[2].CameraID != 1 {
		t.Errorf("records not ordered by time descending: %+v", records)
	}
	if records[0].City != "Pune" || records[0].District != "District 7" {
		t.Errorf("metadata not round-tripped: %+v", records[0])
	}
}

func TestRecords_EmptyStore(t *testing.T) {
	repo := testRepository(t)

	records, err := repo.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
