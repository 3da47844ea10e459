package query

import (
	"fmt"
	"testing"

	"crashwatch/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		date string
		time string
		want string
	}{
		{"padded", "01/02/2024", "10:30", "2024-02-01 10:30:00"},
		{"unpadded", "1/2/2024", "9:5", "2024-02-01 09:05:00"},
		{"empty date", "", "10:30", ""},
		{"empty time", "1/2/2024", "", ""},
		{"bad date shape", "2024-02-01", "10:30", ""},
		{"bad time shape", "1/2/2024", "1030", ""},
		{"non-numeric", "a/b/c", "10:30", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.date, tt.time); got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.date, tt.time, got, tt.want)
			}
		})
	}
}

func testRecords() []model.IncidentRecord {
	return []model.IncidentRecord{
		{CameraID: 1, FrameID: 30, City: "Pune", District: "District 4", IncidentTime: "2024-01-01 10:00:00"},
		{CameraID: 2, FrameID: 60, City: "Pune", District: "District 7", IncidentTime: "2024-01-02 10:00:00"},
		{CameraID: 3, FrameID: 90, City: "Mumbai", District: "District 4", IncidentTime: "2024-01-03 10:00:00"},
	}
}

func TestSearch_DateRange(t *testing.T) {
	// Range covering only the first day must return only the first record.
	got := Search(testRecords(), Filter{
		City:  "Pune",
		Start: Normalize("1/1/2024", "0:00"),
		End:   Normalize("1/1/2024", "23:59"),
	})

	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].CameraID != 1 {
		t.Errorf("expected camera 1, got %d", got[0].CameraID)
	}
}

func TestSearch_AbsentPredicatesMatchAll(t *testing.T) {
	got := Search(testRecords(), Filter{})
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	// Sorted newest first.
	if got[0].CameraID != 3 || got[2].CameraID != 1 {
		t.Errorf("records not sorted by time descending: %+v", got)
	}
}

func TestSearch_CityAndDistrict(t *testing.T) {
	got := Search(testRecords(), Filter{City: "Pune", District: "District 7"})
	if len(got) != 1 || got[0].CameraID != 2 {
		t.Fatalf("expected only camera 2, got %+v", got)
	}
}

func TestSearch_MalformedRangeIsPermissive(t *testing.T) {
	// A malformed bound disables the range filter instead of erroring out.
	got := Search(testRecords(), Filter{
		Start: Normalize("not-a-date", "0:00"),
		End:   Normalize("1/1/2024", "23:59"),
	})
	if len(got) != 3 {
		t.Fatalf("expected all records with disabled range filter, got %d", len(got))
	}
}

func TestSearch_NoMatchesReturnsEmptyList(t *testing.T) {
	got := Search(testRecords(), Filter{City: "Delhi"})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
}

func TestRecent_LimitAndOrder(t *testing.T) {
	var records []model.IncidentRecord
	for i := 0; i < 15; i++ {
		records = append(records, model.IncidentRecord{
			CameraID:     i,
			FrameID:      30,
			IncidentTime: fmt.Sprintf("2024-01-01 10:00:%02d", i),
		})
	}
	records[4].IncidentTime = "2024-06-01 00:00:00"

	got := Recent(records)
	if len(got) != RecentLimit {
		t.Fatalf("expected %d records, got %d", RecentLimit, len(got))
	}
	if got[0].CameraID != 4 {
		t.Errorf("expected newest record first, got camera %d", got[0].CameraID)
	}
}

func TestRecent_IgnoresShortInput(t *testing.T) {
	got := Recent(testRecords())
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
}
