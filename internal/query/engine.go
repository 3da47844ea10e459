// Package query filters and sorts incident records for operator searches.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"crashwatch/internal/model"
)

// RecentLimit is the number of records returned by Recent.
const RecentLimit = 10

// Filter holds the optional search predicates. Empty fields are always-true.
// Start and End are normalized timestamps; a range applies only when both
// bounds are set.
type Filter struct {
	City     string
	District string
	Start    string
	End      string
}

// Normalize combines a d/m/yyyy date and an H:M time into the canonical
// "YYYY-MM-DD HH:MM:00" form used for string comparison against stored
// timestamps. Malformed input yields "", which disables the range filter
// rather than raising.
func Normalize(date, timeOfDay string) string {
	if date == "" || timeOfDay == "" {
		return ""
	}

	dateParts := strings.Split(date, "/")
	if len(dateParts) != 3 {
		return ""
	}
	day, month, year := pad2(dateParts[0]), pad2(dateParts[1]), dateParts[2]

	timeParts := strings.Split(timeOfDay, ":")
	if len(timeParts) < 2 {
		return ""
	}
	hour, minute := pad2(timeParts[0]), pad2(timeParts[1])

	for _, part := range []string{day, month, year, hour, minute} {
		if _, err := strconv.Atoi(part); err != nil {
			return ""
		}
	}

	return fmt.Sprintf("%s-%s-%s %s:%s:00", year, month, day, hour, minute)
}

func pad2(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

// Search returns every record satisfying all supplied predicates, sorted by
// incident time descending.
func Search(records []model.IncidentRecord, f Filter) []model.IncidentRecord {
	out := make([]model.IncidentRecord, 0, len(records))
	for _, rec := range records {
		if f.City != "" && rec.City != f.City {
			continue
		}
		if f.District != "" && rec.District != f.District {
			continue
		}
		if f.Start != "" && f.End != "" {
			if rec.IncidentTime < f.Start || rec.IncidentTime > f.End {
				continue
			}
		}
		out = append(out, rec)
	}
	sortByTimeDesc(out)
	return out
}

// Recent ignores all filters and returns the ten most recent records.
func Recent(records []model.IncidentRecord) []model.IncidentRecord {
	out := make([]model.IncidentRecord, len(records))
	copy(out, records)
	sortByTimeDesc(out)
	if len(out) > RecentLimit {
		out = out[:RecentLimit]
	}
	return out
}

func sortByTimeDesc(records []model.IncidentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].IncidentTime > records[j].IncidentTime
	})
}
