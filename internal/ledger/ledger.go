package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"crashwatch/internal/model"
)

// Ledger is the durable, ordered collection of incident records, serialized
// as a flat JSON list. Appends with an existing (camera, frame) key replace
// the earlier record, so replaying a RESULT never duplicates an entry.
type Ledger struct {
	mu      sync.Mutex
	path    string
	records []model.IncidentRecord
}

// Open loads the ledger file at path, or starts empty if it does not exist.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	if err := json.Unmarshal(data, &l.records); err != nil {
		return nil, fmt.Errorf("failed to parse ledger: %w", err)
	}
	sortByTimeDesc(l.records)
	return l, nil
}

// Append adds a record, replacing any record with the same key, and persists
// the ledger.
func (l *Ledger) Append(rec model.IncidentRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = upsert(l.records, rec)
	sortByTimeDesc(l.records)
	return l.persist()
}

// Records returns a snapshot of the ledger, ordered by incident time
// descending.
func (l *Ledger) Records() []model.IncidentRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.IncidentRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records in the ledger.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Reconcile merges image-store records into the ledger and persists the
// result. The merge is strictly additive: every image-store key missing from
// the ledger gets a synthesized record with the segment count defaulted;
// ledger entries absent from the image store are kept. Running it twice is a
// no-op.
func (l *Ledger) Reconcile(imageRecords []model.IncidentRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = merge(l.records, imageRecords)
	return l.persist()
}

// merge is the pure reconciliation step: additive, idempotent, sorted by
// incident time descending with missing timestamps last.
func merge(ledger, imageRecords []model.IncidentRecord) []model.IncidentRecord {
	known := make(map[model.IncidentKey]bool, len(ledger))
	out := make([]model.IncidentRecord, len(ledger))
	copy(out, ledger)
	for _, rec := range ledger {
		known[rec.Key()] = true
	}

	for _, rec := range imageRecords {
		if known[rec.Key()] {
			continue
		}
		if rec.Segments == 0 {
			rec.Segments = model.DefaultSegmentCount
		}
		out = append(out, rec)
		known[rec.Key()] = true
	}

	sortByTimeDesc(out)
	return out
}

func upsert(records []model.IncidentRecord, rec model.IncidentRecord) []model.IncidentRecord {
	for i := range records {
		if records[i].Key() == rec.Key() {
			records[i] = rec
			return records
		}
	}
	return append(records, rec)
}

// sortByTimeDesc orders newest first. Records with missing timestamps carry
// the empty string and therefore sort last.
func sortByTimeDesc(records []model.IncidentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].IncidentTime > records[j].IncidentTime
	})
}

// persist writes the full record list atomically. Callers must hold l.mu.
func (l *Ledger) persist() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}
