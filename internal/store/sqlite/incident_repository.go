package sqlite

import (
	"database/sql"
	"fmt"

	"crashwatch/internal/model"
)

// IncidentImageRepository stores incident thumbnails plus metadata, keyed by
// (camera id, starting frame offset) with a uniqueness constraint on the pair.
type IncidentImageRepository struct {
	db *DB
}

// NewIncidentImageRepository creates a new SQLite incident image repository.
func NewIncidentImageRepository(db *DB) *IncidentImageRepository {
	return &IncidentImageRepository{db: db}
}

// Upsert inserts the record and image, replacing any existing row with the
// same (camera id, frame id) key.
func (r *IncidentImageRepository) Upsert(rec model.IncidentRecord, image []byte) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT OR REPLACE INTO incident_images
		(camera_id, frame_id, city, district, incident_time, image)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.CameraID, rec.FrameID, rec.City, rec.District, rec.IncidentTime, image)
	if err != nil {
		return fmt.Errorf("failed to upsert incident image: %w", err)
	}
	return nil
}

// GetImage retrieves the stored image for a key. A missing key yields
// (nil, nil); every other failure is surfaced.
func (r *IncidentImageRepository) GetImage(cameraID, frameID int) ([]byte, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var image []byte
	err := r.db.Conn().QueryRow(`
		SELECT image FROM incident_images
		WHERE camera_id = ? AND frame_id = ?
	`, cameraID, frameID).Scan(&image)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident image: %w", err)
	}
	return image, nil
}

// Records returns the metadata of every stored incident image, ordered by
// incident time descending.
func (r *IncidentImageRepository) Records() ([]model.IncidentRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT camera_id, frame_id, COALESCE(city, ''), COALESCE(district, ''), COALESCE(incident_time, '')
		FROM incident_images
		ORDER BY incident_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query incident records: %w", err)
	}
	defer rows.Close()

	var records []model.IncidentRecord
	for rows.Next() {
		var rec model.IncidentRecord
		if err := rows.Scan(&rec.CameraID, &rec.FrameID, &rec.City, &rec.District, &rec.IncidentTime); err != nil {
			return nil, fmt.Errorf("failed to scan incident record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored incident images.
func (r *IncidentImageRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM incident_images`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count incident images: %w", err)
	}
	return count, nil
}
