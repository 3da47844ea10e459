package store

import (
	"errors"

	"crashwatch/internal/model"
)

// imageStore is the subset of the incident image repository the thumbnail
// path needs.
type imageStore interface {
	GetImage(cameraID, frameID int) ([]byte, error)
	Upsert(rec model.IncidentRecord, image []byte) error
}

// ThumbnailProvider resolves incident thumbnails with image-store precedence:
// stored image first, then a frame sampled from the highlight clip. A derived
// frame is backfilled into the image store so future lookups hit the fast
// path. City, district and time are unknown at that point and left empty.
type ThumbnailProvider struct {
	images imageStore
	clips  *SegmentStore
}

// NewThumbnailProvider wires the provider over the two stores.
func NewThumbnailProvider(images imageStore, clips *SegmentStore) *ThumbnailProvider {
	return &ThumbnailProvider{images: images, clips: clips}
}

// Thumbnail returns a JPEG thumbnail for the incident, or (nil, nil) when
// neither store has anything for the key.
func (p *ThumbnailProvider) Thumbnail(cameraID, offset int) ([]byte, error) {
	img, err := p.images.GetImage(cameraID, offset)
	if err != nil {
		return nil, err
	}
	if img != nil {
		return img, nil
	}

	img, err = p.clips.IncidentThumbnail(cameraID, offset)
	if errors.Is(err, ErrClipNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Opportunistic backfill; the lookup already succeeded, so a failed
	// write only costs the next caller the slow path.
	_ = p.images.Upsert(model.IncidentRecord{CameraID: cameraID, FrameID: offset}, img)

	return img, nil
}
