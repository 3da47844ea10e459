package highlight

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"crashwatch/internal/store"
)

// PlaceholderThumbnail renders a synthetic incident card for cases where no
// clip frame is available. Substituting it is an explicit fallback policy for
// reconstruction-impossible incidents, not a silent empty artifact.
func PlaceholderThumbnail(cameraID, offset int, city, district, timestamp string) ([]byte, error) {
	img := gocv.NewMatWithSize(400, 600, gocv.MatTypeCV8UC3)
	defer img.Close()

	if err := img.SetTo(gocv.NewScalar(0, 0, 255, 0)); err != nil {
		return nil, fmt.Errorf("failed to fill placeholder: %w", err)
	}

	white := color.RGBA{R: 255, G: 255, B: 255}
	lines := []string{
		fmt.Sprintf("Incident %d-%d", cameraID, offset),
		fmt.Sprintf("Location: %s, %s", city, district),
		fmt.Sprintf("Time: %s", timestamp),
	}
	for i, line := range lines {
		pt := image.Pt(50, 100+i*50)
		if err := gocv.PutText(&img, line, pt, gocv.FontHersheySimplex, 1.0, white, 2); err != nil {
			return nil, fmt.Errorf("failed to render placeholder text: %w", err)
		}
	}

	return store.EncodeJPEG(img)
}
