package render

import (
	"fmt"
	"image"
	"os"

	// Registered decoders for background images.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadBackground decodes the image at path. On any failure the returned
// background is marked failed and frames use the fallback fill.
func LoadBackground(path string) (Background, error) {
	f, err := os.Open(path)
	if err != nil {
		return Background{Status: BackgroundFailed}, fmt.Errorf("failed to open background: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Background{Status: BackgroundFailed}, fmt.Errorf("failed to decode background %s: %w", path, err)
	}

	return Background{Status: BackgroundLoaded, Image: img}, nil
}
