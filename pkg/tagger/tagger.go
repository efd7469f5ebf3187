// Package tagger infers candidate tags for images and turns them into captions.
package tagger

import (
	"context"
	"errors"
	"fmt"
	"image"

	// Decoders for every extension the batch driver accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/anthonynsimon/bild/imgio"
)

// ErrInference marks a failed or malformed model call.
var ErrInference = errors.New("inference failed")

// ratingCategory is the label-table category holding content ratings.
const ratingCategory = 9

// Prediction holds per-tag confidences. Ratings are kept apart from Tags.
type Prediction struct {
	Tags    map[string]float64
	Ratings map[string]float64
}

// Tagger infers tags for a decoded image.
type Tagger interface {
	Infer(ctx context.Context, img image.Image) (*Prediction, error)
}

func inferErr(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInference, fmt.Sprintf(format, a...))
}

// Load decodes an image file.
func Load(path string) (image.Image, error) {
	img, err := imgio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("open %s: empty image", path)
	}
	return img, nil
}
