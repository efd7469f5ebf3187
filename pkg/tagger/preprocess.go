package tagger

import (
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/transform"
)

// square composites img onto a white square canvas at least size pixels wide,
// centering it. Transparent areas become white.
func square(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	side := max(b.Dx(), b.Dy(), size)

	canvas := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	left := (side - b.Dx()) / 2
	top := (side - b.Dy()) / 2
	dst := image.Rect(left, top, left+b.Dx(), top+b.Dy())
	draw.Draw(canvas, dst, img, b.Min, draw.Over)
	return canvas
}

// Preprocess produces a size x size NHWC tensor in BGR order with 0-255 values.
func Preprocess(img image.Image, size int) []float32 {
	sq := square(img, size)

	// square never returns a canvas smaller than size, so only shrinking is needed.
	r := sq
	if sq.Bounds().Dx() > size {
		r = transform.Resize(sq, size, size, transform.Box)
	}

	out := make([]float32, 0, size*size*3)
	for y := 0; y < size; y++ {
		row := r.Pix[y*r.Stride : y*r.Stride+size*4]
		for x := 0; x < size; x++ {
			px := row[x*4 : x*4+4]
			out = append(out, float32(px[2]), float32(px[1]), float32(px[0]))
		}
	}
	return out
}
