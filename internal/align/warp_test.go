package align

import (
	"image"
	"image/color"
	"testing"
)

// gradientImage builds a deterministic test image where every pixel value
// encodes its own coordinates.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	return img
}

func TestWarpIdentity(t *testing.T) {
	src := gradientImage(200, 200)
	crop := Warp(src, NewTransform(1, 0, 0, 0), CropSize)

	if got := crop.Bounds().Dx(); got != CropSize {
		t.Fatalf("crop width = %d, want %d", got, CropSize)
	}

	for _, p := range []image.Point{{0, 0}, {56, 71}, {111, 111}} {
		got := crop.RGBAAt(p.X, p.Y)
		want := src.RGBAAt(p.X, p.Y)
		if got != want {
			t.Errorf("crop pixel %v = %v, want %v", p, got, want)
		}
	}
}

func TestWarpTranslation(t *testing.T) {
	src := gradientImage(200, 200)
	// Maps source pixel (50, 30) onto crop origin.
	crop := Warp(src, NewTransform(1, 0, -50, -30), CropSize)

	for _, p := range []image.Point{{0, 0}, {10, 40}, {100, 80}} {
		got := crop.RGBAAt(p.X, p.Y)
		want := src.RGBAAt(p.X+50, p.Y+30)
		if got != want {
			t.Errorf("crop pixel %v = %v, want %v", p, got, want)
		}
	}
}

func TestFrontalize(t *testing.T) {
	src := gradientImage(640, 480)
	// Landmarks already in canonical position: the crop is a straight
	// cutout of the top-left 112x112 region.
	crop, tf, err := Frontalize(src, Template112)
	if err != nil {
		t.Fatalf("Frontalize() error = %v", err)
	}
	if crop.Bounds().Dx() != CropSize || crop.Bounds().Dy() != CropSize {
		t.Fatalf("crop bounds = %v, want %dx%d", crop.Bounds(), CropSize, CropSize)
	}
	if !almostEqual(tf.Scale(), 1, 1e-6) {
		t.Errorf("Scale() = %v, want 1", tf.Scale())
	}
}

func TestFrontalizeDegenerate(t *testing.T) {
	src := gradientImage(640, 480)
	var collapsed LandmarkSet
	for i := range collapsed {
		collapsed[i] = Point{X: 320, Y: 240}
	}

	if _, _, err := Frontalize(src, collapsed); err == nil {
		t.Fatal("Frontalize() with collapsed landmarks should fail")
	}
}
