package align

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Warp resamples src into a size x size canonical crop using the given
// forward transform (source pixel space -> crop space) with bilinear
// interpolation. Pixels mapping outside the source image come out black.
func Warp(src image.Image, t *Transform, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	aff := f64.Aff3{
		t.At(0, 0), t.At(0, 1), t.At(0, 2),
		t.At(1, 0), t.At(1, 1), t.At(1, 2),
	}
	draw.BiLinear.Transform(dst, aff, src, src.Bounds(), draw.Src, nil)
	return dst
}

// Frontalize estimates the similarity transform from detected landmarks to
// the canonical template and returns the aligned 112x112 crop together
// with the transform. ErrDegenerateGeometry means the frame carries no
// usable face.
func Frontalize(src image.Image, landmarks LandmarkSet) (*image.RGBA, *Transform, error) {
	t, err := EstimateSimilarity(landmarks.Points(), Template112.Points())
	if err != nil {
		return nil, nil, err
	}
	return Warp(src, t, CropSize), t, nil
}
