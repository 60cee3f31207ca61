package align

// CropSize is the side length of the canonical aligned face crop.
const CropSize = 112

// Point is a 2D coordinate in pixel space.
type Point struct {
	X float64
	Y float64
}

// LandmarkSet holds the five facial keypoints produced by the detector,
// in fixed order: left eye, right eye, nose, mouth-left, mouth-right.
type LandmarkSet [5]Point

// Template112 is the canonical five-point reference layout for a 112x112
// aligned face crop. These are the ArcFace reference coordinates used to
// train the embedding model; warping detected landmarks onto this layout
// is what makes embeddings comparable across poses.
var Template112 = LandmarkSet{
	{X: 38.2946, Y: 51.6963},
	{X: 73.5318, Y: 51.5014},
	{X: 56.0252, Y: 71.7366},
	{X: 41.5493, Y: 92.3655},
	{X: 70.7299, Y: 92.2041},
}

// Points returns the landmark set as a slice for estimation routines.
func (l LandmarkSet) Points() []Point {
	return l[:]
}
