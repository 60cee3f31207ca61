package align

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateGeometry is returned when the landmark correspondence does
// not determine a similarity transform (all points coincide, or the
// covariance between the point sets has rank zero). Callers must treat it
// the same as "no usable face" for the frame.
var ErrDegenerateGeometry = errors.New("degenerate landmark geometry")

// Transform is a 2D similarity transform stored as a row-major 3x3
// homogeneous matrix. The linear block is a positive scalar multiple of a
// proper rotation; a Transform is only ever constructed from a successful
// estimation, so it is always invertible.
type Transform struct {
	m [3][3]float64
}

// NewTransform builds a transform from explicit scale, rotation (radians,
// counter-clockwise) and translation parameters.
func NewTransform(scale, rotation, tx, ty float64) *Transform {
	c, s := math.Cos(rotation), math.Sin(rotation)
	return &Transform{m: [3][3]float64{
		{scale * c, -scale * s, tx},
		{scale * s, scale * c, ty},
		{0, 0, 1},
	}}
}

// EstimateSimilarity computes the least-squares similarity transform
// mapping src onto dst using Umeyama's closed-form method (PAMI 1991).
// Both slices must have the same length of at least two points.
func EstimateSimilarity(src, dst []Point) (*Transform, error) {
	if len(src) != len(dst) || len(src) < 2 {
		return nil, fmt.Errorf("point sets must match and contain at least 2 points, got %d and %d", len(src), len(dst))
	}
	n := float64(len(src))

	srcMean := centroid(src)
	dstMean := centroid(dst)

	// Spread of each centered set. A zero spread means every point
	// coincides and no transform exists; bail out before any division.
	srcVar := sumSquaredDist(src, srcMean) / n
	dstVar := sumSquaredDist(dst, dstMean) / n
	if srcVar == 0 || dstVar == 0 {
		return nil, ErrDegenerateGeometry
	}

	// Covariance A = centered_dst^T * centered_src / n (2x2).
	var a mat.Dense
	a.Mul(demean(dst, dstMean).T(), demean(src, srcMean))
	a.Scale(1/n, &a)

	// Sign-correction vector guaranteeing a proper rotation (det +1).
	d := [2]float64{1, 1}
	if mat.Det(&a) < 0 {
		d[1] = -1
	}

	var svd mat.SVD
	if ok := svd.Factorize(&a, mat.SVDFull); !ok {
		return nil, ErrDegenerateGeometry
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sv := svd.Values(nil)

	var r mat.Dense
	switch matrixRank(sv) {
	case 0:
		return nil, ErrDegenerateGeometry
	case 1:
		// Rank-deficient correspondence (collinear points). Pick the
		// rotation branch that keeps the determinant positive.
		if mat.Det(&u)*mat.Det(&v) > 0 {
			r.Mul(&u, v.T())
		} else {
			d[1] = -1
			r.Mul(&u, scaledT(&v, d))
			d[1] = 1
		}
	default:
		r.Mul(&u, scaledT(&v, d))
	}

	scale := (sv[0]*d[0] + sv[1]*d[1]) / srcVar

	t := &Transform{}
	for i := range 2 {
		for j := range 2 {
			t.m[i][j] = scale * r.At(i, j)
		}
	}
	t.m[0][2] = dstMean.X - scale*(r.At(0, 0)*srcMean.X+r.At(0, 1)*srcMean.Y)
	t.m[1][2] = dstMean.Y - scale*(r.At(1, 0)*srcMean.X+r.At(1, 1)*srcMean.Y)
	t.m[2][2] = 1
	return t, nil
}

// Apply maps a point through the transform.
func (t *Transform) Apply(p Point) Point {
	return Point{
		X: t.m[0][0]*p.X + t.m[0][1]*p.Y + t.m[0][2],
		Y: t.m[1][0]*p.X + t.m[1][1]*p.Y + t.m[1][2],
	}
}

// ApplyAll maps a slice of points through the transform.
func (t *Transform) ApplyAll(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = t.Apply(p)
	}
	return out
}

// Inverse returns the inverse similarity transform.
func (t *Transform) Inverse() *Transform {
	a, b, c := t.m[0][0], t.m[0][1], t.m[0][2]
	d, e, f := t.m[1][0], t.m[1][1], t.m[1][2]
	det := a*e - b*d
	inv := &Transform{}
	inv.m[0][0] = e / det
	inv.m[0][1] = -b / det
	inv.m[0][2] = (b*f - c*e) / det
	inv.m[1][0] = -d / det
	inv.m[1][1] = a / det
	inv.m[1][2] = (c*d - a*f) / det
	inv.m[2][2] = 1
	return inv
}

// Scale returns the uniform scale factor.
func (t *Transform) Scale() float64 {
	return math.Sqrt(t.m[0][0]*t.m[1][1] - t.m[0][1]*t.m[1][0])
}

// Rotation returns the rotation angle in radians.
func (t *Transform) Rotation() float64 {
	return math.Atan2(t.m[1][0], t.m[1][1])
}

// Translation returns the translation components.
func (t *Transform) Translation() (float64, float64) {
	return t.m[0][2], t.m[1][2]
}

// At returns the matrix element at row i, column j.
func (t *Transform) At(i, j int) float64 {
	return t.m[i][j]
}

func centroid(pts []Point) Point {
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(pts))
	c.X /= n
	c.Y /= n
	return c
}

func sumSquaredDist(pts []Point, mean Point) float64 {
	var sum float64
	for _, p := range pts {
		dx, dy := p.X-mean.X, p.Y-mean.Y
		sum += dx*dx + dy*dy
	}
	return sum
}

func demean(pts []Point, mean Point) *mat.Dense {
	m := mat.NewDense(len(pts), 2, nil)
	for i, p := range pts {
		m.Set(i, 0, p.X-mean.X)
		m.Set(i, 1, p.Y-mean.Y)
	}
	return m
}

// matrixRank counts singular values above the numpy-compatible tolerance.
func matrixRank(sv []float64) int {
	if len(sv) == 0 {
		return 0
	}
	tol := sv[0] * float64(len(sv)) * 2.220446049250313e-16
	rank := 0
	for _, s := range sv {
		if s > tol {
			rank++
		}
	}
	return rank
}

// scaledT returns diag(d) * V^T as a matrix expression operand.
func scaledT(v *mat.Dense, d [2]float64) mat.Matrix {
	out := mat.NewDense(2, 2, nil)
	for i := range 2 {
		for j := range 2 {
			out.Set(i, j, d[i]*v.At(j, i))
		}
	}
	return out
}
