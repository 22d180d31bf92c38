package pose

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ObjectSpaceSolver estimates a similarity transform from a minimal sample
// by alternating two cheap steps: fix the depth along each observation ray
// and fit the best 3D similarity (Umeyama), then re-project the fitted
// points onto the rays to update the depths. This is object-space
// minimization in the style of orthogonal-iteration pose solvers, extended
// with a scale term for generalized cameras.
//
// It always returns at most one hypothesis. Priors are accepted but not
// used by this solver. It is the default collaborator wired into the
// service; tests may swap in any MinimalSolver.
type ObjectSpaceSolver struct {
	// Iterations bounds the alternation rounds.
	Iterations int
	// MinDepth marks a sample degenerate when any ray depth falls at or
	// below it (point converging behind its camera).
	MinDepth float64
	// Tolerance stops the alternation early when no depth moves by more
	// than this between rounds.
	Tolerance float64
}

// NewObjectSpaceSolver returns a solver with defaults that converge well on
// clean minimal samples.
func NewObjectSpaceSolver() *ObjectSpaceSolver {
	return &ObjectSpaceSolver{
		Iterations: 50,
		MinDepth:   1e-6,
		Tolerance:  1e-12,
	}
}

// EstimateSimilarityTransformation implements MinimalSolver.
func (s *ObjectSpaceSolver) EstimateSimilarityTransformation(input Input) (Solution, bool) {
	n := len(input.WorldPoints)
	if n < MinimalSampleSize || len(input.RayOrigins) != n || len(input.RayDirections) != n {
		return Solution{}, false
	}

	// Initialize each depth as if the rig were at the map origin; the
	// alternation corrects this quickly for nearby transforms and RANSAC
	// absorbs samples where it cannot.
	depths := make([]float64, n)
	for i := range depths {
		d := input.WorldPoints[i].Sub(input.RayOrigins[i]).Norm()
		if d <= s.MinDepth {
			return Solution{}, false
		}
		depths[i] = d
	}

	targets := make([]Vec3, n)
	var rotation Quat
	var translation Vec3
	scale := 1.0

	for iter := 0; iter < s.Iterations; iter++ {
		for i := range targets {
			targets[i] = input.RayOrigins[i].Add(input.RayDirections[i].Scale(depths[i]))
		}

		r, t, c, ok := umeyama(input.WorldPoints, targets)
		if !ok {
			return Solution{}, false
		}
		// umeyama fits targets ~ c*R*p + t; the estimator's convention is
		// rig_point = (R*p + translation) / scale.
		rotation = r
		scale = 1.0 / c
		translation = t.Scale(scale)

		maxShift := 0.0
		for i := range depths {
			mapped := ApplySimilarity(rotation, translation, scale, input.WorldPoints[i])
			d := input.RayDirections[i].Dot(mapped.Sub(input.RayOrigins[i]))
			if d <= s.MinDepth {
				return Solution{}, false
			}
			if shift := math.Abs(d - depths[i]); shift > maxShift {
				maxShift = shift
			}
			depths[i] = d
		}
		if maxShift < s.Tolerance {
			break
		}
	}

	return Solution{
		Rotations:    []Quat{rotation},
		Translations: []Vec3{translation},
		Scales:       []float64{scale},
	}, true
}

// umeyama computes the least-squares similarity aligning src to dst:
// dst ~ c*R*src + t. Returns false when the source cloud is degenerate
// (coincident points) or the SVD fails.
func umeyama(src, dst []Vec3) (Quat, Vec3, float64, bool) {
	n := len(src)
	if n < 3 || n != len(dst) {
		return Quat{}, Vec3{}, 0, false
	}

	var meanSrc, meanDst Vec3
	for i := 0; i < n; i++ {
		meanSrc = meanSrc.Add(src[i])
		meanDst = meanDst.Add(dst[i])
	}
	meanSrc = meanSrc.Scale(1.0 / float64(n))
	meanDst = meanDst.Scale(1.0 / float64(n))

	// Cross-covariance (dst x src^T) and source variance, both left
	// unnormalized; the shared factor n cancels in the scale estimate.
	sigma := mat.NewDense(3, 3, nil)
	varSrc := 0.0
	for i := 0; i < n; i++ {
		p := src[i].Sub(meanSrc)
		q := dst[i].Sub(meanDst)
		varSrc += p.Dot(p)
		pv := [3]float64{p.X, p.Y, p.Z}
		qv := [3]float64{q.X, q.Y, q.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				sigma.Set(r, c, sigma.At(r, c)+qv[r]*pv[c])
			}
		}
	}
	if varSrc < 1e-12 {
		return Quat{}, Vec3{}, 0, false
	}

	var svd mat.SVD
	if !svd.Factorize(sigma, mat.SVDFull) {
		return Quat{}, Vec3{}, 0, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	vals := svd.Values(nil)

	// Reflection guard: force det(R) = +1.
	d := 1.0
	if mat.Det(&u)*mat.Det(&v) < 0 {
		d = -1.0
	}
	diag := mat.NewDiagDense(3, []float64{1, 1, d})
	var rm mat.Dense
	rm.Product(&u, diag, v.T())

	var rmat [3][3]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rmat[r][c] = rm.At(r, c)
		}
	}
	rotation := QuatFromMatrix(rmat)

	c := (vals[0] + vals[1] + d*vals[2]) / varSrc
	if c <= 1e-12 {
		return Quat{}, Vec3{}, 0, false
	}

	t := meanDst.Sub(rotation.Rotate(meanSrc).Scale(c))
	return rotation, t, c, true
}
