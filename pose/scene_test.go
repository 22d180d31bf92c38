package pose

import (
	"math"
	"math/rand"

	"github.com/paulmach/orb"
)

// Shared synthetic scene for estimator and solver tests: a two-camera rig
// observing landmarks under a known similarity transform.

type testScene struct {
	cameras     []*PinholeCamera
	rotation    Quat
	translation Vec3
	scale       float64
}

func newTestScene() *testScene {
	return &testScene{
		cameras: []*PinholeCamera{
			{
				ID: "left", Fx: 500, Fy: 500, Ppx: 320, Ppy: 240,
				Width: 640, Height: 480,
				Rotation: IdentityQuat(), Position: Vec3{X: -0.1},
			},
			{
				ID: "right", Fx: 500, Fy: 500, Ppx: 320, Ppy: 240,
				Width: 640, Height: 480,
				Rotation: IdentityQuat(), Position: Vec3{X: 0.1},
			},
		},
		rotation:    QuatFromAxisAngle(Vec3{Z: 1}, 0.3),
		translation: Vec3{X: 0.4, Y: -0.2, Z: 0.1},
		scale:       1.25,
	}
}

// correspondence builds one exact 2D-3D measurement: a pixel is chosen in a
// camera, a landmark placed on its ray, and the landmark pulled back into
// the body frame through the inverse of the scene's similarity transform.
func (s *testScene) correspondence(rng *rand.Rand, camIdx int) Correspondence {
	cam := s.cameras[camIdx]
	pixel := orb.Point{
		50 + rng.Float64()*float64(cam.Width-100),
		50 + rng.Float64()*float64(cam.Height-100),
	}
	depth := 2.0 + rng.Float64()*4.0

	origin, dir := cam.Ray(pixel)
	rigPoint := origin.Add(dir.Scale(depth))
	bodyPoint := s.rotation.Conjugate().Rotate(rigPoint.Scale(s.scale).Sub(s.translation))

	return Correspondence{
		Point:       bodyPoint,
		Observation: pixel,
		Camera:      cam,
	}
}

// correspondences builds n measurements, the last numOutliers with pixel
// observations displaced far beyond any inlier threshold.
func (s *testScene) correspondences(rng *rand.Rand, n, numOutliers int) []Correspondence {
	result := make([]Correspondence, 0, n)
	for i := 0; i < n; i++ {
		c := s.correspondence(rng, i%len(s.cameras))
		if i >= n-numOutliers {
			c.Observation = orb.Point{c.Observation[0] + 300, c.Observation[1] + 250}
		}
		result = append(result, c)
	}
	return result
}

// solution returns the scene's ground truth as a single hypothesis.
func (s *testScene) solution() Solution {
	return Solution{
		Rotations:    []Quat{s.rotation},
		Translations: []Vec3{s.translation},
		Scales:       []float64{s.scale},
	}
}

// oracleSolver mimics an ideal minimal solver: when every sampled landmark
// is consistent with its observation ray under the scene's transform it
// returns the ground truth, otherwise a far-off hypothesis, the way a real
// solver fits whatever contaminated sample it is handed.
func (s *testScene) oracleSolver() SolverFunc {
	return func(input Input) (Solution, bool) {
		for i := range input.WorldPoints {
			rigPoint := ApplySimilarity(s.rotation, s.translation, s.scale, input.WorldPoints[i])
			v := rigPoint.Sub(input.RayOrigins[i])
			along := v.Dot(input.RayDirections[i])
			closest := input.RayOrigins[i].Add(input.RayDirections[i].Scale(along))
			if rigPoint.Sub(closest).Norm() > 0.01 {
				return Solution{
					Rotations:    []Quat{QuatFromAxisAngle(Vec3{X: 1}, 0.7).Mul(s.rotation)},
					Translations: []Vec3{s.translation.Add(Vec3{X: 5, Y: 5, Z: 5})},
					Scales:       []float64{s.scale * 2},
				}, true
			}
		}
		return s.solution(), true
	}
}

// failingSolver rejects every sample.
func failingSolver() SolverFunc {
	return func(Input) (Solution, bool) {
		return Solution{}, false
	}
}

func nearVec3(a, b Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.Z-b.Z) < tol
}
