package pose

// Input is the datum handed to a minimal solver: one ray and one world
// point per sampled correspondence, plus the caller's priors.
type Input struct {
	RayOrigins    []Vec3
	RayDirections []Vec3
	WorldPoints   []Vec3
	Priors        Priors
}

// MinimalSolver turns a minimal sample into zero or more similarity
// transform hypotheses. Implementations report false when the sample is
// degenerate; the robust estimator skips such samples silently.
//
// On success the returned Solution may hold more than one hypothesis
// (minimal pose solvers are often multi-modal); the parallel slices must
// have equal length.
type MinimalSolver interface {
	EstimateSimilarityTransformation(input Input) (Solution, bool)
}

// SolverFunc adapts a plain function to the MinimalSolver interface.
type SolverFunc func(Input) (Solution, bool)

// EstimateSimilarityTransformation calls f.
func (f SolverFunc) EstimateSimilarityTransformation(input Input) (Solution, bool) {
	return f(input)
}

// ComputeInputDatum assembles the solver input from a minimal sample:
// every observation is back-projected through its own camera into a ray in
// the rig frame, paired with the observed world point. Priors are left for
// the caller to attach.
func ComputeInputDatum(sample []Correspondence) Input {
	input := Input{
		RayOrigins:    make([]Vec3, len(sample)),
		RayDirections: make([]Vec3, len(sample)),
		WorldPoints:   make([]Vec3, len(sample)),
	}
	for i, c := range sample {
		origin, direction := c.Camera.Ray(c.Observation)
		input.RayOrigins[i] = origin
		input.RayDirections[i] = direction
		input.WorldPoints[i] = c.Point
	}
	return input
}
