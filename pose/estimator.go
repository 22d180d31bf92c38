package pose

import (
	"fmt"
	"math"
	"math/rand"
)

// MinimalSampleSize is the number of correspondences a minimal solver needs
// to produce a similarity-transform hypothesis.
const MinimalSampleSize = 4

// epsilon is the double-precision machine epsilon. It nudges the inlier
// ratio and the log-probability in the adaptive iteration math; see
// updateBestSolution and computeMaxIterations.
var epsilon = math.Nextafter(1, 2) - 1

// Params configures the robust estimator. Validated once at construction.
type Params struct {
	// FailureProbability is the target probability that the returned
	// solution is not good enough. Must lie strictly in (0, 1).
	FailureProbability float64
	// ReprojectionErrorThresh is the pixel distance below which a
	// correspondence counts as an inlier. Must be positive.
	ReprojectionErrorThresh float64
	// MinIterations and MaxIterations bound the adaptive iteration count.
	// 0 <= MinIterations < MaxIterations.
	MinIterations int
	MaxIterations int
	// Seed initializes the sampler's random generator, making runs
	// reproducible.
	Seed int64
}

// DefaultParams returns sensible defaults for the robust estimator.
func DefaultParams() Params {
	return Params{
		FailureProbability:      0.01,
		ReprojectionErrorThresh: 2.0, // pixels
		MinIterations:           10,
		MaxIterations:           1000,
		Seed:                    1,
	}
}

// Estimator runs a RANSAC hypothesize-and-test loop over 2D-3D
// correspondences to recover the rig's pose and scale despite outliers.
//
// An Estimator is not safe for concurrent Estimate calls: the sampler's
// index array and the random generator are per-run mutable state. Use one
// instance per goroutine.
type Estimator struct {
	params Params
	solver MinimalSolver
	rng    *rand.Rand

	// indices is the sampler's partition array. Reset to the identity
	// permutation at the start of each Estimate call; each draw swaps a
	// random suffix element into the prefix, so repeated draws stay O(K)
	// and never re-scan the full array.
	indices []int
}

// NewEstimator validates params and returns an estimator that produces
// hypotheses with the given minimal solver.
func NewEstimator(params Params, solver MinimalSolver) (*Estimator, error) {
	if params.FailureProbability <= 0 || params.FailureProbability >= 1 {
		return nil, fmt.Errorf("failure probability must be in (0, 1), got %v", params.FailureProbability)
	}
	if params.ReprojectionErrorThresh <= 0 {
		return nil, fmt.Errorf("reprojection error threshold must be positive, got %v", params.ReprojectionErrorThresh)
	}
	if params.MinIterations < 0 {
		return nil, fmt.Errorf("min iterations must be non-negative, got %d", params.MinIterations)
	}
	if params.MaxIterations <= params.MinIterations {
		return nil, fmt.Errorf("max iterations (%d) must exceed min iterations (%d)",
			params.MaxIterations, params.MinIterations)
	}
	if solver == nil {
		return nil, fmt.Errorf("minimal solver must not be nil")
	}
	return &Estimator{
		params: params,
		solver: solver,
		rng:    rand.New(rand.NewSource(params.Seed)),
	}, nil
}

// Params returns the validated parameters the estimator was built with.
func (e *Estimator) Params() Params {
	return e.params
}

// randInt returns a uniform random int in [min, max].
func (e *Estimator) randInt(min, max int) int {
	return min + e.rng.Intn(max-min+1)
}

// resetIndices restores the sampler's partition array to the identity
// permutation over n correspondences.
func (e *Estimator) resetIndices(n int) {
	e.indices = e.indices[:0]
	for i := 0; i < n; i++ {
		e.indices = append(e.indices, i)
	}
}

// sample draws MinimalSampleSize distinct correspondences uniformly without
// replacement. Must not be called with fewer than MinimalSampleSize
// correspondences or before resetIndices.
func (e *Estimator) sample(correspondences []Correspondence) []Correspondence {
	sample := make([]Correspondence, 0, MinimalSampleSize)
	n := len(correspondences)
	for i := 0; i < MinimalSampleSize; i++ {
		j := e.randInt(i, n-1)
		e.indices[i], e.indices[j] = e.indices[j], e.indices[i]
		sample = append(sample, correspondences[e.indices[i]])
	}
	return sample
}

// updateBestSolution scores every hypothesis against all correspondences
// and replaces the best solution when a hypothesis strictly beats its
// inlier count. It returns the best inlier ratio seen; when nothing
// improved it returns the incoming best ratio plus machine epsilon, which
// keeps the adaptive iteration estimate strictly progressing even on
// rounds with no update.
func (e *Estimator) updateBestSolution(
	correspondences []Correspondence,
	hypotheses Solution,
	best *Solution,
	bestInliers *[]int,
) float64 {
	sqThresh := e.params.ReprojectionErrorThresh * e.params.ReprojectionErrorThresh
	total := float64(len(correspondences))

	bestRatio := float64(len(*bestInliers))/total + epsilon
	inliers := make([]int, 0, len(correspondences))
	for i := 0; i < hypotheses.NumHypotheses(); i++ {
		rotation := hypotheses.Rotations[i]
		translation := hypotheses.Translations[i]
		scale := hypotheses.Scales[i]
		inliers = inliers[:0]
		for j := range correspondences {
			pointInRig := ApplySimilarity(rotation, translation, scale, correspondences[j].Point)
			pixel, ok := correspondences[j].Camera.Project(pointInRig)
			if !ok {
				// Unprojectable under this hypothesis: neither inlier
				// nor outlier.
				continue
			}
			du := pixel[0] - correspondences[j].Observation[0]
			dv := pixel[1] - correspondences[j].Observation[1]
			if du*du+dv*dv < sqThresh {
				inliers = append(inliers, j)
			}
		}
		if len(inliers) > len(*bestInliers) {
			*bestInliers = append((*bestInliers)[:0], inliers...)
			best.Rotations[0] = rotation
			best.Translations[0] = translation
			best.Scales[0] = scale
			bestRatio = float64(len(*bestInliers)) / total
		}
	}
	return bestRatio
}

// computeMaxIterations returns the number of iterations needed to draw an
// all-inlier minimal sample with the configured failure probability, given
// the current inlier ratio, clamped to [MinIterations, MaxIterations].
// inlierRatio must be positive.
func (e *Estimator) computeMaxIterations(inlierRatio, logFailureProb float64) int {
	if inlierRatio == 1.0 {
		return e.params.MinIterations
	}

	// Log probability of producing a bad hypothesis. Subtracting epsilon
	// keeps it strictly negative when the ratio rounds to ~1.
	logProb := math.Log(1.0-math.Pow(inlierRatio, MinimalSampleSize)) - epsilon

	iterations := int(logFailureProb / logProb)
	if iterations < e.params.MinIterations {
		return e.params.MinIterations
	}
	if iterations > e.params.MaxIterations {
		return e.params.MaxIterations
	}
	return iterations
}

// Estimate runs the hypothesize-and-test loop and returns the best
// single-hypothesis solution found, or the identity transform when nothing
// beat it. The summary is reset and populated with iteration count,
// hypothesis count, the final inlier index set, and the final confidence.
//
// Fewer than MinimalSampleSize correspondences is a precondition violation:
// the call aborts with an error and no partial output. A solver failure on
// a drawn sample is expected (degenerate or outlier-contaminated samples)
// and is silently skipped.
func (e *Estimator) Estimate(priors Priors, correspondences []Correspondence, summary *Summary) (Solution, error) {
	if summary == nil {
		return Solution{}, fmt.Errorf("summary must not be nil")
	}
	if len(correspondences) < MinimalSampleSize {
		return Solution{}, fmt.Errorf("not enough correspondences: need at least %d, got %d",
			MinimalSampleSize, len(correspondences))
	}

	summary.Iterations = 0
	summary.Hypotheses = 0
	summary.Inliers = summary.Inliers[:0]
	summary.Confidence = 0

	e.resetIndices(len(correspondences))

	logFailureProb := math.Log(e.params.FailureProbability)
	maxIterations := e.params.MaxIterations
	best := IdentitySolution()
	inlierRatio := 0.0

	for summary.Iterations = 0; summary.Iterations < maxIterations; summary.Iterations++ {
		sample := e.sample(correspondences)

		input := ComputeInputDatum(sample)
		input.Priors = priors

		hypotheses, ok := e.solver.EstimateSimilarityTransformation(input)
		if !ok {
			// Degenerate sample; does not count as a hypothesis.
			continue
		}

		summary.Hypotheses += hypotheses.NumHypotheses()
		inlierRatio = e.updateBestSolution(correspondences, hypotheses, &best, &summary.Inliers)
		maxIterations = e.computeMaxIterations(inlierRatio, logFailureProb)
	}

	// Confidence uses the last observed ratio, matching the adaptive
	// schedule the loop actually ran with.
	summary.Confidence = 1.0 - math.Pow(1.0-math.Pow(inlierRatio, MinimalSampleSize), float64(summary.Iterations))
	return best, nil
}
