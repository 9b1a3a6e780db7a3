// Package trend implements the per-partition trend estimators: an ordinary
// least squares baseline and the Mann-Kendall test with Sen's slope.
//
// Both estimators are configured with an explicit config value at the call
// site; there is no package-level default estimator state.
package trend

import (
	"errors"
	"math"

	"github.com/basinwatch/watertrend/internal/table"
)

// Sentinel errors for the estimator taxonomy. All are recoverable at the
// partition level; the assembler records them per row instead of aborting.
var (
	// ErrInsufficientData means the series is shorter than the estimator's
	// minimum length.
	ErrInsufficientData = errors.New("insufficient data for trend estimation")

	// ErrInsufficientVariance means every time value in the series is
	// identical, so a slope over time is undefined.
	ErrInsufficientVariance = errors.New("time axis has no variance")

	// ErrNonFiniteInput means a NaN or Inf was found in the series.
	ErrNonFiniteInput = errors.New("non-finite value in input series")
)

// Point is one (time, value) pair. T is a decimal year so slopes come out in
// value units per year.
type Point struct {
	T     float64
	Value float64
}

// Result describes a fitted trend.
type Result struct {
	// Slope in value units per year.
	Slope float64

	// PValue is the two-sided p-value for the null hypothesis of no trend,
	// in [0, 1].
	PValue float64

	// N is the number of points the fit used.
	N int
}

// Estimator fits a trend to a single time-ordered series. Implementations
// must be safe for concurrent use by multiple goroutines: the assembler fans
// partitions out over a worker pool.
type Estimator interface {
	Name() string
	Fit(points []Point) (Result, error)
}

// PointsFromObservations converts a date-sorted observation slice into the
// (decimal year, concentration) series the estimators consume.
func PointsFromObservations(obs []table.Observation) []Point {
	points := make([]Point, len(obs))
	for i, o := range obs {
		points[i] = Point{T: table.DecimalYear(o.Date), Value: o.Concentration}
	}
	return points
}

// checkFinite rejects series containing NaN or Inf in either axis.
func checkFinite(points []Point) error {
	for _, p := range points {
		if math.IsNaN(p.T) || math.IsInf(p.T, 0) ||
			math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return ErrNonFiniteInput
		}
	}
	return nil
}

// hasTimeVariance reports whether at least two points have distinct times.
func hasTimeVariance(points []Point) bool {
	for i := 1; i < len(points); i++ {
		if points[i].T != points[0].T {
			return true
		}
	}
	return false
}
