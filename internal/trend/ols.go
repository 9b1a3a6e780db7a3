package trend

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// defaultOLSMinPoints is the smallest series OLS will fit. Two points define
// a line with zero residual degrees of freedom, so the slope t-test is
// undefined below three points.
const defaultOLSMinPoints = 3

// OLSConfig configures an OLS estimator.
type OLSConfig struct {
	// MinPoints overrides the minimum series length. Values below 3 (and
	// zero) fall back to the default.
	MinPoints int
}

// OLS fits value = a + b*t by ordinary least squares and tests the slope with
// the standard two-sided t-test.
//
// This is the naive baseline: the t-test's independence assumption is
// violated by serially correlated environmental series, so its p-values are
// optimistic there. It is retained for comparison against Mann-Kendall, not
// as the production estimator.
type OLS struct {
	cfg OLSConfig
}

// NewOLS creates an OLS estimator with the given configuration.
func NewOLS(cfg OLSConfig) *OLS {
	if cfg.MinPoints < defaultOLSMinPoints {
		cfg.MinPoints = defaultOLSMinPoints
	}
	return &OLS{cfg: cfg}
}

// Name implements Estimator.
func (o *OLS) Name() string {
	return "ols"
}

// Fit implements Estimator.
func (o *OLS) Fit(points []Point) (Result, error) {
	n := len(points)
	if n < o.cfg.MinPoints {
		return Result{}, fmt.Errorf("%w: have %d points, need %d", ErrInsufficientData, n, o.cfg.MinPoints)
	}
	if err := checkFinite(points); err != nil {
		return Result{}, err
	}
	if !hasTimeVariance(points) {
		return Result{}, fmt.Errorf("%w: all %d observations share one time value", ErrInsufficientVariance, n)
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range points {
		xs[i] = p.T
		ys[i] = p.Value
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	// Standard error of the slope from the residual sum of squares.
	xbar := stat.Mean(xs, nil)
	var rss, sxx float64
	for i := range xs {
		resid := ys[i] - (alpha + beta*xs[i])
		rss += resid * resid
		sxx += (xs[i] - xbar) * (xs[i] - xbar)
	}

	df := float64(n - 2)
	se := math.Sqrt(rss / df / sxx)

	var pValue float64
	switch {
	case se == 0 && beta == 0:
		// Perfectly flat series: no evidence of trend.
		pValue = 1
	case se == 0:
		// Perfect non-zero linear fit.
		pValue = 0
	default:
		tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		pValue = 2 * tDist.Survival(math.Abs(beta/se))
	}

	return Result{Slope: beta, PValue: pValue, N: n}, nil
}
