package trend

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Series length limits for Mann-Kendall. Two points is the hard floor at
// which the statistic exists at all; eight is the default below which the
// normal approximation of S is not worth trusting.
const (
	mannKendallFloor   = 2
	defaultMKMinPoints = 8
)

// MannKendallConfig configures a Mann-Kendall estimator.
type MannKendallConfig struct {
	// MinPoints overrides the minimum series length. Zero falls back to the
	// default of 8; values below the hard floor of 2 are raised to it.
	MinPoints int
}

// MannKendall runs the Mann-Kendall test for monotonic trend and reports
// Sen's slope as the trend magnitude.
//
// The test is non-parametric: it is robust to distributional shape and
// outliers, which is why it is preferred over OLS for concentration series.
// It still assumes independent observations, so like OLS it is not a cure
// for serial correlation; it is simply the less fragile of the two.
type MannKendall struct {
	cfg MannKendallConfig
}

// NewMannKendall creates a Mann-Kendall estimator with the given
// configuration.
func NewMannKendall(cfg MannKendallConfig) *MannKendall {
	if cfg.MinPoints == 0 {
		cfg.MinPoints = defaultMKMinPoints
	}
	if cfg.MinPoints < mannKendallFloor {
		cfg.MinPoints = mannKendallFloor
	}
	return &MannKendall{cfg: cfg}
}

// Name implements Estimator.
func (m *MannKendall) Name() string {
	return "mann-kendall"
}

// Fit implements Estimator.
func (m *MannKendall) Fit(points []Point) (Result, error) {
	n := len(points)
	if n < m.cfg.MinPoints {
		return Result{}, fmt.Errorf("%w: have %d points, need %d", ErrInsufficientData, n, m.cfg.MinPoints)
	}
	if err := checkFinite(points); err != nil {
		return Result{}, err
	}
	if !hasTimeVariance(points) {
		return Result{}, fmt.Errorf("%w: all %d observations share one time value", ErrInsufficientVariance, n)
	}

	s := kendallS(points)
	varS := kendallVariance(points)

	// Continuity-corrected normal approximation for S.
	var z float64
	switch {
	case varS == 0:
		// Every value tied: S is identically zero.
		z = 0
	case s > 0:
		z = (float64(s) - 1) / math.Sqrt(varS)
	case s < 0:
		z = (float64(s) + 1) / math.Sqrt(varS)
	}

	pValue := 2 * distuv.UnitNormal.Survival(math.Abs(z))
	if pValue > 1 {
		pValue = 1
	}

	slope, err := senSlope(points)
	if err != nil {
		return Result{}, err
	}

	return Result{Slope: slope, PValue: pValue, N: n}, nil
}

// kendallS computes S = sum over i<j of sign(value[j] - value[i]).
func kendallS(points []Point) int {
	s := 0
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			switch {
			case points[j].Value > points[i].Value:
				s++
			case points[j].Value < points[i].Value:
				s--
			}
		}
	}
	return s
}

// kendallVariance computes the variance of S under the null hypothesis,
// corrected for tied values:
//
//	Var(S) = [n(n-1)(2n+5) - sum over tie groups of t(t-1)(2t+5)] / 18
func kendallVariance(points []Point) float64 {
	n := float64(len(points))
	varS := n * (n - 1) * (2*n + 5)

	ties := make(map[float64]int)
	for _, p := range points {
		ties[p.Value]++
	}
	for _, count := range ties {
		if count > 1 {
			t := float64(count)
			varS -= t * (t - 1) * (2*t + 5)
		}
	}

	return varS / 18
}

// senSlope computes the median of all pairwise slopes over pairs with
// distinct times. Robust to outliers in a way the OLS slope is not.
func senSlope(points []Point) (float64, error) {
	slopes := make([]float64, 0, len(points)*(len(points)-1)/2)
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			dt := points[j].T - points[i].T
			if dt == 0 {
				continue
			}
			slopes = append(slopes, (points[j].Value-points[i].Value)/dt)
		}
	}
	if len(slopes) == 0 {
		return 0, fmt.Errorf("%w: no pair of observations with distinct times", ErrInsufficientVariance)
	}

	sort.Float64s(slopes)
	mid := len(slopes) / 2
	if len(slopes)%2 == 1 {
		return slopes[mid], nil
	}
	return (slopes[mid-1] + slopes[mid]) / 2, nil
}
