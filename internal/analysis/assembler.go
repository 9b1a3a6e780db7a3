// Package analysis applies a trend estimator to every partition of a tidy
// table and assembles the flat summary table that the rest of the system
// consumes.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/basinwatch/watertrend/internal/table"
	"github.com/basinwatch/watertrend/internal/trend"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Failure kinds recorded on summary rows that could not be computed.
const (
	FailureInsufficientData     = "insufficient_data"
	FailureInsufficientVariance = "insufficient_variance"
	FailureNonFiniteInput       = "non_finite_input"
)

// Config configures an assembly run. Alpha is required: the significance
// threshold is an analysis decision, not something the library should pick.
type Config struct {
	// Alpha is the significance threshold, exclusive on both ends of (0, 1).
	Alpha float64

	// Workers caps the number of concurrent partition fits. Zero or one
	// means sequential. Parallelism is a throughput optimization only;
	// output order and content are identical either way.
	Workers int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("alpha must be in (0, 1), got %v", c.Alpha)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	return nil
}

// SummaryRow is one partition's result. When Computed is false, Slope and
// PValue are NaN and FailureKind says why, so callers can tell "no trend"
// apart from "could not evaluate."
type SummaryRow struct {
	// Key holds the partition's grouping values, aligned with
	// Summary.Columns.
	Key []string `json:"key"`

	Slope  float64 `json:"slope"`
	PValue float64 `json:"p_value"`
	N      int     `json:"n"`

	Computed    bool   `json:"computed"`
	FailureKind string `json:"failure_kind,omitempty"`

	// Trend is the significance classification at the run's alpha.
	Trend bool `json:"trend"`

	Estimator string `json:"estimator"`
}

// Summary is the assembled result table, one row per partition, ordered
// lexicographically by key tuple.
type Summary struct {
	Columns   []string     `json:"columns"`
	Rows      []SummaryRow `json:"rows"`
	Alpha     float64      `json:"alpha"`
	Estimator string       `json:"estimator"`
}

// MarshalJSON renders NaN slope/p-value as null: rows that could not be
// computed must be representable, and JSON has no NaN.
func (r SummaryRow) MarshalJSON() ([]byte, error) {
	out := struct {
		Key         []string `json:"key"`
		Slope       *float64 `json:"slope"`
		PValue      *float64 `json:"p_value"`
		N           int      `json:"n"`
		Computed    bool     `json:"computed"`
		FailureKind string   `json:"failure_kind,omitempty"`
		Trend       bool     `json:"trend"`
		Estimator   string   `json:"estimator"`
	}{
		Key:         r.Key,
		N:           r.N,
		Computed:    r.Computed,
		FailureKind: r.FailureKind,
		Trend:       r.Trend,
		Estimator:   r.Estimator,
	}
	if !math.IsNaN(r.Slope) {
		out.Slope = &r.Slope
	}
	if !math.IsNaN(r.PValue) {
		out.PValue = &r.PValue
	}
	return json.Marshal(out)
}

// TrendPresent is the significance classifier: a trend is present when the
// row was computed and its p-value is below alpha.
func TrendPresent(row SummaryRow, alpha float64) bool {
	return row.Computed && row.PValue < alpha
}

// Assembler runs an estimator over a partition set.
type Assembler struct {
	cfg    Config
	logger *zap.SugaredLogger
}

// NewAssembler creates an assembler, validating the configuration.
func NewAssembler(cfg Config, logger *zap.SugaredLogger) (*Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Assembler{cfg: cfg, logger: logger}, nil
}

// Run fits the estimator to every partition and returns the summary.
// Estimator failures from the recoverable taxonomy (insufficient data,
// insufficient variance, non-finite input) are recorded on the row; they
// never abort the other partitions.
func (a *Assembler) Run(ctx context.Context, set *table.PartitionSet, est trend.Estimator) (*Summary, error) {
	rows := make([]SummaryRow, len(set.Partitions))

	if a.cfg.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.cfg.Workers)
		for i, p := range set.Partitions {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows[i] = a.fitOne(p, est)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, p := range set.Partitions {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			rows[i] = a.fitOne(p, est)
		}
	}

	for i := range rows {
		rows[i].Trend = TrendPresent(rows[i], a.cfg.Alpha)
	}

	return &Summary{
		Columns:   set.Columns,
		Rows:      rows,
		Alpha:     a.cfg.Alpha,
		Estimator: est.Name(),
	}, nil
}

// fitOne fits a single partition and maps estimator errors onto the row.
func (a *Assembler) fitOne(p *table.Partition, est trend.Estimator) SummaryRow {
	row := SummaryRow{
		Key:       p.Key,
		N:         len(p.Obs),
		Estimator: est.Name(),
		Slope:     math.NaN(),
		PValue:    math.NaN(),
	}

	res, err := est.Fit(trend.PointsFromObservations(p.Obs))
	if err != nil {
		row.FailureKind = failureKind(err)
		if a.logger != nil {
			a.logger.Debugw("partition not computed",
				"partition", p.KeyString(), "n", len(p.Obs), "reason", row.FailureKind)
		}
		return row
	}

	row.Slope = res.Slope
	row.PValue = res.PValue
	row.N = res.N
	row.Computed = true
	return row
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, trend.ErrInsufficientData):
		return FailureInsufficientData
	case errors.Is(err, trend.ErrInsufficientVariance):
		return FailureInsufficientVariance
	case errors.Is(err, trend.ErrNonFiniteInput):
		return FailureNonFiniteInput
	}
	return "error"
}
