package analysis

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/basinwatch/watertrend/internal/table"
	"github.com/basinwatch/watertrend/internal/trend"
)

func buildTable(t *testing.T) *table.Table {
	t.Helper()

	var rows []table.Observation
	addSeries := func(site, param, basin string, years int, value func(i int) float64) {
		for i := 0; i < years; i++ {
			rows = append(rows, table.Observation{
				SiteID:        site,
				Parameter:     param,
				Basin:         basin,
				Date:          time.Date(2000+i, time.June, 15, 0, 0, 0, 0, time.UTC),
				Concentration: value(i),
			})
		}
	}

	// Rising sulfate in tioga, flat chloride in pine, and a degenerate
	// single-observation group in cowanesque.
	addSeries("01", "sulfate", "tioga", 20, func(i int) float64 { return float64(i) })
	addSeries("02", "chloride", "pine", 20, func(int) float64 { return 4.0 })
	addSeries("03", "sulfate", "cowanesque", 1, func(int) float64 { return 7.0 })

	return table.New(rows)
}

func partitionFixture(t *testing.T) *table.PartitionSet {
	t.Helper()
	set, err := buildTable(t).Partition([]string{table.ColumnBasin, table.ColumnParameter})
	if err != nil {
		t.Fatal(err)
	}
	return set
}

func TestAssemblerOneRowPerPartition(t *testing.T) {
	set := partitionFixture(t)

	asm, err := NewAssembler(Config{Alpha: 0.05}, nil)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := asm.Run(context.Background(), set, trend.NewMannKendall(trend.MannKendallConfig{}))
	if err != nil {
		t.Fatal(err)
	}

	if len(summary.Rows) != len(set.Partitions) {
		t.Fatalf("expected %d rows, got %d", len(set.Partitions), len(summary.Rows))
	}

	byKey := make(map[string]SummaryRow)
	for _, row := range summary.Rows {
		byKey[row.Key[0]+"/"+row.Key[1]] = row
	}

	// Degenerate partition gets a sentinel row, not an omission.
	degen, ok := byKey["cowanesque/sulfate"]
	if !ok {
		t.Fatal("degenerate partition missing from summary")
	}
	if degen.Computed {
		t.Error("degenerate partition marked computed")
	}
	if degen.FailureKind != FailureInsufficientData {
		t.Errorf("expected failure kind %q, got %q", FailureInsufficientData, degen.FailureKind)
	}
	if !math.IsNaN(degen.Slope) || !math.IsNaN(degen.PValue) {
		t.Error("uncomputed row should carry NaN slope and p-value")
	}
	if degen.Trend {
		t.Error("uncomputed row must never classify as a trend")
	}

	rising := byKey["tioga/sulfate"]
	if !rising.Computed || !rising.Trend {
		t.Errorf("rising series should be a computed significant trend: %+v", rising)
	}
	flat := byKey["pine/chloride"]
	if !flat.Computed {
		t.Errorf("flat series should compute: %+v", flat)
	}
	if flat.Trend {
		t.Error("flat series misclassified as trend")
	}
}

func TestAssemblerDeterminism(t *testing.T) {
	// P5: re-running assembly yields identical output, sequential or
	// parallel.
	set := partitionFixture(t)
	est := trend.NewMannKendall(trend.MannKendallConfig{})

	run := func(workers int) *Summary {
		asm, err := NewAssembler(Config{Alpha: 0.05, Workers: workers}, nil)
		if err != nil {
			t.Fatal(err)
		}
		summary, err := asm.Run(context.Background(), set, est)
		if err != nil {
			t.Fatal(err)
		}
		return summary
	}

	first := run(1)
	second := run(1)
	parallel := run(4)

	if !summariesEqual(first, second) {
		t.Error("sequential re-run produced different output")
	}
	if !summariesEqual(first, parallel) {
		t.Error("parallel run produced different output than sequential")
	}
}

// summariesEqual compares summaries treating NaN as equal to NaN.
func summariesEqual(a, b *Summary) bool {
	if !reflect.DeepEqual(a.Columns, b.Columns) || a.Alpha != b.Alpha || a.Estimator != b.Estimator {
		return false
	}
	if len(a.Rows) != len(b.Rows) {
		return false
	}
	for i := range a.Rows {
		ra, rb := a.Rows[i], b.Rows[i]
		if !reflect.DeepEqual(ra.Key, rb.Key) || ra.N != rb.N ||
			ra.Computed != rb.Computed || ra.FailureKind != rb.FailureKind ||
			ra.Trend != rb.Trend || ra.Estimator != rb.Estimator {
			return false
		}
		if !floatsEqualNaN(ra.Slope, rb.Slope) || !floatsEqualNaN(ra.PValue, rb.PValue) {
			return false
		}
	}
	return true
}

func floatsEqualNaN(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

func TestAssemblerRowOrder(t *testing.T) {
	set := partitionFixture(t)
	asm, err := NewAssembler(Config{Alpha: 0.05}, nil)
	if err != nil {
		t.Fatal(err)
	}
	summary, err := asm.Run(context.Background(), set, trend.NewOLS(trend.OLSConfig{}))
	if err != nil {
		t.Fatal(err)
	}

	// Rows follow the partition set's lexicographic key order.
	for i, row := range summary.Rows {
		if !reflect.DeepEqual(row.Key, set.Partitions[i].Key) {
			t.Errorf("row %d key %v does not match partition key %v", i, row.Key, set.Partitions[i].Key)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Alpha: 0.05}, false},
		{"valid with workers", Config{Alpha: 0.01, Workers: 8}, false},
		{"zero alpha", Config{}, true},
		{"alpha too high", Config{Alpha: 1}, true},
		{"negative alpha", Config{Alpha: -0.05}, true},
		{"negative workers", Config{Alpha: 0.05, Workers: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAssembler(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewAssembler(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			}
		})
	}
}

func TestTrendPresent(t *testing.T) {
	tests := []struct {
		name string
		row  SummaryRow
		want bool
	}{
		{"significant", SummaryRow{Computed: true, PValue: 0.01}, true},
		{"not significant", SummaryRow{Computed: true, PValue: 0.2}, false},
		{"boundary is not significant", SummaryRow{Computed: true, PValue: 0.05}, false},
		{"uncomputed never significant", SummaryRow{Computed: false, PValue: math.NaN()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrendPresent(tt.row, 0.05); got != tt.want {
				t.Errorf("TrendPresent = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssemblerContextCancellation(t *testing.T) {
	set := partitionFixture(t)
	asm, err := NewAssembler(Config{Alpha: 0.05}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := asm.Run(ctx, set, trend.NewOLS(trend.OLSConfig{})); err == nil {
		t.Error("expected error from cancelled context")
	}
}
