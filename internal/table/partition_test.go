package table

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// monthlySeries builds a year of monthly observations for one site.
func monthlySeries(site, parameter, basin string, year int, value float64) []Observation {
	obs := make([]Observation, 12)
	for m := 0; m < 12; m++ {
		obs[m] = Observation{
			SiteID:        site,
			Parameter:     parameter,
			Basin:         basin,
			Date:          day(year, time.Month(m+1), 15),
			Concentration: value,
		}
	}
	return obs
}

func TestPartitionInvalidKey(t *testing.T) {
	tbl := New(monthlySeries("01", "sulfate", "tioga", 2010, 5))

	tests := []struct {
		name string
		keys []string
	}{
		{"empty key set", nil},
		{"unknown column", []string{"basin", "color"}},
		{"date is not a grouping column", []string{"date"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tbl.Partition(tt.keys)
			if !errors.Is(err, ErrInvalidGroupKey) {
				t.Errorf("expected ErrInvalidGroupKey, got %v", err)
			}
		})
	}
}

func TestPartitionCompleteness(t *testing.T) {
	// P1: the union of partitions reconstructs the table and partitions are
	// pairwise disjoint.
	var rows []Observation
	rows = append(rows, monthlySeries("01", "sulfate", "tioga", 2010, 5)...)
	rows = append(rows, monthlySeries("01", "chloride", "tioga", 2010, 2)...)
	rows = append(rows, monthlySeries("02", "sulfate", "pine", 2010, 7)...)

	set, err := New(rows).Partition([]string{ColumnBasin, ColumnParameter})
	if err != nil {
		t.Fatal(err)
	}

	total := 0
	counts := make(map[string]int)
	for _, p := range set.Partitions {
		total += len(p.Obs)
		for _, obs := range p.Obs {
			counts[fmt.Sprintf("%s|%s|%s", obs.SiteID, obs.Parameter, obs.Date)]++
		}
	}

	if total != len(rows) {
		t.Errorf("partitions hold %d rows, input had %d", total, len(rows))
	}
	for key, n := range counts {
		if n != 1 {
			t.Errorf("row %s appears in %d partitions", key, n)
		}
	}
}

func TestPartitionSortInvariant(t *testing.T) {
	// P2: every partition is non-decreasing in date, even when input is
	// shuffled.
	rows := []Observation{
		{SiteID: "01", Parameter: "sulfate", Basin: "tioga", Date: day(2012, 5, 1), Concentration: 3},
		{SiteID: "01", Parameter: "sulfate", Basin: "tioga", Date: day(2010, 5, 1), Concentration: 1},
		{SiteID: "01", Parameter: "sulfate", Basin: "tioga", Date: day(2011, 5, 1), Concentration: 2},
	}

	set, err := New(rows).Partition([]string{ColumnParameter})
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range set.Partitions {
		for i := 1; i < len(p.Obs); i++ {
			if p.Obs[i].Date.Before(p.Obs[i-1].Date) {
				t.Fatalf("partition %s not date-sorted at index %d", p.KeyString(), i)
			}
		}
	}
}

func TestPartitionDegenerateFlag(t *testing.T) {
	rows := []Observation{
		{SiteID: "01", Parameter: "sulfate", Basin: "tioga", Date: day(2010, 5, 1), Concentration: 1},
	}
	set, err := New(rows).Partition([]string{ColumnBasin})
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Partitions) != 1 {
		t.Fatalf("expected 1 partition, got %d", len(set.Partitions))
	}
	if !set.Partitions[0].Insufficient() {
		t.Error("single-observation partition should be flagged insufficient")
	}
}

func TestPartitionSparseCombinations(t *testing.T) {
	// Scenario D: 9 basins x 7 parameters with some combinations missing.
	// Output must hold exactly the combinations present, lexicographically
	// ordered, with no fabricated empty groups.
	var rows []Observation
	present := 0
	for b := 0; b < 9; b++ {
		for p := 0; p < 7; p++ {
			if (b+p)%3 == 0 {
				continue // missing combination
			}
			present++
			basin := fmt.Sprintf("basin-%d", b)
			param := fmt.Sprintf("param-%d", p)
			site := fmt.Sprintf("%02d", b)
			rows = append(rows, monthlySeries(site, param, basin, 2015, float64(p))...)
		}
	}

	set, err := New(rows).Partition([]string{ColumnBasin, ColumnParameter})
	if err != nil {
		t.Fatal(err)
	}

	if len(set.Partitions) != present {
		t.Errorf("expected %d partitions, got %d", present, len(set.Partitions))
	}
	for i := 1; i < len(set.Partitions); i++ {
		if !lessKey(set.Partitions[i-1].Key, set.Partitions[i].Key) {
			t.Errorf("partitions not in lexicographic key order at index %d: %v >= %v",
				i, set.Partitions[i-1].Key, set.Partitions[i].Key)
		}
	}
	for _, p := range set.Partitions {
		if len(p.Obs) == 0 {
			t.Errorf("fabricated empty partition %s", p.KeyString())
		}
	}
}

func TestPartitionIsPure(t *testing.T) {
	rows := monthlySeries("01", "sulfate", "tioga", 2010, 5)
	tbl := New(rows)
	before := make([]Observation, len(tbl.Rows()))
	copy(before, tbl.Rows())

	if _, err := tbl.Partition([]string{ColumnSiteID}); err != nil {
		t.Fatal(err)
	}

	for i := range before {
		if tbl.Rows()[i] != before[i] {
			t.Fatalf("partitioning mutated the input table at row %d", i)
		}
	}
}
