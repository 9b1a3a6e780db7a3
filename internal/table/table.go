// Package table holds the tidy observation table and the grouping logic that
// feeds the trend estimators.
package table

import (
	"sort"
	"time"
)

// Observation is a single water-quality measurement. Concentration is in mg/L.
// Discharge is streamflow in cubic feet per second and is only meaningful when
// HasDischarge is set.
type Observation struct {
	SiteID        string
	Parameter     string
	Basin         string
	Date          time.Time
	Concentration float64
	Discharge     float64
	HasDischarge  bool
}

// Table is an in-memory tidy table of observations. The pipeline treats it as
// read-only input; transforms return new tables.
type Table struct {
	rows []Observation
}

// New creates a table from a slice of observations. The slice is copied so the
// caller can keep mutating its own copy.
func New(rows []Observation) *Table {
	t := &Table{rows: make([]Observation, len(rows))}
	copy(t.rows, rows)
	return t
}

// Len returns the number of observations in the table.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns the backing rows. Callers must not modify the returned slice.
func (t *Table) Rows() []Observation {
	return t.rows
}

// Append returns a new table with the given observations added.
func (t *Table) Append(rows ...Observation) *Table {
	combined := make([]Observation, 0, len(t.rows)+len(rows))
	combined = append(combined, t.rows...)
	combined = append(combined, rows...)
	return &Table{rows: combined}
}

// AggregateDaily collapses same-day duplicates for each (site, parameter) to
// their mean concentration. After aggregation (site_id, parameter, date) is
// unique. Dates are truncated to midnight UTC.
func (t *Table) AggregateDaily() *Table {
	type dayKey struct {
		site      string
		parameter string
		day       time.Time
	}

	type accum struct {
		first          Observation
		concSum        float64
		dischargeSum   float64
		dischargeCount int
		count          int
	}

	groups := make(map[dayKey]*accum)
	order := make([]dayKey, 0)

	for _, obs := range t.rows {
		day := obs.Date.UTC().Truncate(24 * time.Hour)
		k := dayKey{site: obs.SiteID, parameter: obs.Parameter, day: day}
		a, ok := groups[k]
		if !ok {
			a = &accum{first: obs}
			groups[k] = a
			order = append(order, k)
		}
		a.concSum += obs.Concentration
		a.count++
		if obs.HasDischarge {
			a.dischargeSum += obs.Discharge
			a.dischargeCount++
		}
	}

	rows := make([]Observation, 0, len(order))
	for _, k := range order {
		a := groups[k]
		obs := Observation{
			SiteID:        a.first.SiteID,
			Parameter:     a.first.Parameter,
			Basin:         a.first.Basin,
			Date:          k.day,
			Concentration: a.concSum / float64(a.count),
		}
		if a.dischargeCount > 0 {
			obs.Discharge = a.dischargeSum / float64(a.dischargeCount)
			obs.HasDischarge = true
		}
		rows = append(rows, obs)
	}

	return &Table{rows: rows}
}

// FilterMonths keeps only observations whose calendar month is in the given
// set. Used to restrict analysis to the low-flow season. An empty month list
// returns the table unchanged.
func (t *Table) FilterMonths(months []time.Month) *Table {
	if len(months) == 0 {
		return t
	}

	keep := make(map[time.Month]bool, len(months))
	for _, m := range months {
		keep[m] = true
	}

	rows := make([]Observation, 0, len(t.rows))
	for _, obs := range t.rows {
		if keep[obs.Date.Month()] {
			rows = append(rows, obs)
		}
	}
	return &Table{rows: rows}
}

// SortByDate returns a new table sorted ascending by date. Ties are broken by
// site and parameter so the order is stable across runs.
func (t *Table) SortByDate() *Table {
	rows := make([]Observation, len(t.rows))
	copy(rows, t.rows)
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		if rows[i].SiteID != rows[j].SiteID {
			return rows[i].SiteID < rows[j].SiteID
		}
		return rows[i].Parameter < rows[j].Parameter
	})
	return &Table{rows: rows}
}

// DecimalYear converts a date to a fractional year, e.g. 2010-07-02 is close
// to 2010.5. Trend slopes are therefore expressed per year.
func DecimalYear(date time.Time) float64 {
	date = date.UTC()
	yearStart := time.Date(date.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	nextYear := time.Date(date.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	elapsed := date.Sub(yearStart).Seconds()
	total := nextYear.Sub(yearStart).Seconds()
	return float64(date.Year()) + elapsed/total
}
