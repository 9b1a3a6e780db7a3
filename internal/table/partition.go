package table

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidGroupKey is returned when a requested grouping column does not
// exist on the observation record. This aborts a run before any partitioning
// happens: a bad group key is a configuration mistake, not a data problem.
var ErrInvalidGroupKey = errors.New("invalid group key")

// Grouping column names understood by the partitioner.
const (
	ColumnBasin     = "basin"
	ColumnParameter = "parameter"
	ColumnSiteID    = "site_id"
)

// keySeparator joins key column values into a single map key. Unit separator
// is not going to show up in basin names or USGS site numbers.
const keySeparator = "\x1f"

// Partition is one group of observations sharing a key tuple, sorted
// ascending by date. The sort happens at construction time so estimators
// always see a valid time series.
type Partition struct {
	// Key holds the values of the grouping columns, in the order the columns
	// were requested.
	Key []string

	// Obs is the partition's observations, non-decreasing in date.
	Obs []Observation
}

// Insufficient reports whether the partition is too small to fit any trend.
// Degenerate partitions are kept and flagged, never dropped: the summary
// table must show "could not evaluate" rather than omit the group.
func (p *Partition) Insufficient() bool {
	return len(p.Obs) < 2
}

// KeyString renders the key tuple for logs and error messages.
func (p *Partition) KeyString() string {
	return strings.Join(p.Key, "/")
}

// PartitionSet is the output of Partition: disjoint groups whose union is the
// input table, ordered lexicographically by key tuple.
type PartitionSet struct {
	// Columns are the grouping column names, in request order.
	Columns []string

	// Partitions is sorted lexicographically by key tuple.
	Partitions []*Partition
}

// Partition splits the table into per-key groups. keys must be a non-empty
// subset of the grouping columns (basin, parameter, site_id); anything else
// returns ErrInvalidGroupKey before any partitioning work is done.
func (t *Table) Partition(keys []string) (*PartitionSet, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no grouping columns given", ErrInvalidGroupKey)
	}
	for _, k := range keys {
		if !validGroupColumn(k) {
			return nil, fmt.Errorf("%w: %q (valid: %s, %s, %s)",
				ErrInvalidGroupKey, k, ColumnBasin, ColumnParameter, ColumnSiteID)
		}
	}

	byKey := make(map[string]*Partition)
	for _, obs := range t.rows {
		values := make([]string, len(keys))
		for i, k := range keys {
			values[i] = groupColumnValue(obs, k)
		}
		mapKey := strings.Join(values, keySeparator)
		p, ok := byKey[mapKey]
		if !ok {
			p = &Partition{Key: values}
			byKey[mapKey] = p
		}
		p.Obs = append(p.Obs, obs)
	}

	set := &PartitionSet{
		Columns:    append([]string(nil), keys...),
		Partitions: make([]*Partition, 0, len(byKey)),
	}
	for _, p := range byKey {
		sort.SliceStable(p.Obs, func(i, j int) bool {
			return p.Obs[i].Date.Before(p.Obs[j].Date)
		})
		set.Partitions = append(set.Partitions, p)
	}

	// Lexicographic order over the key tuple keeps output deterministic.
	sort.Slice(set.Partitions, func(i, j int) bool {
		return lessKey(set.Partitions[i].Key, set.Partitions[j].Key)
	})

	return set, nil
}

func validGroupColumn(name string) bool {
	switch name {
	case ColumnBasin, ColumnParameter, ColumnSiteID:
		return true
	}
	return false
}

func groupColumnValue(obs Observation, column string) string {
	switch column {
	case ColumnBasin:
		return obs.Basin
	case ColumnParameter:
		return obs.Parameter
	case ColumnSiteID:
		return obs.SiteID
	}
	// Partition validates columns up front, so this is unreachable.
	return ""
}

func lessKey(a, b []string) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
