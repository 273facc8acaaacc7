// Package query filters, sorts and pages report rows.
package query

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

var (
	// ErrComplianceRequired is returned when NonCompliantOnly is set on rows without compliance results
	ErrComplianceRequired = errors.New("non-compliant filter requires compliance results")

	// ErrUnknownSortField is returned for a sort field the row type does not declare
	ErrUnknownSortField = errors.New("unknown sort field")

	// ErrInvalidPage is returned for a negative offset or limit
	ErrInvalidPage = errors.New("invalid page")
)

// Memberships are the values a row can be filtered on
type Memberships struct {
	ClusterGroups []string
	Clusters      []string
	Departments   []string
	IDCs          []string
}

// Row is anything the engine can filter, sort and page
type Row interface {
	RowID() string
	Field(name string) (Value, bool)
	SortFields() []string
	Memberships() Memberships
	// ComplianceFlag returns the compliance flag and whether it was evaluated
	ComplianceFlag() (compliant bool, evaluated bool)
}

// FilterSpec selects rows. Dimensions are ANDed, values within one dimension are ORed.
// An empty dimension matches everything.
type FilterSpec struct {
	ClusterGroups    []string `json:"cluster_groups,omitempty"`
	Clusters         []string `json:"clusters,omitempty"`
	Departments      []string `json:"departments,omitempty"`
	IDCs             []string `json:"idcs,omitempty"`
	NonCompliantOnly bool     `json:"non_compliant_only,omitempty"`
}

// SortSpec orders rows by one declared field. Ties fall back to row id ascending.
type SortSpec struct {
	Field string `json:"field,omitempty"`
	Desc  bool   `json:"desc,omitempty"`
}

// PageSpec selects a window of the sorted rows. Limit 0 returns everything after Offset.
type PageSpec struct {
	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

// Validate rejects negative offsets and limits
func (p PageSpec) Validate() error {
	if p.Offset < 0 || p.Limit < 0 {
		return fmt.Errorf("%w: offset %d limit %d", ErrInvalidPage, p.Offset, p.Limit)
	}
	return nil
}

// Query filters, sorts and pages rows. It returns the page and the
// post-filter total. The input slice is not modified.
func Query[T Row](rows []T, filter FilterSpec, order SortSpec, page PageSpec) ([]T, int, error) {
	if err := page.Validate(); err != nil {
		return nil, 0, err
	}

	var zero T
	if order.Field != "" && !slices.Contains(zero.SortFields(), order.Field) {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownSortField, order.Field)
	}

	matched := make([]T, 0, len(rows))
	for _, row := range rows {
		ok, err := filter.Match(row)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			matched = append(matched, row)
		}
	}

	sortRows(matched, order)

	total := len(matched)
	if page.Offset >= total {
		return []T{}, total, nil
	}
	end := total
	if page.Limit > 0 && page.Limit < total-page.Offset {
		end = page.Offset + page.Limit
	}

	return matched[page.Offset:end], total, nil
}

// Match reports whether row passes the filter
func (f FilterSpec) Match(row Row) (bool, error) {
	if f.NonCompliantOnly {
		compliant, evaluated := row.ComplianceFlag()
		if !evaluated {
			return false, ErrComplianceRequired
		}
		if compliant {
			return false, nil
		}
	}

	m := row.Memberships()
	return anyOf(f.ClusterGroups, m.ClusterGroups) &&
		anyOf(f.Clusters, m.Clusters) &&
		anyOf(f.Departments, m.Departments) &&
		anyOf(f.IDCs, m.IDCs), nil
}

func anyOf(wanted, have []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}

func sortRows[T Row](rows []T, order SortSpec) {
	sort.SliceStable(rows, func(i, j int) bool {
		if order.Field != "" {
			a, _ := rows[i].Field(order.Field)
			b, _ := rows[j].Field(order.Field)

			switch {
			case a.IsAbsent() && !b.IsAbsent():
				return false
			case !a.IsAbsent() && b.IsAbsent():
				return true
			case !a.IsAbsent() && !b.IsAbsent():
				if c := a.compare(b); c != 0 {
					if order.Desc {
						return c > 0
					}
					return c < 0
				}
			}
		}
		return rows[i].RowID() < rows[j].RowID()
	})
}
