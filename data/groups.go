package data

import (
	"sort"

	"github.com/adaizjx/abess/pkg/errors"
)

// Groups partitions the working columns into groups that enter and leave an active
// set together. Groups are numbered 0..Len()-1 in order of their first column.
type Groups struct {
	members [][]int
	of      []int
	labels  []int
}

// Singletons returns the partition of p columns into groups of one.
func Singletons(p int) *Groups {
	labels := make([]int, p)
	for j := range labels {
		labels[j] = j
	}
	return newGroups(labels)
}

// NewGroups builds the partition given one label per column. Columns sharing a label
// form a group; labels need not be contiguous or sorted.
func NewGroups(labels []int, p int) (*Groups, error) {
	if len(labels) != p {
		return nil, errors.NewDimensionError("data.NewGroups", p, len(labels), 1)
	}
	return newGroups(labels), nil
}

func newGroups(labels []int) *Groups {
	g := &Groups{of: make([]int, len(labels))}
	id := make(map[int]int)
	for j, l := range labels {
		i, ok := id[l]
		if !ok {
			i = len(g.members)
			id[l] = i
			g.members = append(g.members, nil)
			g.labels = append(g.labels, l)
		}
		g.members[i] = append(g.members[i], j)
		g.of[j] = i
	}
	return g
}

// Len returns the number of groups.
func (g *Groups) Len() int { return len(g.members) }

// P returns the number of columns partitioned.
func (g *Groups) P() int { return len(g.of) }

// Members returns the sorted columns of group i. The slice must not be modified.
func (g *Groups) Members(i int) []int { return g.members[i] }

// Of returns the group of column j.
func (g *Groups) Of(j int) int { return g.of[j] }

// Label returns the caller's label of group i.
func (g *Groups) Label(i int) int { return g.labels[i] }

// Singleton reports whether every group has one column.
func (g *Groups) Singleton() bool { return len(g.members) == len(g.of) }

// Cover returns the sorted groups containing at least one of cols.
func (g *Groups) Cover(cols []int) []int {
	seen := make(map[int]bool, len(cols))
	out := make([]int, 0, len(cols))
	for _, j := range cols {
		i := g.of[j]
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// Columns returns the sorted union of the columns of groups.
func (g *Groups) Columns(groups []int) []int {
	var out []int
	for _, i := range groups {
		out = append(out, g.members[i]...)
	}
	sort.Ints(out)
	return out
}

// restrict returns the partition of the columns cols, keeping group labels.
func (g *Groups) restrict(cols []int) *Groups {
	labels := make([]int, len(cols))
	for k, j := range cols {
		labels[k] = g.labels[g.of[j]]
	}
	return newGroups(labels)
}
