// Package reconcile implements the diff-sync engine shared by the
// synchronisation jobs: a per-entity operation counter, typed field
// descriptors, and a driver that resolves, diffs, persists and
// orphan-collects local records against a foreign source.
package reconcile

import (
	"fmt"
	"sort"

	"geoadmin-control/internal/domain"
)

// Operation is a counted reconciliation outcome.
type Operation string

// Counted operations.
const (
	OpAdded    Operation = "added"
	OpUpdated  Operation = "updated"
	OpRemoved  Operation = "removed"
	OpCleared  Operation = "cleared"
	OpEnabled  Operation = "enabled"
	OpDisabled Operation = "disabled"
)

// InSync is the single report line of a run that changed nothing.
const InSync = "nothing to be done, already in sync"

// Counter tallies operations per entity. The zero value is not usable; use
// NewCounter.
type Counter struct {
	counts map[string]map[Operation]int
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: map[string]map[Operation]int{}}
}

// Increment adds one to the (entity, op) tally.
func (c *Counter) Increment(entity string, op Operation) {
	c.Add(entity, op, 1)
}

// Add adds n to the (entity, op) tally. Non-positive n is ignored.
func (c *Counter) Add(entity string, op Operation, n int) {
	if n <= 0 {
		return
	}
	ops, ok := c.counts[entity]
	if !ok {
		ops = map[Operation]int{}
		c.counts[entity] = ops
	}
	ops[op] += n
}

// AddDeletes records per-entity delete counts, cascaded rows included.
func (c *Counter) AddDeletes(op Operation, counts domain.DeleteCounts) {
	for entity, n := range counts {
		c.Add(entity, op, n)
	}
}

// Count returns the tally for (entity, op).
func (c *Counter) Count(entity string, op Operation) int {
	return c.counts[entity][op]
}

// Empty reports whether nothing was counted.
func (c *Counter) Empty() bool {
	for _, ops := range c.counts {
		for _, n := range ops {
			if n > 0 {
				return false
			}
		}
	}
	return true
}

// Merge adds every tally of other into c.
func (c *Counter) Merge(other *Counter) {
	other.Each(func(entity string, op Operation, n int) {
		c.Add(entity, op, n)
	})
}

// Each calls fn for every non-zero tally, sorted by entity then operation.
func (c *Counter) Each(fn func(entity string, op Operation, n int)) {
	entities := make([]string, 0, len(c.counts))
	for e := range c.counts {
		entities = append(entities, e)
	}
	sort.Strings(entities)

	for _, e := range entities {
		ops := make([]string, 0, len(c.counts[e]))
		for op := range c.counts[e] {
			ops = append(ops, string(op))
		}
		sort.Strings(ops)
		for _, op := range ops {
			if n := c.counts[e][Operation(op)]; n > 0 {
				fn(e, Operation(op), n)
			}
		}
	}
}

// Report renders one "N entity(s) operation" line per non-zero tally, or the
// single InSync line when nothing was counted.
func (c *Counter) Report() []string {
	var lines []string
	c.Each(func(entity string, op Operation, n int) {
		lines = append(lines, fmt.Sprintf("%d %s(s) %s", n, entity, op))
	})
	if len(lines) == 0 {
		return []string{InSync}
	}
	return lines
}
