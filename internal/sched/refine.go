package sched

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/me/memsched/internal/lifetime"
	"github.com/me/memsched/pkg/nn"
)

// Options tunes the hierarchical scheduler.
type Options struct {
	// MaxGroupSize caps the number of sequences clustered into one group,
	// bounding the group DP's antichain width.
	MaxGroupSize int
	// MaxMemoEntries caps a single group DP memo; on overflow the group
	// falls back to its RPO order. Zero selects the default of 4096; a
	// negative value means unbounded.
	MaxMemoEntries int
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxGroupSize <= 0 {
		o.MaxGroupSize = 12
	}
	if o.MaxMemoEntries == 0 {
		o.MaxMemoEntries = 4096
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Result is a finished schedule.
type Result struct {
	// Order lists every op of the graph in execution order.
	Order []*nn.Op
	// Peak is the maximum sum of live tensor sizes over the schedule.
	Peak uint64
	// Iterations counts refinement-loop passes, including the final one
	// that confirmed the fixed point.
	Iterations int
}

// Schedule computes a memory-minimizing execution order for the graph. It
// builds the hierarchical graph, repeatedly schedules it with the DP
// scheduler, and between passes dissolves the groups responsible for the
// current peak until no further improvement is possible.
func Schedule(g *nn.Graph, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.With("component", "sched")

	hier := NewHierGraph(g)
	hier.JoinSequences()
	hier.MakeGroups(opts.MaxGroupSize)
	logger.Debug("hierarchical graph built",
		"ops", len(g.Ops), "verts", len(hier.TopVerts()), "groups", len(hier.groups))

	// Group results survive ungrouping of other groups, so the context memo
	// is shared across iterations.
	groupMemo := make(map[string]schedResult)

	var lastSched []*nn.Op
	lastPeak := uint64(math.MaxUint64)
	var lastPeakValues []*nn.Value
	iter := 0

	for {
		iter++
		scheduler := &hierScheduler{hier: hier, groupMemo: groupMemo, opts: opts, logger: logger}
		final, err := scheduler.schedule()
		if err != nil {
			return nil, err
		}
		order := final.ops

		lt, err := lifetime.Compute(order, g)
		if err != nil {
			return nil, fmt.Errorf("analyze schedule: %w", err)
		}
		peak := lt.Peak()
		peakValues := lt.PeakValues()
		if len(peakValues) == 0 && len(g.Ops) > 0 {
			return nil, fmt.Errorf("no peak-resident values found at peak %d", peak)
		}
		logger.Debug("schedule pass", "iter", iter, "peak", peak, "peak_values", len(peakValues))

		// Dissolve groups holding or following the peak definers to expose
		// more DP freedom.
		changed := false
		for _, seq := range hier.peakSequences(peakValues) {
			if seq.group != nil {
				hier.ungroup(seq.group)
				changed = true
			}
			if hier.ungroupSuccs(seq) {
				changed = true
			}
		}

		if peak == lastPeak && equalValues(peakValues, lastPeakValues) && !changed {
			break
		}

		lastSched = order
		lastPeak = peak
		lastPeakValues = peakValues
	}

	return &Result{Order: lastSched, Peak: lastPeak, Iterations: iter}, nil
}

// equalValues compares two ID-sorted value sets.
func equalValues(a, b []*nn.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
