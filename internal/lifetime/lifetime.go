// Package lifetime analyzes the live ranges and memory footprint of a
// scheduled computation graph. It replays an op order with the same
// kill/overlap rules the scheduler uses, so the peak it reports matches the
// scheduler's memory-state trajectory exactly.
package lifetime

import (
	"fmt"
	"math"

	"github.com/me/memsched/pkg/nn"
)

// StepSize is the transient live size while the op at Step executes.
type StepSize struct {
	Step int
	Size uint64
}

// Lifetime holds per-value live ranges and per-step sizes for one schedule.
type Lifetime struct {
	order []*nn.Op
	graph *nn.Graph

	// birth and death are step indices. Graph inputs are born at -1; values
	// alive at the end (graph outputs, unconsumed results) die at MaxInt.
	// Params are excluded entirely.
	birth map[*nn.Value]int
	death map[*nn.Value]int

	transient []uint64
	initSize  uint64
	peak      uint64
}

// Compute replays order over the graph and derives live ranges and sizes.
// The order must be a topological permutation of the graph's ops.
func Compute(order []*nn.Op, g *nn.Graph) (*Lifetime, error) {
	if len(order) != len(g.Ops) {
		return nil, fmt.Errorf("schedule has %d ops, graph has %d", len(order), len(g.Ops))
	}
	scheduled := make(map[*nn.Op]bool, len(order))
	for _, op := range order {
		if scheduled[op] {
			return nil, fmt.Errorf("op %s scheduled twice", op.Name)
		}
		scheduled[op] = true
	}
	done := make(map[*nn.Op]bool, len(order))
	for _, op := range order {
		for _, pred := range op.Preds {
			if !done[pred] {
				return nil, fmt.Errorf("op %s scheduled before its predecessor %s", op.Name, pred.Name)
			}
		}
		done[op] = true
	}

	lt := &Lifetime{
		order: order,
		graph: g,
		birth: make(map[*nn.Value]int),
		death: make(map[*nn.Value]int),
	}

	useCnt := make(map[*nn.Value]int)
	for _, v := range g.Inputs {
		useCnt[v] = v.UseCount()
		lt.birth[v] = -1
		lt.initSize += v.Type.Size()
	}

	stable := lt.initSize
	lt.peak = lt.initSize
	lt.transient = make([]uint64, len(order))

	for step, op := range order {
		var killed []*nn.Value
		for _, v := range op.Inputs {
			if v.Kind == nn.KindParam {
				continue
			}
			useCnt[v]--
			if useCnt[v] == 0 {
				killed = append(killed, v)
			}
		}

		var ovlVal *nn.Value
		if idx, ok := nn.OverlapInput(op); ok {
			cand := op.Inputs[idx]
			for _, k := range killed {
				if k == cand {
					ovlVal = cand
				}
			}
		}

		inc := uint64(0)
		if ovlVal == nil {
			for _, v := range op.Outputs {
				inc += v.Type.Size()
			}
		}
		dec := uint64(0)
		for _, v := range killed {
			if v != ovlVal {
				dec += v.Type.Size()
			}
		}

		tr := stable + inc
		stable = tr - dec
		lt.transient[step] = tr
		if tr > lt.peak {
			lt.peak = tr
		}

		for _, v := range killed {
			delete(useCnt, v)
			lt.death[v] = step
		}
		for _, v := range op.Outputs {
			useCnt[v] = v.UseCount()
			lt.birth[v] = step
		}
	}

	// Whatever is still counted stays alive past the schedule.
	for v := range useCnt {
		lt.death[v] = math.MaxInt
	}
	return lt, nil
}

// Peak is the maximum transient live size over the schedule, including the
// initial footprint of the graph inputs.
func (lt *Lifetime) Peak() uint64 { return lt.peak }

// SizeRange yields the per-step transient sizes in schedule order.
func (lt *Lifetime) SizeRange() []StepSize {
	sizes := make([]StepSize, len(lt.transient))
	for i, s := range lt.transient {
		sizes[i] = StepSize{Step: i, Size: s}
	}
	return sizes
}

// Birth returns the step the value came alive, or false if it never did
// (params, values of other graphs).
func (lt *Lifetime) Birth(v *nn.Value) (int, bool) {
	b, ok := lt.birth[v]
	return b, ok
}

// Death returns the step consuming the value's last use; math.MaxInt for
// values alive at the end of the schedule.
func (lt *Lifetime) Death(v *nn.Value) (int, bool) {
	d, ok := lt.death[v]
	return d, ok
}

// AliveAt returns the values live while the op at step executes, in ID
// order. A value killed at this step is still alive during it, and an output
// aliasing a dying input is reported alongside it.
func (lt *Lifetime) AliveAt(step int) []*nn.Value {
	var alive []*nn.Value
	for _, v := range lt.graph.Values() {
		b, ok := lt.birth[v]
		if !ok || b > step {
			continue
		}
		if d, ok := lt.death[v]; ok && d < step {
			continue
		}
		alive = append(alive, v)
	}
	return alive
}

// PeakValues returns the union of values alive at every step whose transient
// size equals the peak, in ID order. When no step reaches the peak (it is
// the initial input footprint), the graph inputs are the peak residents.
func (lt *Lifetime) PeakValues() []*nn.Value {
	set := make(map[*nn.Value]bool)
	hit := false
	for step, s := range lt.transient {
		if s != lt.peak {
			continue
		}
		hit = true
		for _, v := range lt.AliveAt(step) {
			set[v] = true
		}
	}
	if !hit {
		for _, v := range lt.graph.Inputs {
			set[v] = true
		}
	}
	values := make([]*nn.Value, 0, len(set))
	for _, v := range lt.graph.Values() {
		if set[v] {
			values = append(values, v)
		}
	}
	return values
}

// EstimatePeak computes the peak live size of an order without keeping the
// full analysis.
func EstimatePeak(order []*nn.Op, g *nn.Graph) (uint64, error) {
	lt, err := Compute(order, g)
	if err != nil {
		return 0, err
	}
	return lt.Peak(), nil
}
