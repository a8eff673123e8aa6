package sched

import (
	"math/rand"
	"sort"

	"github.com/me/memsched/pkg/nn"
)

// RandomSample draws one topological order of the graph uniformly at each
// step, for benchmarking against the hierarchical scheduler. The caller
// supplies the RNG so samples are reproducible.
func RandomSample(g *nn.Graph, rng *rand.Rand) []*nn.Op {
	predCnt := make(map[*nn.Op]int, len(g.Ops))
	var ready []*nn.Op
	for _, op := range g.Ops {
		predCnt[op] = len(op.Preds)
		if len(op.Preds) == 0 {
			ready = append(ready, op)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].ID() < ready[j].ID() })

	order := make([]*nn.Op, 0, len(g.Ops))
	for len(ready) > 0 {
		i := rng.Intn(len(ready))
		op := ready[i]
		ready = append(ready[:i], ready[i+1:]...)
		order = append(order, op)
		for _, succ := range op.Succs {
			predCnt[succ]--
			if predCnt[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}
	return order
}
