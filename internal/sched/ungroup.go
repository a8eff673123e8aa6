package sched

import (
	"sort"

	"github.com/me/memsched/pkg/nn"
)

// findEdgesToRestore maps each frontier sequence of a dissolving group to the
// external neighbors that must be reconnected to it. Which neighbor feeds
// which frontier is decided by the pre-grouping adjacency: for a plain
// sequence neighbor its own frozen edge list, for a group neighbor the frozen
// edge lists of its facing frontier sequences.
func findEdgesToRestore(
	frontier []*Sequence,
	neighbors []HierVertex,
	frozenEdges func(*Sequence) []HierVertex,
	facingFrontier func(*Group) []*Sequence,
) map[*Sequence][]HierVertex {
	restore := make(map[*Sequence][]HierVertex, len(frontier))
	inFrontier := make(map[*Sequence]bool, len(frontier))
	for _, seq := range frontier {
		restore[seq] = nil
		inFrontier[seq] = true
	}

	link := func(target HierVertex, neighbor HierVertex) {
		seq, ok := target.(*Sequence)
		if !ok || !inFrontier[seq] {
			return
		}
		restore[seq] = addVert(restore[seq], neighbor)
	}

	for _, vert := range neighbors {
		if grp, ok := vert.(*Group); ok {
			for _, facing := range facingFrontier(grp) {
				for _, target := range frozenEdges(facing) {
					link(target, vert)
				}
			}
		} else {
			for _, target := range frozenEdges(vert.(*Sequence)) {
				link(target, vert)
			}
		}
	}
	return restore
}

// ungroup dissolves grp: its sequences become top-level vertices again and
// the edges across the former boundary are restored from the frozen
// pre-grouping adjacency.
func (h *HierGraph) ungroup(grp *Group) {
	if grp.dissolved {
		return
	}

	// Reconnect external predecessors with the input frontier.
	inRestore := findEdgesToRestore(grp.InFront, grp.preds,
		func(s *Sequence) []HierVertex { return s.origSuccs },
		func(g *Group) []*Sequence { return g.OutFront })
	for _, front := range grp.InFront {
		for _, neighbor := range inRestore[front] {
			front.preds = addVert(front.preds, neighbor)
			nb := neighbor.base()
			nb.succs = removeVert(nb.succs, grp)
			nb.succs = addVert(nb.succs, front)
		}
	}

	// Reconnect external successors with the output frontier.
	outRestore := findEdgesToRestore(grp.OutFront, grp.succs,
		func(s *Sequence) []HierVertex { return s.origPreds },
		func(g *Group) []*Sequence { return g.InFront })
	for _, front := range grp.OutFront {
		for _, neighbor := range outRestore[front] {
			front.succs = addVert(front.succs, neighbor)
			nb := neighbor.base()
			nb.preds = removeVert(nb.preds, grp)
			nb.preds = addVert(nb.preds, front)
		}
	}

	for _, seq := range grp.Seqs {
		seq.group = nil
	}
	grp.dissolved = true
}

// ungroupSuccs dissolves every group among seq's successors, repeating while
// dissolutions expose new successor groups. Reports whether anything changed.
func (h *HierGraph) ungroupSuccs(seq *Sequence) bool {
	changed := false
	for {
		var target *Group
		for _, succ := range seq.succs {
			if grp, ok := succ.(*Group); ok && !grp.dissolved {
				target = grp
				break
			}
		}
		if target == nil {
			return changed
		}
		h.ungroup(target)
		changed = true
	}
}

// peakSequences maps a set of peak-resident values to the sequences defining
// them, in ID order. Values without a defining op (graph inputs) are skipped.
func (h *HierGraph) peakSequences(peakValues []*nn.Value) []*Sequence {
	set := make(map[*Sequence]bool)
	for _, v := range peakValues {
		if v.Def == nil {
			continue
		}
		set[h.opSeq[v.Def]] = true
	}
	seqs := make([]*Sequence, 0, len(set))
	for s := range set {
		seqs = append(seqs, s)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i].id < seqs[j].id })
	return seqs
}
