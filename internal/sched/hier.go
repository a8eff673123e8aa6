package sched

import (
	"sort"

	"github.com/me/memsched/pkg/nn"
)

// HierVertex is a vertex of the hierarchical graph: either a Sequence or a
// Group.
type HierVertex interface {
	ID() int
	base() *hierBase
}

// hierBase carries the identity and adjacency shared by both vertex kinds.
// origPreds/origSuccs freeze the adjacency as it was before any grouping so
// ungrouping can restore precise cross-boundary edges later.
type hierBase struct {
	id        int
	preds     []HierVertex
	succs     []HierVertex
	origPreds []HierVertex
	origSuccs []HierVertex
}

func (b *hierBase) ID() int { return b.id }

func (b *hierBase) base() *hierBase { return b }

// Sequence is a maximal branch-free chain of ops collapsed into one vertex.
// Its internal op order is fixed at construction.
type Sequence struct {
	hierBase
	Ops []*nn.Op

	// group is the owning group, nil when the sequence is top-level.
	group *Group
}

// ValueCount pairs a value with a use count contributed by or visible outside
// a group.
type ValueCount struct {
	Val *nn.Value
	N   int
}

// Group is a single-entry/single-exit cluster of sequences scheduled as one
// DP sub-problem.
type Group struct {
	hierBase
	Seqs     []*Sequence
	InFront  []*Sequence
	OutFront []*Sequence

	// Consumed counts, per outside value, the uses contributed by ops of
	// this group. Produced lists values defined inside with their use count
	// visible outside. Both are ordered by value ID.
	Consumed []ValueCount
	Produced []ValueCount

	dissolved bool
}

// HierGraph is the two-level view of an operator graph: sequences produced by
// chain collapsing and groups produced by region clustering.
type HierGraph struct {
	Graph *nn.Graph

	seqs   []*Sequence
	groups []*Group
	opSeq  map[*nn.Op]*Sequence
	nextID int
}

// SeqOf returns the sequence containing the op.
func (h *HierGraph) SeqOf(op *nn.Op) *Sequence { return h.opSeq[op] }

// TopVerts returns the current top-level vertices (ungrouped sequences and
// live groups) in ID order.
func (h *HierGraph) TopVerts() []HierVertex {
	var verts []HierVertex
	for _, s := range h.seqs {
		if s.group == nil {
			verts = append(verts, s)
		}
	}
	for _, g := range h.groups {
		if !g.dissolved {
			verts = append(verts, g)
		}
	}
	sort.Slice(verts, func(i, j int) bool { return verts[i].ID() < verts[j].ID() })
	return verts
}

// NewHierGraph builds the initial hierarchical graph with one sequence per
// op and edges projected from operator adjacency.
func NewHierGraph(g *nn.Graph) *HierGraph {
	h := &HierGraph{
		Graph: g,
		opSeq: make(map[*nn.Op]*Sequence, len(g.Ops)),
	}
	for _, op := range g.Ops {
		seq := &Sequence{hierBase: hierBase{id: h.nextID}, Ops: []*nn.Op{op}}
		h.nextID++
		h.seqs = append(h.seqs, seq)
		h.opSeq[op] = seq
	}
	for _, op := range g.Ops {
		from := h.opSeq[op]
		for _, succ := range op.Succs {
			to := h.opSeq[succ]
			from.succs = addVert(from.succs, to)
			to.preds = addVert(to.preds, from)
		}
	}
	return h
}

// JoinSequences collapses straight-line chains: a vertex with a single
// successor whose only predecessor it is gets merged into its predecessor.
func (h *HierGraph) JoinSequences() {
	dead := make(map[*Sequence]bool)
	for _, a := range h.seqs {
		if dead[a] {
			continue
		}
		for len(a.succs) == 1 {
			b, ok := a.succs[0].(*Sequence)
			if !ok || len(b.preds) != 1 {
				break
			}
			a.Ops = append(a.Ops, b.Ops...)
			a.succs = append(a.succs[:0], b.succs...)
			for _, s := range b.succs {
				replaceVert(s.base().preds, b, a)
			}
			for _, op := range b.Ops {
				h.opSeq[op] = a
			}
			dead[b] = true
		}
	}
	live := h.seqs[:0]
	for _, s := range h.seqs {
		if !dead[s] {
			live = append(live, s)
		}
	}
	h.seqs = live
}

// snapshotEdges freezes the pre-grouping adjacency of every sequence.
func (h *HierGraph) snapshotEdges() {
	for _, s := range h.seqs {
		s.origPreds = append([]HierVertex(nil), s.preds...)
		s.origSuccs = append([]HierVertex(nil), s.succs...)
	}
}

// MakeGroups clusters single-entry/single-exit regions rooted at branching
// sequences into groups of at most maxSize sequences.
func (h *HierGraph) MakeGroups(maxSize int) {
	h.snapshotEdges()
	for _, entry := range h.seqs {
		if entry.group != nil || len(entry.succs) < 2 {
			continue
		}
		members, exit := h.findRegion(entry, maxSize)
		if members == nil {
			continue
		}
		h.formGroup(members, entry, exit)
	}
}

// findRegion grows a region from the branch at entry until every path
// reconverges on a single exit sequence. It fails (returns nil) when a side
// entry breaks the single-entry shape, when a group or an already-grouped
// sequence would be swallowed, or when the region exceeds maxSize.
func (h *HierGraph) findRegion(entry *Sequence, maxSize int) ([]*Sequence, *Sequence) {
	region := map[HierVertex]bool{entry: true}
	open := make(map[HierVertex]bool)
	for _, s := range entry.succs {
		open[s] = true
	}

	allPredsIn := func(v HierVertex) bool {
		for _, p := range v.base().preds {
			if !region[p] {
				return false
			}
		}
		return true
	}

	for {
		if len(open) == 1 {
			var exit HierVertex
			for v := range open {
				exit = v
			}
			seq, ok := exit.(*Sequence)
			if ok && seq.group == nil && allPredsIn(exit) {
				if len(region)+1 > maxSize {
					return nil, nil
				}
				region[exit] = true
				members := make([]*Sequence, 0, len(region))
				for v := range region {
					members = append(members, v.(*Sequence))
				}
				sort.Slice(members, func(i, j int) bool { return members[i].id < members[j].id })
				return members, seq
			}
		}

		// Admit the lowest-ID open vertex whose predecessors are all in the
		// region. If none qualifies the region has a side entry and cannot
		// form a group.
		cands := make([]HierVertex, 0, len(open))
		for v := range open {
			cands = append(cands, v)
		}
		sort.Slice(cands, func(i, j int) bool { return cands[i].ID() < cands[j].ID() })

		admitted := false
		for _, u := range cands {
			seq, ok := u.(*Sequence)
			if !ok || seq.group != nil {
				return nil, nil
			}
			if !allPredsIn(u) {
				continue
			}
			if len(region)+1 > maxSize {
				return nil, nil
			}
			region[u] = true
			delete(open, u)
			if len(seq.succs) == 0 {
				// Dead end before reconvergence; no single exit exists.
				return nil, nil
			}
			for _, s := range seq.succs {
				if !region[s] {
					open[s] = true
				}
			}
			admitted = true
			break
		}
		if !admitted {
			return nil, nil
		}
	}
}

// formGroup materializes a region as a group: frontier edges move from the
// entry/exit sequences to the group vertex, and the consumed/produced value
// accounting is derived from the member ops.
func (h *HierGraph) formGroup(members []*Sequence, entry, exit *Sequence) {
	grp := &Group{
		hierBase: hierBase{id: h.nextID},
		Seqs:     members,
		InFront:  []*Sequence{entry},
		OutFront: []*Sequence{exit},
	}
	h.nextID++

	for _, p := range append([]HierVertex(nil), entry.preds...) {
		replaceVert(p.base().succs, entry, grp)
		grp.preds = addVert(grp.preds, p)
	}
	entry.preds = nil
	for _, s := range append([]HierVertex(nil), exit.succs...) {
		replaceVert(s.base().preds, exit, grp)
		grp.succs = addVert(grp.succs, s)
	}
	exit.succs = nil

	inGroup := make(map[*nn.Op]bool)
	for _, seq := range members {
		seq.group = grp
		for _, op := range seq.Ops {
			inGroup[op] = true
		}
	}

	consumed := make(map[*nn.Value]int)
	produced := make(map[*nn.Value]int)
	for _, seq := range members {
		for _, op := range seq.Ops {
			for _, v := range op.Inputs {
				if v.Kind == nn.KindParam {
					continue
				}
				if v.Def == nil || !inGroup[v.Def] {
					consumed[v]++
				}
			}
			for _, v := range op.Outputs {
				ext := 0
				for _, u := range v.Uses {
					if !inGroup[u] {
						ext++
					}
				}
				if v.Kind == nn.KindOutput {
					ext++
				}
				if ext > 0 {
					produced[v] = ext
				}
			}
		}
	}
	grp.Consumed = sortedCounts(consumed)
	grp.Produced = sortedCounts(produced)

	h.groups = append(h.groups, grp)
}

func sortedCounts(m map[*nn.Value]int) []ValueCount {
	counts := make([]ValueCount, 0, len(m))
	for v, n := range m {
		counts = append(counts, ValueCount{v, n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Val.ID() < counts[j].Val.ID() })
	return counts
}

// addVert appends v if not present.
func addVert(list []HierVertex, v HierVertex) []HierVertex {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// removeVert deletes v if present, preserving order.
func removeVert(list []HierVertex, v HierVertex) []HierVertex {
	for i, x := range list {
		if x == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// replaceVert substitutes old with repl in place.
func replaceVert(list []HierVertex, old, repl HierVertex) {
	for i, x := range list {
		if x == old {
			list[i] = repl
			return
		}
	}
}
