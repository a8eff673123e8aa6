package sched

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/me/memsched/pkg/nn"
)

// schedResult is a scheduled op sequence together with its memory trajectory.
type schedResult struct {
	ops    []*nn.Op
	states MemStateVec
}

// partialResult is one DP memo entry: a partial schedule plus the serialized
// graph state (predecessor counts, value use counts) needed to extend it
// without re-traversing the graph.
type partialResult struct {
	schedResult
	// zeroIn holds the currently ready vertices, sorted by ID. Its
	// canonical key identifies the memo entry.
	zeroIn  []HierVertex
	predCnt map[HierVertex]int
	useCnt  map[*nn.Value]int
}

// betterResult reports whether a should replace b under the DP update
// relation: lower peak, then lower final stable size, then lexicographically
// smaller op-ID sequence.
func betterResult(a, b *schedResult) bool {
	if a.states.Peak() != b.states.Peak() {
		return a.states.Peak() < b.states.Peak()
	}
	if a.states.Latest() != b.states.Latest() {
		return a.states.Latest() < b.states.Latest()
	}
	for i := range a.ops {
		if i >= len(b.ops) {
			return false
		}
		if a.ops[i].ID() != b.ops[i].ID() {
			return a.ops[i].ID() < b.ops[i].ID()
		}
	}
	return false
}

// extractZeroIn moves vertices whose predecessor count reached zero from
// predCnt into zeroIn, keeping zeroIn sorted by ID.
func extractZeroIn(predCnt map[HierVertex]int, zeroIn *[]HierVertex) {
	for vert, cnt := range predCnt {
		if cnt == 0 {
			*zeroIn = append(*zeroIn, vert)
		}
	}
	for _, vert := range *zeroIn {
		delete(predCnt, vert)
	}
	sort.Slice(*zeroIn, func(i, j int) bool { return (*zeroIn)[i].ID() < (*zeroIn)[j].ID() })
}

// zeroInKey canonicalizes a sorted ready set into a map key so distinct
// exploration paths reaching the same set collide.
func zeroInKey(zeroIn []HierVertex) string {
	var sb strings.Builder
	for i, v := range zeroIn {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(v.ID()))
	}
	return sb.String()
}

func cloneCounts(m map[*nn.Value]int) map[*nn.Value]int {
	c := make(map[*nn.Value]int, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// replaceCounts overwrites dst with the contents of src in place.
func replaceCounts(dst, src map[*nn.Value]int) {
	for k := range dst {
		delete(dst, k)
	}
	for k, v := range src {
		dst[k] = v
	}
}

func equalCounts(a, b map[*nn.Value]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func sortedMemoKeys(memo map[string]*partialResult) []string {
	keys := make([]string, 0, len(memo))
	for k := range memo {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsVal(list []*nn.Value, v *nn.Value) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// scheduleSequence schedules a sequence (there is only one possible order)
// and computes the memory state of each op, decrementing the use-count map in
// place. Parameters are excluded from all bookkeeping.
func scheduleSequence(seq *Sequence, useCnt map[*nn.Value]int) schedResult {
	states := NewMemStateVec(0)
	for _, op := range seq.Ops {
		// Consume uses; inputs reaching zero die at this op.
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

		// The output may reuse a dying input's storage.
		var ovlVal *nn.Value
		if idx, ok := nn.OverlapInput(op); ok {
			if cand := op.Inputs[idx]; containsVal(killed, cand) {
				ovlVal = cand
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
			if v == ovlVal {
				// Its storage is retained, renamed to the output.
				continue
			}
			dec += v.Type.Size()
		}
		states.Append(inc, dec)

		for _, v := range killed {
			delete(useCnt, v)
		}
		for _, v := range op.Outputs {
			useCnt[v] = v.UseCount()
		}
	}
	return schedResult{ops: seq.Ops, states: states}
}

// groupRpo returns the group's sequences in reverse post-order from its
// exits, a valid topological order of the members.
func groupRpo(grp *Group) []*Sequence {
	visited := make(map[*Sequence]bool, len(grp.Seqs))
	var order []*Sequence
	var visit func(s *Sequence)
	visit = func(s *Sequence) {
		if visited[s] {
			return
		}
		visited[s] = true
		preds := append([]HierVertex(nil), s.preds...)
		sort.Slice(preds, func(i, j int) bool { return preds[i].ID() < preds[j].ID() })
		for _, p := range preds {
			visit(p.(*Sequence))
		}
		order = append(order, s)
	}
	roots := append([]*Sequence(nil), grp.OutFront...)
	sort.Slice(roots, func(i, j int) bool { return roots[i].id < roots[j].id })
	for _, r := range roots {
		visit(r)
	}
	return order
}

// scheduleGroupRpo schedules the group in reverse post-order. Almost always
// suboptimal but fast; usable whenever it cannot lift the ambient peak.
func scheduleGroupRpo(grp *Group, useCnt map[*nn.Value]int) schedResult {
	result := schedResult{states: NewMemStateVec(0)}
	for _, seq := range groupRpo(grp) {
		r := scheduleSequence(seq, useCnt)
		result.ops = append(result.ops, r.ops...)
		result.states.Extend(&r.states)
	}
	return result
}

// updateResult extends a partial schedule by one vertex result and merges it
// into the memo for the new ready set, keeping the better entry on collision.
func updateResult(vert HierVertex, cur *partialResult, vertResult schedResult,
	useCnt map[*nn.Value]int, memo map[string]*partialResult) {

	ops := make([]*nn.Op, 0, len(cur.ops)+len(vertResult.ops))
	ops = append(append(ops, cur.ops...), vertResult.ops...)
	states := cur.states.Clone()
	states.Extend(&vertResult.states)

	predCnt := make(map[HierVertex]int, len(cur.predCnt))
	for k, v := range cur.predCnt {
		predCnt[k] = v
	}
	for _, succ := range vert.base().succs {
		if _, ok := predCnt[succ]; ok {
			predCnt[succ]--
		}
	}

	zeroIn := make([]HierVertex, 0, len(cur.zeroIn))
	for _, v := range cur.zeroIn {
		if v != vert {
			zeroIn = append(zeroIn, v)
		}
	}
	extractZeroIn(predCnt, &zeroIn)

	cand := &partialResult{
		schedResult: schedResult{ops: ops, states: states},
		zeroIn:      zeroIn,
		predCnt:     predCnt,
		useCnt:      useCnt,
	}
	key := zeroInKey(zeroIn)
	if exist, ok := memo[key]; !ok || betterResult(&cand.schedResult, &exist.schedResult) {
		memo[key] = cand
	}
}

// scheduleGroupDp searches all topological orders of the group's sequences
// with the ready-set DP, minimizing peak. Returns the final use-count state
// alongside the result. ok is false when the memo exceeds maxMemo entries; the
// caller then falls back to the RPO schedule.
func scheduleGroupDp(grp *Group, useCnt map[*nn.Value]int, maxMemo int) (schedResult, map[*nn.Value]int, bool) {
	predCnt := make(map[HierVertex]int, len(grp.Seqs))
	for _, seq := range grp.Seqs {
		predCnt[seq] = len(seq.preds)
	}
	var zeroIn []HierVertex
	extractZeroIn(predCnt, &zeroIn)

	memo := map[string]*partialResult{
		zeroInKey(zeroIn): {
			schedResult: schedResult{states: NewMemStateVec(0)},
			zeroIn:      zeroIn,
			predCnt:     predCnt,
			useCnt:      cloneCounts(useCnt),
		},
	}

	for range grp.Seqs {
		next := make(map[string]*partialResult)
		for _, key := range sortedMemoKeys(memo) {
			cur := memo[key]
			for _, vert := range cur.zeroIn {
				uc := cloneCounts(cur.useCnt)
				vertResult := scheduleSequence(vert.(*Sequence), uc)
				updateResult(vert, cur, vertResult, uc, next)
				if maxMemo > 0 && len(next) > maxMemo {
					return schedResult{}, nil, false
				}
			}
		}
		memo = next
	}

	final, ok := memo[""]
	if !ok {
		// Some member never became ready; the caller keeps the RPO order.
		return schedResult{}, nil, false
	}
	return final.schedResult, final.useCnt, true
}

// updateGroupUseCount applies a group's aggregate effect to the ambient
// use-count map without rescheduling it: consumed counts are drained and
// produced values installed with their external use counts.
func updateGroupUseCount(grp *Group, useCnt map[*nn.Value]int) {
	for _, c := range grp.Consumed {
		useCnt[c.Val] -= c.N
		if useCnt[c.Val] == 0 {
			delete(useCnt, c.Val)
		}
	}
	for _, p := range grp.Produced {
		useCnt[p.Val] = p.N
	}
}

// groupContextKey derives the memoization key for scheduling grp in the
// ambient context described by useCnt: the group identity plus, per consumed
// value, whether the group kills it.
func groupContextKey(grp *Group, useCnt map[*nn.Value]int) string {
	var sb strings.Builder
	sb.WriteByte('g')
	sb.WriteString(strconv.Itoa(grp.id))
	sb.WriteByte(':')
	for _, c := range grp.Consumed {
		if useCnt[c.Val] == c.N {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// hierScheduler runs the ready-set DP over the top-level hierarchical
// vertices, delegating per-vertex scheduling to the sequence and group
// schedulers. groupMemo is owned by the refinement loop and shared across
// scheduler instances.
type hierScheduler struct {
	hier      *HierGraph
	groupMemo map[string]schedResult
	opts      Options
	logger    *slog.Logger
}

func (s *hierScheduler) schedule() (*schedResult, error) {
	verts := s.hier.TopVerts()
	predCnt := make(map[HierVertex]int, len(verts))
	for _, v := range verts {
		predCnt[v] = len(v.base().preds)
	}
	nVert := len(predCnt)

	useCnt := make(map[*nn.Value]int)
	initSize := uint64(0)
	for _, val := range s.hier.Graph.Inputs {
		useCnt[val] = val.UseCount()
		initSize += val.Type.Size()
	}

	var zeroIn []HierVertex
	extractZeroIn(predCnt, &zeroIn)
	memo := map[string]*partialResult{
		zeroInKey(zeroIn): {
			schedResult: schedResult{states: NewMemStateVec(initSize)},
			zeroIn:      zeroIn,
			predCnt:     predCnt,
			useCnt:      useCnt,
		},
	}

	for i := 0; i < nVert; i++ {
		next := make(map[string]*partialResult)
		for _, key := range sortedMemoKeys(memo) {
			cur := memo[key]
			for _, vert := range cur.zeroIn {
				uc := cloneCounts(cur.useCnt)
				vertResult, err := s.scheduleVertex(vert, uc, &cur.states)
				if err != nil {
					return nil, err
				}
				updateResult(vert, cur, vertResult, uc, next)
			}
		}
		memo = next
	}

	final, ok := memo[""]
	if !ok {
		return nil, fmt.Errorf("hierarchical graph is not schedulable: %d vertices never became ready", nVert)
	}
	return &final.schedResult, nil
}

// scheduleVertex schedules one top-level vertex. For groups it consults the
// cross-iteration context memo, then tries the cheap RPO order, and only
// invests DP effort when RPO would lift the ambient peak.
func (s *hierScheduler) scheduleVertex(vert HierVertex, useCnt map[*nn.Value]int,
	prev *MemStateVec) (schedResult, error) {

	switch v := vert.(type) {
	case *Sequence:
		return scheduleSequence(v, useCnt), nil

	case *Group:
		key := groupContextKey(v, useCnt)
		if r, ok := s.groupMemo[key]; ok {
			updateGroupUseCount(v, useCnt)
			return r, nil
		}

		rpoCnt := cloneCounts(useCnt)
		rpoResult := scheduleGroupRpo(v, rpoCnt)

		// The RPO order cannot lift the ambient peak: accept it without
		// memoizing (its acceptability depends on this context's headroom).
		if rpoResult.states.Peak()+prev.Latest() <= prev.Peak() {
			replaceCounts(useCnt, rpoCnt)
			return rpoResult, nil
		}

		dpResult, dpCnt, ok := scheduleGroupDp(v, useCnt, s.opts.MaxMemoEntries)
		if !ok {
			s.logger.Warn("group DP memo overflow, keeping rpo order",
				"group", v.ID(), "seqs", len(v.Seqs))
			replaceCounts(useCnt, rpoCnt)
			return rpoResult, nil
		}
		if !equalCounts(dpCnt, rpoCnt) {
			return schedResult{}, fmt.Errorf("group %d: divergent use counts at group exit", v.ID())
		}
		replaceCounts(useCnt, rpoCnt)
		s.groupMemo[key] = dpResult
		return dpResult, nil

	default:
		return schedResult{}, fmt.Errorf("hierarchical vertex %d has unknown kind", vert.ID())
	}
}
