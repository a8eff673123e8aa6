package sched

// memState is the memory footprint of one scheduled op: the transient size
// while the op executes (inputs and outputs both resident) and the stable
// size after its dead inputs are released.
type memState struct {
	transient int64
	stable    int64
}

// MemStateVec records the live-memory trajectory of a partial schedule, one
// state per scheduled op, plus the running peak and the latest stable size.
//
// Sizes are signed: a trajectory computed relative to a group's entry starts
// at zero and goes negative when the group releases more ambient memory than
// it allocates. The true footprint is recovered when the trajectory is
// extended onto the ambient one.
type MemStateVec struct {
	states []memState
	latest int64
	peak   int64
}

// NewMemStateVec returns an empty trajectory starting at the given size
// (the sum of graph input sizes at the top level, zero inside groups).
func NewMemStateVec(initial uint64) MemStateVec {
	return MemStateVec{latest: int64(initial), peak: int64(initial)}
}

// Append extends the trajectory by one op that raises the footprint by inc
// while executing and releases dec afterwards.
func (v *MemStateVec) Append(inc, dec uint64) {
	transient := v.latest + int64(inc)
	stable := transient - int64(dec)
	v.states = append(v.states, memState{transient, stable})
	v.latest = stable
	if transient > v.peak {
		v.peak = transient
	}
}

// Extend appends another trajectory, shifted by the current latest stable
// size.
func (v *MemStateVec) Extend(other *MemStateVec) {
	base := v.latest
	for _, s := range other.states {
		v.states = append(v.states, memState{base + s.transient, base + s.stable})
	}
	if len(other.states) > 0 {
		v.latest = v.states[len(v.states)-1].stable
	}
	if base+other.peak > v.peak {
		v.peak = base + other.peak
	}
}

// Peak is the maximum transient size seen over the whole trajectory.
func (v *MemStateVec) Peak() int64 { return v.peak }

// Latest is the stable size after the last scheduled op.
func (v *MemStateVec) Latest() int64 { return v.latest }

// Len is the number of scheduled ops.
func (v *MemStateVec) Len() int { return len(v.states) }

// At returns the (transient, stable) pair of step i.
func (v *MemStateVec) At(i int) (int64, int64) {
	return v.states[i].transient, v.states[i].stable
}

// Clone returns an independent copy.
func (v *MemStateVec) Clone() MemStateVec {
	c := *v
	c.states = make([]memState, len(v.states))
	copy(c.states, v.states)
	return c
}
