package nn

import "fmt"

// DType is the element type of a tensor.
type DType string

const (
	F32  DType = "f32"
	F16  DType = "f16"
	I64  DType = "i64"
	I32  DType = "i32"
	I8   DType = "i8"
	U8   DType = "u8"
	Bool DType = "bool"
)

// ElemSize returns the size of one element in bytes, or an error for an
// unknown dtype.
func (d DType) ElemSize() (uint64, error) {
	switch d {
	case F32, I32:
		return 4, nil
	case F16:
		return 2, nil
	case I64:
		return 8, nil
	case I8, U8, Bool:
		return 1, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q", string(d))
	}
}

// TensorType describes the element type and shape of a tensor value.
type TensorType struct {
	DType DType
	Dims  []int64
}

// Size returns the total byte size of a tensor of this type. Unknown dtypes
// are rejected at parse time, so Size treats them as zero-sized here.
func (t TensorType) Size() uint64 {
	elem, err := t.DType.ElemSize()
	if err != nil {
		return 0
	}
	n := uint64(1)
	for _, d := range t.Dims {
		if d <= 0 {
			return 0
		}
		n *= uint64(d)
	}
	return n * elem
}

// ValueKind classifies a tensor value within the graph.
type ValueKind string

const (
	// KindParam is a constant weight; excluded from memory accounting.
	KindParam ValueKind = "param"
	// KindInput is a graph input, alive before the first op executes.
	KindInput ValueKind = "input"
	// KindIntermediate is produced and consumed inside the graph.
	KindIntermediate ValueKind = "intermediate"
	// KindOutput is a graph output; it stays alive until the schedule ends.
	KindOutput ValueKind = "output"
)

// Value is one typed tensor in the computation graph.
type Value struct {
	Name string
	Kind ValueKind
	Type TensorType

	// Def is the op producing this value. Nil for params and graph inputs.
	Def *Op
	// Uses lists consuming ops in op order, one entry per input slot that
	// references this value (an op reading the same value twice appears
	// twice).
	Uses []*Op

	id int
}

// ID is the stable construction index of the value, assigned by Graph.Link.
func (v *Value) ID() int { return v.id }

// UseCount is the number of times the value must be consumed before its
// storage can be released. Graph outputs carry one extra use so they are
// never released.
func (v *Value) UseCount() int {
	n := len(v.Uses)
	if v.Kind == KindOutput {
		n++
	}
	return n
}

func (v *Value) String() string {
	return fmt.Sprintf("%s(%s)", v.Name, v.Kind)
}
