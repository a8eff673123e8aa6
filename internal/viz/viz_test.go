package viz

import (
	"strings"
	"testing"

	"github.com/me/memsched/pkg/nn"
)

func smallGraph(t *testing.T) *nn.Graph {
	t.Helper()
	x := &nn.Value{Name: "x", Kind: nn.KindInput, Type: nn.TensorType{DType: nn.F32, Dims: []int64{1}}}
	h := &nn.Value{Name: "h", Kind: nn.KindIntermediate, Type: nn.TensorType{DType: nn.F32, Dims: []int64{1}}}
	y := &nn.Value{Name: "y", Kind: nn.KindOutput, Type: nn.TensorType{DType: nn.F32, Dims: []int64{1}}}
	g := &nn.Graph{
		Name: "small",
		Ops: []*nn.Op{
			{Name: "a", Type: "Gemm", Inputs: []*nn.Value{x}, Outputs: []*nn.Value{h}},
			{Name: "b", Type: "Relu", Inputs: []*nn.Value{h}, Outputs: []*nn.Value{y}},
		},
		Inputs:  []*nn.Value{x},
		Outputs: []*nn.Value{y},
	}
	if err := g.Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}
	return g
}

func TestGraph(t *testing.T) {
	g := smallGraph(t)
	dot := Graph(g)

	for _, want := range []string{
		`digraph "small" {`,
		`label="x"`,
		`label="a:Gemm"`,
		`label="b:Relu"`,
		`label="y"`,
		"n0 -> n1;",
		"n1 -> n2;",
		"n2 -> n3;",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
}

func TestSchedule(t *testing.T) {
	g := smallGraph(t)
	dot, err := Schedule(g.Ops, g)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	for _, want := range []string{`label="0:Gemm"`, `label="1:Relu"`} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}

	if _, err := Schedule(g.Ops[:1], g); err == nil {
		t.Error("short schedule accepted")
	}
}

func TestGraph_Deterministic(t *testing.T) {
	g := smallGraph(t)
	if Graph(g) != Graph(g) {
		t.Error("DOT output is not deterministic")
	}
}
