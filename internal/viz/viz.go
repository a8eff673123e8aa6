// Package viz renders operator graphs and schedules as Graphviz DOT text.
package viz

import (
	"fmt"
	"strings"

	"github.com/me/memsched/pkg/nn"
)

// builder accumulates a DOT digraph with stable node identifiers.
type builder struct {
	sb    strings.Builder
	ids   map[any]string
	next  int
	edges []string
}

func newBuilder(name string) *builder {
	b := &builder{ids: make(map[any]string)}
	fmt.Fprintf(&b.sb, "digraph %q {\n", name)
	b.sb.WriteString("  rankdir=TB;\n")
	return b
}

func (b *builder) node(key any, label, shape string) {
	id := fmt.Sprintf("n%d", b.next)
	b.next++
	b.ids[key] = id
	fmt.Fprintf(&b.sb, "  %s [label=%q shape=%s];\n", id, label, shape)
}

func (b *builder) edge(from, to any) {
	f, ok1 := b.ids[from]
	t, ok2 := b.ids[to]
	if !ok1 || !ok2 {
		return
	}
	b.edges = append(b.edges, fmt.Sprintf("  %s -> %s;\n", f, t))
}

func (b *builder) String() string {
	for _, e := range b.edges {
		b.sb.WriteString(e)
	}
	b.sb.WriteString("}\n")
	return b.sb.String()
}

// Graph renders the operator graph: input and output tensors as ellipses,
// ops as boxes labeled name:type.
func Graph(g *nn.Graph) string {
	b := newBuilder(g.Name)
	for _, in := range g.Inputs {
		b.node(in, in.Name, "ellipse")
	}
	for _, op := range g.Ops {
		b.node(op, fmt.Sprintf("%s:%s", op.Name, op.Type), "box")
	}
	for _, out := range g.Outputs {
		b.node(out, out.Name, "ellipse")
	}

	for _, op := range g.Ops {
		for _, in := range op.Inputs {
			if in.Kind == nn.KindInput {
				b.edge(in, op)
			}
		}
		for _, pred := range op.Preds {
			b.edge(pred, op)
		}
	}
	for _, out := range g.Outputs {
		b.edge(out.Def, out)
	}
	return b.String()
}

// Schedule renders the scheduled graph with position-prefixed op labels, so
// the chosen linearization can be read off the drawing.
func Schedule(order []*nn.Op, g *nn.Graph) (string, error) {
	if len(order) != len(g.Ops) {
		return "", fmt.Errorf("schedule has %d ops, graph has %d", len(order), len(g.Ops))
	}

	b := newBuilder(g.Name)
	for _, in := range g.Inputs {
		b.node(in, in.Name, "ellipse")
	}
	for i, op := range order {
		b.node(op, fmt.Sprintf("%d:%s", i, op.Type), "box")
	}
	for _, out := range g.Outputs {
		b.node(out, out.Name, "ellipse")
	}

	for _, op := range g.Ops {
		for _, in := range op.Inputs {
			if in.Kind == nn.KindInput {
				b.edge(in, op)
			}
		}
		for _, pred := range op.Preds {
			b.edge(pred, op)
		}
	}
	for _, out := range g.Outputs {
		b.edge(out.Def, out)
	}
	return b.String(), nil
}
