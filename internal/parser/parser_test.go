package parser

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/me/memsched/pkg/model"
)

func testParser() *Parser {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const mlpDoc = `
name: mlp
tensors:
  x:   {dtype: f32, dims: [1, 4], kind: input}
  w1:  {dtype: f32, dims: [4, 8], kind: param}
  h1:  {dtype: f32, dims: [1, 8]}
  h1r: {dtype: f32, dims: [1, 8]}
  w2:  {dtype: f32, dims: [8, 2], kind: param}
  y:   {dtype: f32, dims: [1, 2]}
ops:
  - {name: fc1, type: Gemm, inputs: [x, w1], outputs: [h1]}
  - {name: act1, type: Relu, inputs: [h1], outputs: [h1r]}
  - {name: fc2, type: Gemm, inputs: [h1r, w2], outputs: [y]}
outputs: [y]
`

func TestParse_MLP(t *testing.T) {
	g, err := testParser().Parse([]byte(mlpDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if g.Name != "mlp" {
		t.Errorf("Name = %q, want mlp", g.Name)
	}
	if len(g.Ops) != 3 {
		t.Fatalf("ops = %d, want 3", len(g.Ops))
	}
	if len(g.Inputs) != 1 || g.Inputs[0].Name != "x" {
		t.Errorf("Inputs = %v, want [x]", g.Inputs)
	}
	if len(g.Params) != 2 {
		t.Errorf("params = %d, want 2", len(g.Params))
	}
	if len(g.Outputs) != 1 || g.Outputs[0].Name != "y" {
		t.Errorf("Outputs = %v, want [y]", g.Outputs)
	}
	if g.Inputs[0].Type.Size() != 16 {
		t.Errorf("x size = %d, want 16", g.Inputs[0].Type.Size())
	}

	// fc1 -> act1 -> fc2 chain.
	if len(g.Ops[0].Succs) != 1 || g.Ops[0].Succs[0].Name != "act1" {
		t.Errorf("fc1 succs = %v, want [act1]", g.Ops[0].Succs)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"invalid yaml",
			"tensors: {unclosed",
			"YAML parse error",
		},
		{
			"no ops",
			"name: empty\ntensors:\n  x: {dtype: f32, dims: [1], kind: input}\n",
			"declares no ops",
		},
		{
			"undeclared input tensor",
			"ops:\n  - {name: a, type: Relu, inputs: [ghost], outputs: []}\n",
			`reads undeclared tensor "ghost"`,
		},
		{
			"missing definer",
			`
tensors:
  t: {dtype: f32, dims: [1]}
  y: {dtype: f32, dims: [1]}
ops:
  - {name: a, type: Relu, inputs: [t], outputs: [y]}
outputs: [y]
`,
			"no defining op",
		},
		{
			"unknown dtype",
			`
tensors:
  x: {dtype: f64, dims: [1], kind: input}
  y: {dtype: f64, dims: [1]}
ops:
  - {name: a, type: Relu, inputs: [x], outputs: [y]}
outputs: [y]
`,
			"unknown dtype",
		},
		{
			"unknown kind",
			`
tensors:
  x: {dtype: f32, dims: [1], kind: weight}
  y: {dtype: f32, dims: [1]}
ops:
  - {name: a, type: Relu, inputs: [x], outputs: [y]}
outputs: [y]
`,
			"unknown kind",
		},
		{
			"bad dim",
			`
tensors:
  x: {dtype: f32, dims: [0], kind: input}
  y: {dtype: f32, dims: [1]}
ops:
  - {name: a, type: Relu, inputs: [x], outputs: [y]}
outputs: [y]
`,
			"non-positive dim",
		},
		{
			"duplicate op name",
			`
tensors:
  x: {dtype: f32, dims: [1], kind: input}
  t: {dtype: f32, dims: [1]}
  y: {dtype: f32, dims: [1]}
ops:
  - {name: a, type: Relu, inputs: [x], outputs: [t]}
  - {name: a, type: Relu, inputs: [t], outputs: [y]}
outputs: [y]
`,
			"duplicate op name",
		},
		{
			"undeclared graph output",
			`
tensors:
  x: {dtype: f32, dims: [1], kind: input}
  y: {dtype: f32, dims: [1]}
ops:
  - {name: a, type: Relu, inputs: [x], outputs: [y]}
outputs: [z]
`,
			"not a declared tensor",
		},
		{
			"cycle",
			`
tensors:
  u: {dtype: f32, dims: [1]}
  v: {dtype: f32, dims: [1]}
ops:
  - {name: a, type: Relu, inputs: [v], outputs: [u]}
  - {name: b, type: Relu, inputs: [u], outputs: [v]}
`,
			"cycle",
		},
		{
			"param written by op",
			`
tensors:
  x: {dtype: f32, dims: [1], kind: input}
  w: {dtype: f32, dims: [1], kind: param}
ops:
  - {name: a, type: Relu, inputs: [x], outputs: [w]}
`,
			"writes param",
		},
	}

	p := testParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	// One document, three problems: the validator must report them all at
	// once instead of stopping at the first.
	doc := `
name: broken
tensors:
  x: {dtype: f64, dims: [0], kind: input}
ops:
  - {name: a, type: Relu, inputs: [ghost], outputs: []}
`
	_, err := testParser().Parse([]byte(doc))
	if err == nil {
		t.Fatal("Parse succeeded, want aggregated validation error")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrValidation {
		t.Errorf("Code = %s, want %s", apiErr.Code, model.ErrValidation)
	}
	if len(apiErr.Details) != 3 {
		t.Fatalf("details = %d (%v), want 3", len(apiErr.Details), apiErr.Details)
	}
	for _, want := range []string{"unknown dtype", "non-positive dim", "undeclared tensor"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
	for _, d := range apiErr.Details {
		if d.Field == "" {
			t.Errorf("detail %q has no field", d.Message)
		}
	}
}

func TestParse_Deterministic(t *testing.T) {
	p := testParser()
	g1, err := p.Parse([]byte(mlpDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	g2, err := p.Parse([]byte(mlpDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v1, v2 := g1.Values(), g2.Values()
	if len(v1) != len(v2) {
		t.Fatalf("value counts differ: %d vs %d", len(v1), len(v2))
	}
	for i := range v1 {
		if v1[i].Name != v2[i].Name || v1[i].ID() != v2[i].ID() {
			t.Errorf("value identity diverges at %d: %s/%d vs %s/%d",
				i, v1[i].Name, v1[i].ID(), v2[i].Name, v2[i].ID())
		}
	}
}
