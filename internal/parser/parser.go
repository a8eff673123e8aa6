// Package parser converts YAML model-graph documents into typed operator
// graphs. Parsing and validation are separate passes: Parser unmarshals and
// assembles, Validator aggregates every document-level problem before any
// graph is built.
package parser

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/me/memsched/pkg/nn"
	"gopkg.in/yaml.v3"
)

// Document is the raw YAML shape of a model-graph file.
type Document struct {
	Name    string                `yaml:"name"`
	Tensors map[string]TensorDecl `yaml:"tensors"`
	Ops     []OpDecl              `yaml:"ops"`
	Outputs []string              `yaml:"outputs"`
}

// TensorDecl declares one tensor: element type, shape, and optional kind
// (param, input, intermediate, output). Kind defaults to intermediate.
type TensorDecl struct {
	DType string  `yaml:"dtype"`
	Dims  []int64 `yaml:"dims"`
	Kind  string  `yaml:"kind"`
}

// OpDecl declares one operator with the names of the tensors it consumes and
// produces.
type OpDecl struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Inputs  []string `yaml:"inputs"`
	Outputs []string `yaml:"outputs"`
}

// Parser converts raw model YAML into an operator graph.
type Parser struct {
	logger    *slog.Logger
	validator *Validator
}

// New creates a Parser with the given logger.
func New(logger *slog.Logger) *Parser {
	return &Parser{
		logger:    logger.With("component", "parser"),
		validator: NewValidator(logger),
	}
}

// ParseFile reads and parses the model document at path.
func (p *Parser) ParseFile(path string) (*nn.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return p.Parse(data)
}

// Parse unmarshals a model document, validates it, and builds the linked
// operator graph.
func (p *Parser) Parse(data []byte) (*nn.Graph, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	g, err := p.Build(&doc)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("model parsed",
		"name", g.Name, "ops", len(g.Ops), "tensors", len(g.Values()))
	return g, nil
}

// Build validates a document and assembles the operator graph from it. All
// document-level problems are reported together via the validator; the
// structural checks (single definer, acyclicity) run in nn.Graph.Link.
func (p *Parser) Build(doc *Document) (*nn.Graph, error) {
	if apiErr := p.validator.Validate(doc); apiErr != nil {
		return nil, apiErr
	}

	// Materialize tensors in sorted name order so value identity is
	// deterministic across parses of the same document.
	names := make([]string, 0, len(doc.Tensors))
	for name := range doc.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	outputSet := make(map[string]bool, len(doc.Outputs))
	for _, name := range doc.Outputs {
		outputSet[name] = true
	}

	values := make(map[string]*nn.Value, len(doc.Tensors))
	g := &nn.Graph{Name: doc.Name}
	for _, name := range names {
		decl := doc.Tensors[name]
		kind, _ := parseKind(decl.Kind)
		if outputSet[name] {
			kind = nn.KindOutput
		}
		v := &nn.Value{
			Name: name,
			Kind: kind,
			Type: nn.TensorType{DType: nn.DType(decl.DType), Dims: decl.Dims},
		}
		values[name] = v
		switch kind {
		case nn.KindInput:
			g.Inputs = append(g.Inputs, v)
		case nn.KindParam:
			g.Params = append(g.Params, v)
		}
	}
	for _, name := range doc.Outputs {
		g.Outputs = append(g.Outputs, values[name])
	}

	for _, decl := range doc.Ops {
		op := &nn.Op{Name: decl.Name, Type: decl.Type}
		for _, in := range decl.Inputs {
			op.Inputs = append(op.Inputs, values[in])
		}
		for _, out := range decl.Outputs {
			op.Outputs = append(op.Outputs, values[out])
		}
		g.Ops = append(g.Ops, op)
	}

	if err := g.Link(); err != nil {
		return nil, fmt.Errorf("model %q: %w", doc.Name, err)
	}
	return g, nil
}

func parseKind(s string) (nn.ValueKind, error) {
	switch s {
	case "", "intermediate":
		return nn.KindIntermediate, nil
	case "param":
		return nn.KindParam, nil
	case "input":
		return nn.KindInput, nil
	case "output":
		return nn.KindOutput, nil
	default:
		return "", fmt.Errorf("unknown kind %q", s)
	}
}
