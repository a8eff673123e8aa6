package parser

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/me/memsched/pkg/model"
	"github.com/me/memsched/pkg/nn"
)

// Validator performs semantic validation on a parsed model Document.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a Validator with the given logger.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: logger.With("component", "validator")}
}

// Validate checks semantic correctness of a Document: tensor declarations,
// graph outputs, and op references. Structural properties that need the
// linked graph (single definer, acyclicity) are checked by nn.Graph.Link.
// Returns nil if valid, or a *model.APIError with FieldError details.
func (v *Validator) Validate(doc *Document) *model.APIError {
	var errs []model.FieldError

	errs = append(errs, v.validateTensors(doc)...)
	errs = append(errs, v.validateOutputs(doc)...)
	errs = append(errs, v.validateOps(doc)...)

	if len(errs) == 0 {
		return nil
	}
	v.logger.Debug("model rejected", "name", doc.Name, "errors", len(errs))
	return model.NewValidationError(fmt.Sprintf("model %q is invalid", doc.Name), errs...)
}

func (v *Validator) validateTensors(doc *Document) []model.FieldError {
	names := make([]string, 0, len(doc.Tensors))
	for name := range doc.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []model.FieldError
	for _, name := range names {
		decl := doc.Tensors[name]
		field := "tensors." + name
		if _, err := parseKind(decl.Kind); err != nil {
			errs = append(errs, model.FieldError{Field: field, Message: err.Error()})
		}
		if _, err := nn.DType(decl.DType).ElemSize(); err != nil {
			errs = append(errs, model.FieldError{Field: field, Message: err.Error()})
		}
		if len(decl.Dims) == 0 {
			errs = append(errs, model.FieldError{Field: field, Message: "tensor has no dims"})
		}
		for _, d := range decl.Dims {
			if d <= 0 {
				errs = append(errs, model.FieldError{
					Field:   field,
					Message: fmt.Sprintf("non-positive dim %d", d),
				})
			}
		}
	}
	return errs
}

func (v *Validator) validateOutputs(doc *Document) []model.FieldError {
	var errs []model.FieldError
	for _, name := range doc.Outputs {
		decl, ok := doc.Tensors[name]
		if !ok {
			errs = append(errs, model.FieldError{
				Field:   "outputs",
				Message: fmt.Sprintf("%q is not a declared tensor", name),
			})
			continue
		}
		if decl.Kind != "" && decl.Kind != "intermediate" && decl.Kind != "output" {
			errs = append(errs, model.FieldError{
				Field:   "outputs",
				Message: fmt.Sprintf("tensor %q is listed as a graph output but declared %s", name, decl.Kind),
			})
		}
	}
	return errs
}

func (v *Validator) validateOps(doc *Document) []model.FieldError {
	if len(doc.Ops) == 0 {
		return []model.FieldError{{Field: "ops", Message: "model declares no ops"}}
	}

	var errs []model.FieldError
	seen := make(map[string]bool, len(doc.Ops))
	for i, decl := range doc.Ops {
		field := fmt.Sprintf("ops[%d]", i)
		if decl.Name == "" {
			errs = append(errs, model.FieldError{Field: field, Message: "op has no name"})
		} else {
			field = "ops." + decl.Name
			if seen[decl.Name] {
				errs = append(errs, model.FieldError{
					Field:   field,
					Message: fmt.Sprintf("duplicate op name %q", decl.Name),
				})
			}
			seen[decl.Name] = true
		}
		if decl.Type == "" {
			errs = append(errs, model.FieldError{Field: field, Message: "op has no type"})
		}
		for _, in := range decl.Inputs {
			if _, ok := doc.Tensors[in]; !ok {
				errs = append(errs, model.FieldError{
					Field:   field + ".inputs",
					Message: fmt.Sprintf("reads undeclared tensor %q", in),
				})
			}
		}
		for _, out := range decl.Outputs {
			if _, ok := doc.Tensors[out]; !ok {
				errs = append(errs, model.FieldError{
					Field:   field + ".outputs",
					Message: fmt.Sprintf("writes undeclared tensor %q", out),
				})
			}
		}
	}
	return errs
}
