// Package operation defines the contract every processing unit
// satisfies: a transform from lists of input annotations to lists of
// output annotations, with a stable identity captured at construction.
package operation

import (
	"github.com/google/uuid"

	"github.com/textweave/textweave/internal/annot"
)

// Description identifies an operation and the configuration it was
// built with. It is captured once at construction and reused verbatim
// in provenance records and pipeline descriptions.
type Description struct {
	UID       string         `json:"uid"`
	Name      string         `json:"name"`
	ClassName string         `json:"class_name"`
	Config    map[string]any `json:"config,omitempty"`
}

// NewDescription builds a description with a fresh uid. Name defaults
// to the class name when empty.
func NewDescription(className, name string, config map[string]any) Description {
	if name == "" {
		name = className
	}
	return Description{
		UID:       uuid.New().String(),
		Name:      name,
		ClassName: className,
		Config:    config,
	}
}

// Operation is a unit of processing. Run receives one annotation list
// per declared input key and returns one list per declared output key;
// it returns nil outputs when the operation only mutates its inputs in
// place (attribute attachment).
//
// Operations must be stateless with respect to the input/output
// contract: configuration and loaded resources (compiled patterns,
// model weights) are immutable after construction.
type Operation interface {
	Description() Description
	Run(inputs [][]annot.Annotation) ([][]annot.Annotation, error)
}

// FuncOperation adapts a plain function to the Operation contract, for
// one-off custom steps that do not warrant a dedicated type.
type FuncOperation struct {
	desc Description
	fn   func(inputs [][]annot.Annotation) ([][]annot.Annotation, error)
}

// NewFuncOperation wraps fn as an operation named name.
func NewFuncOperation(name string, fn func(inputs [][]annot.Annotation) ([][]annot.Annotation, error)) *FuncOperation {
	return &FuncOperation{desc: NewDescription("FuncOperation", name, nil), fn: fn}
}

func (o *FuncOperation) Description() Description { return o.desc }

func (o *FuncOperation) Run(inputs [][]annot.Annotation) ([][]annot.Annotation, error) {
	return o.fn(inputs)
}
