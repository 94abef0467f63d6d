package textops

import (
	"github.com/rotisserie/eris"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/operation"
	"github.com/textweave/textweave/internal/provenance"
	"github.com/textweave/textweave/internal/span"
)

// AttributeDuplicator copies attributes from source segments onto the
// target segments they contain. Containment is decided on normalized
// spans in the original text, so sources and targets may come from
// different derivation chains of the same document. A typical use is
// propagating a sentence-level is_negated attribute onto the entities
// found inside the sentence.
//
// It takes two input slots, sources then targets, modifies the targets
// in place and produces no output segments.
type AttributeDuplicator struct {
	desc   operation.Description
	labels []string
	tracer *provenance.Tracer
}

// NewAttributeDuplicator copies attributes with the given labels. At
// least one label is required.
func NewAttributeDuplicator(labels []string) (*AttributeDuplicator, error) {
	if len(labels) == 0 {
		return nil, eris.New("attribute duplicator: no attribute labels given")
	}
	d := &AttributeDuplicator{labels: labels}
	d.desc = operation.NewDescription("AttributeDuplicator", "", map[string]any{
		"attr_labels": labels,
	})
	return d, nil
}

func (d *AttributeDuplicator) Description() operation.Description { return d.desc }

// SetProvTracer enables provenance recording for copied attributes.
func (d *AttributeDuplicator) SetProvTracer(tracer *provenance.Tracer) { d.tracer = tracer }

// Run copies matching attributes from every source onto every contained
// target and returns nil output slots.
func (d *AttributeDuplicator) Run(inputs [][]annot.Annotation) ([][]annot.Annotation, error) {
	if len(inputs) != 2 {
		return nil, eris.Errorf("attribute duplicator: expected 2 input slots, got %d", len(inputs))
	}
	sources, err := inputSegments("attribute duplicator", inputs[:1])
	if err != nil {
		return nil, err
	}
	targets, err := inputSegments("attribute duplicator", inputs[1:])
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		srcBounds := span.Normalize(src.Spans)
		for _, dst := range targets {
			if !contains(srcBounds, span.Normalize(dst.Spans)) {
				continue
			}
			copyAttrs(&src.Base, &dst.Base, d.labels, d.desc, d.tracer)
		}
	}
	return nil, nil
}

// contains reports whether every inner bound lies within some outer
// bound. Bounds are sorted and non-overlapping, as Normalize returns
// them.
func contains(outer, inner []span.Bound) bool {
	if len(inner) == 0 {
		return false
	}
	for _, in := range inner {
		covered := false
		for _, out := range outer {
			if in.Start >= out.Start && in.End <= out.End {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}
