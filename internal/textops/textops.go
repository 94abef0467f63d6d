// Package textops provides the rule-based text operations shipped with
// the engine: matching, tokenizing, rewriting, and attribute
// propagation. Every operation builds squarely on the span algebra so
// that its outputs stay traceable to the raw document, and satisfies
// the operation contract consumed by pipelines.
package textops

import (
	"github.com/rotisserie/eris"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/operation"
	"github.com/textweave/textweave/internal/provenance"
)

// asSegment extracts the segment view of an annotation. Entities are
// segments too.
func asSegment(ann annot.Annotation) (*annot.Segment, bool) {
	switch s := ann.(type) {
	case *annot.Segment:
		return s, true
	case *annot.Entity:
		return &s.Segment, true
	default:
		return nil, false
	}
}

// inputSegments asserts that an operation received exactly one input
// list holding only segments.
func inputSegments(opName string, inputs [][]annot.Annotation) ([]*annot.Segment, error) {
	if len(inputs) != 1 {
		return nil, eris.Errorf("%s: expected 1 input, got %d", opName, len(inputs))
	}
	segments := make([]*annot.Segment, 0, len(inputs[0]))
	for _, ann := range inputs[0] {
		seg, ok := asSegment(ann)
		if !ok {
			return nil, eris.Errorf("%s: input annotation %s is not a segment", opName, ann.Common().UID)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// copyAttrs deep-copies every attribute of src carrying one of the
// given labels onto dst, each copy under a new uid, and records the
// copies on the tracer when one is set.
func copyAttrs(src, dst *annot.Base, labels []string, desc operation.Description, tracer *provenance.Tracer) {
	for _, label := range labels {
		for _, attr := range src.Attrs.Get(label) {
			copied := attr.Copy()
			dst.Attrs.Add(copied)
			if tracer != nil {
				tracer.AddProv(copied.UID, desc, []string{attr.UID})
			}
		}
	}
}
