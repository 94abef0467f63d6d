package pipeline

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/operation"
	"github.com/textweave/textweave/internal/provenance"
	"github.com/textweave/textweave/internal/span"
)

// prefixerOp derives one segment per input segment, prefixing its label.
// It records provenance when given a tracer.
type prefixerOp struct {
	desc   operation.Description
	prefix string
	tracer *provenance.Tracer
}

func newPrefixerOp(name, prefix string) *prefixerOp {
	return &prefixerOp{desc: operation.NewDescription("prefixerOp", name, nil), prefix: prefix}
}

func (o *prefixerOp) Description() operation.Description { return o.desc }

func (o *prefixerOp) SetProvTracer(tracer *provenance.Tracer) { o.tracer = tracer }

func (o *prefixerOp) Run(inputs [][]annot.Annotation) ([][]annot.Annotation, error) {
	var out []annot.Annotation
	for _, ann := range inputs[0] {
		seg := ann.(*annot.Segment)
		derived := annot.NewSegment(o.prefix+seg.Label, seg.Text, seg.Spans)
		if o.tracer != nil {
			o.tracer.AddProv(derived.UID, o.desc, []string{seg.UID})
		}
		out = append(out, derived)
	}
	return [][]annot.Annotation{out}, nil
}

// taggerOp attaches a bool attribute to its inputs in place and returns
// no outputs.
type taggerOp struct {
	desc   operation.Description
	label  string
	tracer *provenance.Tracer
}

func newTaggerOp(label string) *taggerOp {
	return &taggerOp{desc: operation.NewDescription("taggerOp", "tagger", nil), label: label}
}

func (o *taggerOp) Description() operation.Description { return o.desc }

func (o *taggerOp) SetProvTracer(tracer *provenance.Tracer) { o.tracer = tracer }

func (o *taggerOp) Run(inputs [][]annot.Annotation) ([][]annot.Annotation, error) {
	for _, ann := range inputs[0] {
		attr := annot.NewAttribute(o.label, annot.BoolValue(true))
		ann.Common().Attrs.Add(attr)
		if o.tracer != nil {
			o.tracer.AddProv(attr.UID, o.desc, []string{ann.Common().UID})
		}
	}
	return nil, nil
}

// recorderOp remembers the annotations it received and passes them
// through unchanged.
type recorderOp struct {
	desc operation.Description
	seen [][]annot.Annotation
}

func newRecorderOp(name string) *recorderOp {
	return &recorderOp{desc: operation.NewDescription("recorderOp", name, nil)}
}

func (o *recorderOp) Description() operation.Description { return o.desc }

func (o *recorderOp) Run(inputs [][]annot.Annotation) ([][]annot.Annotation, error) {
	for _, in := range inputs {
		copied := make([]annot.Annotation, len(in))
		copy(copied, in)
		o.seen = append(o.seen, copied)
	}
	return [][]annot.Annotation{inputs[0]}, nil
}

// failingOp always fails.
type failingOp struct {
	desc operation.Description
}

func newFailingOp(name string) *failingOp {
	return &failingOp{desc: operation.NewDescription("failingOp", name, nil)}
}

func (o *failingOp) Description() operation.Description { return o.desc }

func (o *failingOp) Run([][]annot.Annotation) ([][]annot.Annotation, error) {
	return nil, eris.New("model exploded")
}

func textSegment(label, text string) *annot.Segment {
	return annot.NewSegment(label, text, []span.Span{span.Bound{Start: 0, End: len(text)}})
}

func segmentTexts(anns []annot.Annotation) string {
	parts := make([]string, len(anns))
	for i, ann := range anns {
		parts[i] = ann.(*annot.Segment).Text
	}
	return strings.Join(parts, "|")
}
