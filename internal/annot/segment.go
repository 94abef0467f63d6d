package annot

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/textweave/textweave/internal/span"
)

// Annotation kind tags used in serialized form.
const (
	KindSegment  = "segment"
	KindEntity   = "entity"
	KindRelation = "relation"
)

// Segment is a labeled piece of derived text together with the spans
// that trace it back to its origin. Segments are immutable once created,
// except for their attribute container which only grows.
//
// Invariant: resolving Spans against the originating text(s), span by
// span and recursively through Modified replacements, reconstructs Text.
type Segment struct {
	Base
	Text  string
	Spans []span.Span
}

// NewSegment creates a segment with a fresh uid.
func NewSegment(label, text string, spans []span.Span, opts ...Option) *Segment {
	s := &Segment{Base: newBase(label), Text: text, Spans: spans}
	for _, opt := range opts {
		opt(&s.Base)
	}
	return s
}

// NormalizedSpans returns the ranges of the original document the
// segment ultimately covers.
func (s *Segment) NormalizedSpans() []span.Bound {
	return span.Normalize(s.Spans)
}

// Entity is a segment denoting a typed real-world mention (disorder,
// procedure, chemical, ...); its label is the entity type.
type Entity struct {
	Segment
}

// NewEntity creates an entity with a fresh uid.
func NewEntity(label, text string, spans []span.Span, opts ...Option) *Entity {
	e := &Entity{Segment: Segment{Base: newBase(label), Text: text, Spans: spans}}
	for _, opt := range opts {
		opt(&e.Base)
	}
	return e
}

// NormLabel is the conventional label for normalization attributes
// attached to entities.
const NormLabel = "NORMALIZATION"

// AddNorm attaches a knowledge-base normalization to the entity and
// returns the created attribute.
func (e *Entity) AddNorm(norm NormValue) *Attribute {
	attr := NewAttribute(NormLabel, norm)
	e.Attrs.Add(attr)
	return attr
}

// Norms returns every normalization attached to the entity.
func (e *Entity) Norms() []NormValue {
	var out []NormValue
	for _, attr := range e.Attrs.Get(NormLabel) {
		if norm, ok := attr.Value.(NormValue); ok {
			out = append(out, norm)
		}
	}
	return out
}

// Relation is a directed, typed edge between two annotations referenced
// by uid. References are weak: integrity is not enforced at
// construction, resolution happens through a container lookup and may
// fail if the uid is missing.
type Relation struct {
	Base
	SourceID string
	TargetID string
}

// NewRelation creates a relation with a fresh uid.
func NewRelation(label, sourceID, targetID string, opts ...Option) *Relation {
	r := &Relation{Base: newBase(label), SourceID: sourceID, TargetID: targetID}
	for _, opt := range opts {
		opt(&r.Base)
	}
	return r
}

type annRecord struct {
	Kind     string            `json:"kind"`
	UID      string            `json:"uid"`
	Label    string            `json:"label"`
	Text     string            `json:"text,omitempty"`
	Spans    []json.RawMessage `json:"spans,omitempty"`
	SourceID string            `json:"source_id,omitempty"`
	TargetID string            `json:"target_id,omitempty"`
	Attrs    []*Attribute      `json:"attrs,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

func (b *Base) record(kind string) annRecord {
	return annRecord{
		Kind:     kind,
		UID:      b.UID,
		Label:    b.Label,
		Attrs:    b.Attrs.All(),
		Metadata: b.Metadata,
	}
}

func encodeSpans(spans []span.Span) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(spans))
	for i, sp := range spans {
		data, err := json.Marshal(sp)
		if err != nil {
			return nil, eris.Wrap(err, "annot: encode span")
		}
		out[i] = data
	}
	return out, nil
}

func (s *Segment) MarshalJSON() ([]byte, error) {
	return marshalSegment(&s.Base, s.Text, s.Spans, KindSegment)
}

func (e *Entity) MarshalJSON() ([]byte, error) {
	return marshalSegment(&e.Base, e.Text, e.Spans, KindEntity)
}

func marshalSegment(base *Base, text string, spans []span.Span, kind string) ([]byte, error) {
	rec := base.record(kind)
	rec.Text = text
	encoded, err := encodeSpans(spans)
	if err != nil {
		return nil, err
	}
	rec.Spans = encoded
	return json.Marshal(rec)
}

func (r *Relation) MarshalJSON() ([]byte, error) {
	rec := r.record(KindRelation)
	rec.SourceID = r.SourceID
	rec.TargetID = r.TargetID
	return json.Marshal(rec)
}

func (rec *annRecord) options() []Option {
	opts := []Option{WithUID(rec.UID)}
	if len(rec.Attrs) > 0 {
		opts = append(opts, WithAttrs(rec.Attrs...))
	}
	if rec.Metadata != nil {
		opts = append(opts, WithMetadata(rec.Metadata))
	}
	return opts
}

// DecodeAnnotation parses a serialized annotation, dispatching on its
// kind tag.
func DecodeAnnotation(data []byte) (Annotation, error) {
	var rec annRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "annot: decode annotation")
	}
	switch rec.Kind {
	case KindSegment, KindEntity:
		spans, err := span.DecodeList(rec.Spans)
		if err != nil {
			return nil, err
		}
		if rec.Kind == KindEntity {
			return NewEntity(rec.Label, rec.Text, spans, rec.options()...), nil
		}
		return NewSegment(rec.Label, rec.Text, spans, rec.options()...), nil
	case KindRelation:
		return NewRelation(rec.Label, rec.SourceID, rec.TargetID, rec.options()...), nil
	default:
		return nil, eris.Errorf("annot: unknown annotation kind %q", rec.Kind)
	}
}
