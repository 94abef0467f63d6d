// Package document defines the text document: the immutable raw text
// every derived span ultimately resolves against, plus the annotation
// container collecting what pipelines produce for it.
package document

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/span"
)

// RawTextLabel is the label of the synthetic segment spanning the whole
// raw text, created once at document construction.
const RawTextLabel = "raw_text"

// Document owns an immutable raw text and the annotations attached to
// it. The raw text never changes after construction; transformations
// always produce new segments with spans pointing back into it.
type Document struct {
	UID      string
	Text     string
	Anns     *AnnotationContainer
	Metadata map[string]any

	raw *annot.Segment
}

// Option configures a document at construction time.
type Option func(*Document)

// WithUID overrides the generated document uid.
func WithUID(uid string) Option {
	return func(d *Document) { d.UID = uid }
}

// WithMetadata attaches free-form metadata.
func WithMetadata(metadata map[string]any) Option {
	return func(d *Document) { d.Metadata = metadata }
}

// New creates a document owning the given raw text. The annotation
// container is seeded with the raw segment covering [0, len(text)).
func New(text string, opts ...Option) *Document {
	doc := &Document{
		UID:  uuid.New().String(),
		Text: text,
		Anns: newAnnotationContainer(),
	}
	for _, opt := range opts {
		opt(doc)
	}
	doc.raw = annot.NewSegment(RawTextLabel, text, rawSpans(text))
	// The raw segment always fits in a fresh container.
	_ = doc.Anns.Add(doc.raw)
	return doc
}

func rawSpans(text string) []span.Span {
	if len(text) == 0 {
		return nil
	}
	return []span.Span{span.Bound{Start: 0, End: len(text)}}
}

// RawSegment returns the synthetic segment covering the whole raw text,
// the default input of document pipelines.
func (d *Document) RawSegment() *annot.Segment { return d.raw }

// AnnotationContainer is the text-modality view over the generic
// annotation container: uid-keyed storage plus entity, segment and
// relation subsets. The subsets are pure filters, not separate storage.
type AnnotationContainer struct {
	*annot.Container[annot.Annotation]
}

func newAnnotationContainer() *AnnotationContainer {
	return &AnnotationContainer{Container: annot.NewContainer[annot.Annotation]()}
}

// Entities returns every entity, in insertion order.
func (c *AnnotationContainer) Entities() []*annot.Entity {
	var out []*annot.Entity
	for _, ann := range c.All() {
		if e, ok := ann.(*annot.Entity); ok {
			out = append(out, e)
		}
	}
	return out
}

// Segments returns every plain segment (entities excluded), in
// insertion order.
func (c *AnnotationContainer) Segments() []*annot.Segment {
	var out []*annot.Segment
	for _, ann := range c.All() {
		if s, ok := ann.(*annot.Segment); ok {
			out = append(out, s)
		}
	}
	return out
}

// Relations returns every relation, in insertion order.
func (c *AnnotationContainer) Relations() []*annot.Relation {
	var out []*annot.Relation
	for _, ann := range c.All() {
		if r, ok := ann.(*annot.Relation); ok {
			out = append(out, r)
		}
	}
	return out
}

type docRecord struct {
	UID      string            `json:"uid"`
	Text     string            `json:"text"`
	Metadata map[string]any    `json:"metadata,omitempty"`
	Anns     []json.RawMessage `json:"anns"`
}

// MarshalJSON serializes the document with every annotation except the
// raw segment, which is reconstructed at decode time.
func (d *Document) MarshalJSON() ([]byte, error) {
	rec := docRecord{UID: d.UID, Text: d.Text, Metadata: d.Metadata}
	for _, ann := range d.Anns.All() {
		if ann.Common().UID == d.raw.UID {
			continue
		}
		data, err := json.Marshal(ann)
		if err != nil {
			return nil, eris.Wrap(err, "document: encode annotation")
		}
		rec.Anns = append(rec.Anns, data)
	}
	return json.Marshal(rec)
}

// Decode parses a serialized document, restoring its annotations.
func Decode(data []byte) (*Document, error) {
	var rec docRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "document: decode")
	}
	opts := []Option{WithUID(rec.UID)}
	if rec.Metadata != nil {
		opts = append(opts, WithMetadata(rec.Metadata))
	}
	doc := New(rec.Text, opts...)
	for _, raw := range rec.Anns {
		ann, err := annot.DecodeAnnotation(raw)
		if err != nil {
			return nil, err
		}
		if err := doc.Anns.Add(ann); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
