// Package audio carries the audio modality of the annotation model:
// documents whose raw material is a recording and segments addressed by
// time instead of byte offsets. Signal processing is out of scope; a
// segment only references where its audio lives.
package audio

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/textweave/textweave/internal/annot"
)

// RawAudioLabel is the label of the raw segment covering the whole
// recording of a document.
const RawAudioLabel = "raw_audio"

// ErrSpan reports an inverted or negative time span.
var ErrSpan = eris.New("audio: invalid time span")

// Span is a time range [Start, End) in seconds within a recording.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// NewSpan validates and builds a time span. Zero-length spans are
// allowed; a point in time is a valid anchor for an annotation.
func NewSpan(start, end float64) (Span, error) {
	if start < 0 || end < start {
		return Span{}, eris.Wrapf(ErrSpan, "[%g, %g)", start, end)
	}
	return Span{Start: start, End: end}, nil
}

// Length returns the span duration in seconds.
func (s Span) Length() float64 { return s.End - s.Start }

// Segment is a time-addressed annotation of a recording. MediaRef
// locates the audio it covers, typically a file path or URL; the
// segment never holds samples itself.
type Segment struct {
	annot.Base
	Span     Span   `json:"span"`
	MediaRef string `json:"media_ref,omitempty"`
}

// NewSegment creates a segment with a fresh uid.
func NewSegment(label string, span Span, mediaRef string, opts ...annot.Option) *Segment {
	return &Segment{
		Base:     annot.NewBase(label, opts...),
		Span:     span,
		MediaRef: mediaRef,
	}
}

// Document is a recording under annotation. Its raw segment spans the
// full duration and is the default source for segmentation operations.
type Document struct {
	UID      string
	MediaRef string
	Duration float64
	Anns     *annot.Container[*Segment]
	Metadata map[string]any

	raw *Segment
}

// Option configures a Document.
type Option func(*Document)

// WithUID overrides the generated document uid.
func WithUID(uid string) Option {
	return func(d *Document) { d.UID = uid }
}

// WithMetadata attaches document metadata.
func WithMetadata(metadata map[string]any) Option {
	return func(d *Document) { d.Metadata = metadata }
}

// New creates a document over a recording of the given duration in
// seconds, seeding the raw segment into the annotation container.
func New(mediaRef string, duration float64, opts ...Option) (*Document, error) {
	span, err := NewSpan(0, duration)
	if err != nil {
		return nil, err
	}
	d := &Document{
		UID:      uuid.New().String(),
		MediaRef: mediaRef,
		Duration: duration,
		Anns:     annot.NewContainer[*Segment](),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.raw = NewSegment(RawAudioLabel, span, mediaRef)
	if err := d.Anns.Add(d.raw); err != nil {
		return nil, err
	}
	return d, nil
}

// RawSegment returns the segment covering the whole recording.
func (d *Document) RawSegment() *Segment { return d.raw }
