package annot

import (
	"sort"

	"github.com/google/uuid"
)

// Annotation is implemented by every annotation type through its
// embedded Base.
type Annotation interface {
	Common() *Base
}

// Base carries the state shared by all annotation types: identity,
// label, attributes, metadata, and the pipeline output keys the
// annotation was routed through.
type Base struct {
	UID      string
	Label    string
	Attrs    *Attrs
	Metadata map[string]any

	keys map[string]struct{}
}

func newBase(label string) Base {
	return Base{
		UID:   uuid.New().String(),
		Label: label,
		Attrs: NewAttrs(),
		keys:  make(map[string]struct{}),
	}
}

// NewBase creates the shared state for annotation types defined outside
// this package, such as other modalities.
func NewBase(label string, opts ...Option) Base {
	b := newBase(label)
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Common returns the shared annotation state; it makes any embedding
// type satisfy Annotation.
func (b *Base) Common() *Base { return b }

// AddKey records that the annotation was produced under a pipeline
// output key.
func (b *Base) AddKey(key string) {
	if b.keys == nil {
		b.keys = make(map[string]struct{})
	}
	b.keys[key] = struct{}{}
}

// HasKey reports whether the annotation carries the given pipeline key.
func (b *Base) HasKey(key string) bool {
	_, ok := b.keys[key]
	return ok
}

// Keys returns the pipeline keys in sorted order.
func (b *Base) Keys() []string {
	out := make([]string, 0, len(b.keys))
	for k := range b.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TrimKeys drops every key not in the allowed list. Called when a
// pipeline hands its outputs back to the caller, so that only the
// pipeline's own output keys remain visible.
func (b *Base) TrimKeys(allowed []string) {
	keep := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		keep[k] = struct{}{}
	}
	for k := range b.keys {
		if _, ok := keep[k]; !ok {
			delete(b.keys, k)
		}
	}
}

// Option configures an annotation at construction time.
type Option func(*Base)

// WithUID overrides the generated uid, typically when decoding a
// serialized annotation.
func WithUID(uid string) Option {
	return func(b *Base) { b.UID = uid }
}

// WithAttrs seeds the annotation with pre-existing attributes.
func WithAttrs(attrs ...*Attribute) Option {
	return func(b *Base) {
		for _, a := range attrs {
			b.Attrs.Add(a)
		}
	}
}

// WithMetadata attaches free-form metadata.
func WithMetadata(metadata map[string]any) Option {
	return func(b *Base) { b.Metadata = metadata }
}
