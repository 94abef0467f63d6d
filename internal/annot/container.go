package annot

import "github.com/rotisserie/eris"

// Container errors.
var (
	// ErrDuplicateID reports an attempt to add an annotation whose uid
	// is already present in the container.
	ErrDuplicateID = eris.New("annot: duplicate annotation uid")

	// ErrNotFound reports a lookup for a uid the container does not
	// hold.
	ErrNotFound = eris.New("annot: no annotation with this uid")
)

// Filter narrows a container query. Zero fields match everything.
type Filter struct {
	// Label keeps only annotations carrying this label.
	Label string
	// Key keeps only annotations routed through this pipeline key.
	Key string
}

// Container stores annotations of a document, preserving insertion
// order for iteration and maintaining a label index for filtered
// retrieval. It is generic over the annotation type so that every
// modality shares the same storage semantics.
//
// A container is mutated only by the goroutine owning its document; it
// provides no internal locking.
type Container[T Annotation] struct {
	ids     []string
	byID    map[string]T
	byLabel map[string][]string
}

// NewContainer creates an empty container.
func NewContainer[T Annotation]() *Container[T] {
	return &Container[T]{
		byID:    make(map[string]T),
		byLabel: make(map[string][]string),
	}
}

// Add attaches an annotation. It fails with ErrDuplicateID if the
// annotation's uid is already present.
func (c *Container[T]) Add(item T) error {
	base := item.Common()
	if _, ok := c.byID[base.UID]; ok {
		return eris.Wrapf(ErrDuplicateID, "uid %s", base.UID)
	}
	c.ids = append(c.ids, base.UID)
	c.byID[base.UID] = item
	c.byLabel[base.Label] = append(c.byLabel[base.Label], base.UID)
	return nil
}

// Len returns the number of annotations.
func (c *Container[T]) Len() int { return len(c.ids) }

// All returns every annotation in insertion order.
func (c *Container[T]) All() []T {
	out := make([]T, 0, len(c.ids))
	for _, uid := range c.ids {
		out = append(out, c.byID[uid])
	}
	return out
}

// Get returns the annotations matching the filter, in insertion order.
// A zero filter returns everything.
func (c *Container[T]) Get(f Filter) []T {
	ids := c.ids
	if f.Label != "" {
		ids = c.byLabel[f.Label]
	}
	out := make([]T, 0, len(ids))
	for _, uid := range ids {
		item := c.byID[uid]
		if f.Key != "" && !item.Common().HasKey(f.Key) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// GetByID returns the annotation with the given uid, or ErrNotFound.
func (c *Container[T]) GetByID(uid string) (T, error) {
	item, ok := c.byID[uid]
	if !ok {
		var zero T
		return zero, eris.Wrapf(ErrNotFound, "uid %s", uid)
	}
	return item, nil
}
