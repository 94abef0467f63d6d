// Package annot defines the annotation data model shared by every
// modality: attributes with typed values, segments, entities, relations,
// and the label-indexed containers that hold them.
package annot

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// ValueKind discriminates the closed set of attribute value types.
type ValueKind string

const (
	KindBool   ValueKind = "bool"
	KindString ValueKind = "string"
	KindFloat  ValueKind = "float"
	KindNorm   ValueKind = "norm"
)

// Value is the typed payload of an attribute. The set of variants is
// closed so that misuse is caught early, while labels stay open-ended.
type Value interface {
	Kind() ValueKind

	isValue()
}

// BoolValue is a boolean context flag (negation, family history, ...).
type BoolValue bool

func (BoolValue) Kind() ValueKind { return KindBool }
func (BoolValue) isValue()        {}

// StringValue is a free-form string payload.
type StringValue string

func (StringValue) Kind() ValueKind { return KindString }
func (StringValue) isValue()        {}

// FloatValue is a numeric payload (scores, measurements).
type FloatValue float64

func (FloatValue) Kind() ValueKind { return KindFloat }
func (FloatValue) isValue()        {}

// NormValue links an annotation to an entry of a knowledge base
// (UMLS, ICD, a custom terminology).
type NormValue struct {
	KB        string `json:"kb"`
	KBVersion string `json:"kb_version,omitempty"`
	ID        string `json:"id"`
	Term      string `json:"term,omitempty"`
}

func (NormValue) Kind() ValueKind { return KindNorm }
func (NormValue) isValue()        {}

// Attribute is a typed fact attached to exactly one annotation. Value
// may be nil until computed. Attributes are never shared: propagating
// one to another annotation always goes through Copy.
type Attribute struct {
	UID      string
	Label    string
	Value    Value
	Metadata map[string]any
}

// NewAttribute creates an attribute with a fresh uid. A nil value is
// legal and means "not computed yet".
func NewAttribute(label string, value Value) *Attribute {
	return &Attribute{
		UID:   uuid.New().String(),
		Label: label,
		Value: value,
	}
}

// Copy returns a deep copy of the attribute under a new uid, suitable
// for attaching to a different annotation.
func (a *Attribute) Copy() *Attribute {
	c := &Attribute{
		UID:   uuid.New().String(),
		Label: a.Label,
		Value: a.Value,
	}
	if a.Metadata != nil {
		c.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

type attrRecord struct {
	UID      string          `json:"uid"`
	Label    string          `json:"label"`
	Value    json.RawMessage `json:"value,omitempty"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

type valueRecord struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

func encodeValue(v Value) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	var payload any
	switch val := v.(type) {
	case BoolValue:
		payload = bool(val)
	case StringValue:
		payload = string(val)
	case FloatValue:
		payload = float64(val)
	case NormValue:
		payload = val
	default:
		return nil, eris.Errorf("annot: unknown value kind %q", v.Kind())
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "annot: encode attribute value")
	}
	return json.Marshal(valueRecord{Kind: v.Kind(), Value: data})
}

func decodeValue(data json.RawMessage) (Value, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rec valueRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "annot: decode attribute value")
	}
	switch rec.Kind {
	case KindBool:
		var v bool
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return nil, eris.Wrap(err, "annot: decode bool value")
		}
		return BoolValue(v), nil
	case KindString:
		var v string
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return nil, eris.Wrap(err, "annot: decode string value")
		}
		return StringValue(v), nil
	case KindFloat:
		var v float64
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return nil, eris.Wrap(err, "annot: decode float value")
		}
		return FloatValue(v), nil
	case KindNorm:
		var v NormValue
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return nil, eris.Wrap(err, "annot: decode norm value")
		}
		return v, nil
	default:
		return nil, eris.Errorf("annot: unknown value kind %q", rec.Kind)
	}
}

func (a *Attribute) MarshalJSON() ([]byte, error) {
	value, err := encodeValue(a.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(attrRecord{
		UID:      a.UID,
		Label:    a.Label,
		Value:    value,
		Metadata: a.Metadata,
	})
}

func (a *Attribute) UnmarshalJSON(data []byte) error {
	var rec attrRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return eris.Wrap(err, "annot: decode attribute")
	}
	value, err := decodeValue(rec.Value)
	if err != nil {
		return err
	}
	a.UID = rec.UID
	a.Label = rec.Label
	a.Value = value
	a.Metadata = rec.Metadata
	return nil
}

// Attrs is the attribute container of a single annotation: an ordered
// bag with label-indexed lookup. Label collisions are legal, several
// attributes may share a label. The container only ever grows.
type Attrs struct {
	items   []*Attribute
	byLabel map[string][]*Attribute
}

// NewAttrs creates a container holding the given attributes.
func NewAttrs(attrs ...*Attribute) *Attrs {
	a := &Attrs{byLabel: make(map[string][]*Attribute)}
	for _, attr := range attrs {
		a.Add(attr)
	}
	return a
}

// Add appends an attribute.
func (a *Attrs) Add(attr *Attribute) {
	a.items = append(a.items, attr)
	a.byLabel[attr.Label] = append(a.byLabel[attr.Label], attr)
}

// All returns every attribute in insertion order.
func (a *Attrs) All() []*Attribute {
	out := make([]*Attribute, len(a.items))
	copy(out, a.items)
	return out
}

// Get returns the attributes carrying the given label, in insertion
// order.
func (a *Attrs) Get(label string) []*Attribute {
	attrs := a.byLabel[label]
	out := make([]*Attribute, len(attrs))
	copy(out, attrs)
	return out
}

// Len returns the number of attributes.
func (a *Attrs) Len() int { return len(a.items) }
