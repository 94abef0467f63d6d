// Package span implements non-destructive span tracking for text
// transformations. Every piece of derived text carries a list of spans
// describing where each of its characters came from, either directly
// (Bound: a byte range in a reference text) or through a replacement
// (Modified: N bytes of output text standing in for one or more spans of
// a previous text version). The algebra in this package (Extract,
// Replace, Remove, Insert) keeps those spans consistent across
// arbitrarily many transformation passes, so that any derived annotation
// can be traced back, byte for byte, to the original document.
//
// All offsets are byte offsets into UTF-8 text, matching the indices
// returned by the regexp package and string slicing.
package span

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
)

// Span locates a run of derived text in its originating text.
type Span interface {
	// Len is the number of bytes of derived text the span accounts for.
	Len() int

	isSpan()
}

// Bound is a contiguous byte range [Start, End) in a reference text,
// usually the document's raw text.
type Bound struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewBound returns the range [start, end). It panics if the range is
// empty or inverted: a Bound span always denotes at least one byte.
func NewBound(start, end int) Bound {
	if start < 0 || end <= start {
		panic(fmt.Sprintf("span: invalid bound [%d,%d)", start, end))
	}
	return Bound{Start: start, End: end}
}

func (b Bound) Len() int { return b.End - b.Start }

func (b Bound) String() string { return fmt.Sprintf("[%d:%d)", b.Start, b.End) }

func (Bound) isSpan() {}

// Modified records that Length bytes of output text stand in for the
// concatenation of Replaced in a previous text version. An empty
// Replaced list marks pure insertion: text with no traceable origin.
type Modified struct {
	Length   int
	Replaced []Span
}

func (m Modified) Len() int { return m.Length }

func (m Modified) String() string {
	return fmt.Sprintf("mod(%d<-%v)", m.Length, m.Replaced)
}

func (Modified) isSpan() {}

// TotalLen sums the lengths of the given spans: the number of bytes of
// derived text they account for together.
func TotalLen(spans []Span) int {
	total := 0
	for _, sp := range spans {
		total += sp.Len()
	}
	return total
}

// Normalize flattens spans to ranges in the origin text: Modified spans
// are recursively expanded through their replaced spans, insertions
// (Modified with no replaced spans) are dropped, and adjacent contiguous
// bounds are coalesced. The result is what the derived text ultimately
// covers in the original document.
func Normalize(spans []Span) []Bound {
	var out []Bound
	var walk func([]Span)
	walk = func(spans []Span) {
		for _, sp := range spans {
			switch s := sp.(type) {
			case Bound:
				if n := len(out); n > 0 && out[n-1].End == s.Start {
					out[n-1].End = s.End
				} else {
					out = append(out, s)
				}
			case Modified:
				walk(s.Replaced)
			}
		}
	}
	walk(spans)
	return out
}

// Coalesce merges adjacent Bound spans with end1 == start2 into single
// spans. The result denotes exactly the same text as the input; merging
// is only a memory optimization for long documents.
func Coalesce(spans []Span) []Span {
	out := make([]Span, 0, len(spans))
	for _, sp := range spans {
		if b, ok := sp.(Bound); ok && len(out) > 0 {
			if prev, ok := out[len(out)-1].(Bound); ok && prev.End == b.Start {
				out[len(out)-1] = Bound{Start: prev.Start, End: b.End}
				continue
			}
		}
		out = append(out, sp)
	}
	return out
}

const (
	kindBound    = "bound"
	kindModified = "modified"
)

type boundRecord struct {
	Kind  string `json:"kind"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type modifiedRecord struct {
	Kind     string            `json:"kind"`
	Length   int               `json:"length"`
	Replaced []json.RawMessage `json:"replaced_spans"`
}

// MarshalJSON tags the span with kind "bound".
func (b Bound) MarshalJSON() ([]byte, error) {
	return json.Marshal(boundRecord{Kind: kindBound, Start: b.Start, End: b.End})
}

// MarshalJSON tags the span with kind "modified" and recursively encodes
// the replaced spans.
func (m Modified) MarshalJSON() ([]byte, error) {
	replaced := make([]json.RawMessage, len(m.Replaced))
	for i, sp := range m.Replaced {
		data, err := json.Marshal(sp)
		if err != nil {
			return nil, err
		}
		replaced[i] = data
	}
	return json.Marshal(modifiedRecord{Kind: kindModified, Length: m.Length, Replaced: replaced})
}

// Decode parses a single JSON-encoded span, dispatching on its kind tag.
func Decode(data []byte) (Span, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, eris.Wrap(err, "span: decode")
	}
	switch probe.Kind {
	case kindBound:
		var rec boundRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, eris.Wrap(err, "span: decode bound")
		}
		return Bound{Start: rec.Start, End: rec.End}, nil
	case kindModified:
		var rec modifiedRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, eris.Wrap(err, "span: decode modified")
		}
		replaced, err := DecodeList(rec.Replaced)
		if err != nil {
			return nil, err
		}
		return Modified{Length: rec.Length, Replaced: replaced}, nil
	default:
		return nil, eris.Errorf("span: unknown span kind %q", probe.Kind)
	}
}

// DecodeList parses a list of JSON-encoded spans.
func DecodeList(items []json.RawMessage) ([]Span, error) {
	if len(items) == 0 {
		return nil, nil
	}
	spans := make([]Span, len(items))
	for i, item := range items {
		sp, err := Decode(item)
		if err != nil {
			return nil, err
		}
		spans[i] = sp
	}
	return spans, nil
}
