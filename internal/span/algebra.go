package span

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Sentinel errors for the span algebra. Alignment failures are never
// silently corrected: guessing an alignment would produce an incorrect
// provenance trail.
var (
	// ErrAlignment reports a range that does not align to span
	// boundaries (partially slicing a Modified span) or ranges given
	// out of order or overlapping.
	ErrAlignment = eris.New("span: range does not align to span boundaries")

	// ErrRange reports an empty or out-of-bounds range.
	ErrRange = eris.New("span: invalid range")
)

// Range is a byte range [Start, End) into the text an algebra function
// operates on.
type Range struct {
	Start int
	End   int
}

// validateRanges checks that ranges are non-empty, within bounds, and
// given in increasing, non-overlapping order.
func validateRanges(textLen int, ranges []Range) error {
	prevEnd := 0
	for i, r := range ranges {
		if r.Start >= r.End {
			return eris.Wrapf(ErrRange, "empty range [%d,%d) at index %d", r.Start, r.End, i)
		}
		if r.Start < 0 || r.End > textLen {
			return eris.Wrapf(ErrRange, "range [%d,%d) out of bounds for text of length %d", r.Start, r.End, textLen)
		}
		if r.Start < prevEnd {
			return eris.Wrapf(ErrAlignment, "range [%d,%d) at index %d overlaps or precedes the previous range", r.Start, r.End, i)
		}
		prevEnd = r.End
	}
	return nil
}

// slice returns the spans covering text[start:end], with start and end
// relative to the text the given spans describe. Bound spans are
// narrowed as needed; a span fully inside the requested range is passed
// through unchanged. A Modified span only partially covered by the range
// is indivisible and fails with ErrAlignment: slicing it would lose the
// provenance of a sub-portion of a substituted range.
func slice(spans []Span, start, end int) ([]Span, error) {
	var out []Span
	offset := 0
	for _, sp := range spans {
		spStart := offset
		spEnd := offset + sp.Len()
		offset = spEnd
		if spEnd <= start || spStart >= end {
			continue
		}
		from := spStart
		if start > from {
			from = start
		}
		to := spEnd
		if end < to {
			to = end
		}
		switch s := sp.(type) {
		case Bound:
			if from == spStart && to == spEnd {
				out = append(out, s)
			} else {
				out = append(out, Bound{Start: s.Start + (from - spStart), End: s.Start + (to - spStart)})
			}
		case Modified:
			if from != spStart || to != spEnd {
				return nil, eris.Wrapf(ErrAlignment,
					"range [%d,%d) partially covers a modified span at [%d,%d)", start, end, spStart, spEnd)
			}
			out = append(out, s)
		}
	}
	return out, nil
}

// Extract slices the given ranges out of text and concatenates them,
// returning the new text together with the spans realigned to it.
// Ranges must be non-empty, in increasing order and non-overlapping.
func Extract(text string, spans []Span, ranges []Range) (string, []Span, error) {
	if err := validateRanges(len(text), ranges); err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	var out []Span
	for _, r := range ranges {
		sub, err := slice(spans, r.Start, r.End)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(text[r.Start:r.End])
		out = append(out, sub...)
	}
	return sb.String(), out, nil
}

// Replace substitutes each range of text with the corresponding
// replacement, returning the new text and spans. Each replaced range
// becomes a Modified span recording the spans it stood for; spans of
// untouched text pass through unchanged.
func Replace(text string, spans []Span, ranges []Range, replacements []string) (string, []Span, error) {
	if len(replacements) != len(ranges) {
		return "", nil, eris.Wrapf(ErrRange,
			"got %d replacement texts for %d ranges", len(replacements), len(ranges))
	}
	return rewrite(text, spans, ranges, replacements)
}

// Remove deletes the given ranges from text. Removed ranges disappear
// entirely from the resulting spans; no zero-length placeholders are
// kept.
func Remove(text string, spans []Span, ranges []Range) (string, []Span, error) {
	return rewrite(text, spans, ranges, nil)
}

// rewrite implements Replace and Remove: ranges are substituted with the
// corresponding replacement text, or dropped when replacements is nil.
func rewrite(text string, spans []Span, ranges []Range, replacements []string) (string, []Span, error) {
	if err := validateRanges(len(text), ranges); err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	var out []Span
	cursor := 0
	for i, r := range ranges {
		if cursor < r.Start {
			kept, err := slice(spans, cursor, r.Start)
			if err != nil {
				return "", nil, err
			}
			sb.WriteString(text[cursor:r.Start])
			out = append(out, kept...)
		}
		replaced, err := slice(spans, r.Start, r.End)
		if err != nil {
			return "", nil, err
		}
		if replacements != nil {
			sb.WriteString(replacements[i])
			out = append(out, Modified{Length: len(replacements[i]), Replaced: replaced})
		}
		cursor = r.End
	}
	if cursor < len(text) {
		kept, err := slice(spans, cursor, len(text))
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(text[cursor:])
		out = append(out, kept...)
	}
	return sb.String(), out, nil
}

// Insert inserts text at a point position. The inserted bytes are
// represented by a Modified span with no replaced spans: they are
// explicitly marked as having no traceable origin. Inserting strictly
// inside a Modified span fails with ErrAlignment.
func Insert(text string, spans []Span, pos int, insertion string) (string, []Span, error) {
	if pos < 0 || pos > len(text) {
		return "", nil, eris.Wrapf(ErrRange, "insertion position %d out of bounds for text of length %d", pos, len(text))
	}
	if insertion == "" {
		return "", nil, eris.Wrap(ErrRange, "empty insertion text")
	}
	left, err := slice(spans, 0, pos)
	if err != nil {
		return "", nil, err
	}
	right, err := slice(spans, pos, len(text))
	if err != nil {
		return "", nil, err
	}
	out := make([]Span, 0, len(left)+1+len(right))
	out = append(out, left...)
	out = append(out, Modified{Length: len(insertion)})
	out = append(out, right...)
	return text[:pos] + insertion + text[pos:], out, nil
}
