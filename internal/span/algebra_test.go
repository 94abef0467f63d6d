package span

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wholeText(text string) []Span {
	return []Span{Bound{Start: 0, End: len(text)}}
}

func TestExtract_Basic(t *testing.T) {
	text := "The patient has asthma."
	newText, newSpans, err := Extract(text, wholeText(text), []Range{{Start: 16, End: 22}})
	require.NoError(t, err)
	assert.Equal(t, "asthma", newText)
	assert.Equal(t, []Span{Bound{Start: 16, End: 22}}, newSpans)
}

func TestExtract_MultipleRanges(t *testing.T) {
	text := "one two three"
	newText, newSpans, err := Extract(text, wholeText(text), []Range{
		{Start: 0, End: 3},
		{Start: 8, End: 13},
	})
	require.NoError(t, err)
	assert.Equal(t, "onethree", newText)
	assert.Equal(t, []Span{Bound{Start: 0, End: 3}, Bound{Start: 8, End: 13}}, newSpans)
}

// Extracting from an already-extracted segment must give the same spans
// as extracting the composed range from the original directly.
func TestExtract_Idempotence(t *testing.T) {
	text := "The patient has asthma and diabetes."
	sentence, spans, err := Extract(text, wholeText(text), []Range{{Start: 4, End: 36}})
	require.NoError(t, err)
	assert.Equal(t, "patient has asthma and diabetes.", sentence)

	word, wordSpans, err := Extract(sentence, spans, []Range{{Start: 12, End: 18}})
	require.NoError(t, err)
	assert.Equal(t, "asthma", word)

	direct, directSpans, err := Extract(text, wholeText(text), []Range{{Start: 16, End: 22}})
	require.NoError(t, err)
	assert.Equal(t, direct, word)
	assert.Equal(t, directSpans, wordSpans)
}

func TestExtract_WholeModifiedSpanIsKept(t *testing.T) {
	// "abXYZcd" where XYZ replaced original bytes [2,4).
	spans := []Span{
		Bound{Start: 0, End: 2},
		Modified{Length: 3, Replaced: []Span{Bound{Start: 2, End: 4}}},
		Bound{Start: 4, End: 6},
	}
	newText, newSpans, err := Extract("abXYZcd", spans, []Range{{Start: 2, End: 5}})
	require.NoError(t, err)
	assert.Equal(t, "XYZ", newText)
	assert.Equal(t, []Span{Modified{Length: 3, Replaced: []Span{Bound{Start: 2, End: 4}}}}, newSpans)
}

// A range falling strictly inside a Modified span cannot be traced and
// must fail rather than be approximated.
func TestExtract_PartialModifiedSpanFails(t *testing.T) {
	spans := []Span{
		Bound{Start: 0, End: 2},
		Modified{Length: 3, Replaced: []Span{Bound{Start: 2, End: 4}}},
		Bound{Start: 4, End: 6},
	}
	_, _, err := Extract("abXYZcd", spans, []Range{{Start: 3, End: 4}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlignment))
}

func TestExtract_RangeValidation(t *testing.T) {
	text := "hello world"
	spans := wholeText(text)
	tests := []struct {
		name     string
		ranges   []Range
		sentinel error
	}{
		{"empty range", []Range{{Start: 3, End: 3}}, ErrRange},
		{"inverted range", []Range{{Start: 5, End: 2}}, ErrRange},
		{"negative start", []Range{{Start: -1, End: 2}}, ErrRange},
		{"past end of text", []Range{{Start: 6, End: 99}}, ErrRange},
		{"out of order", []Range{{Start: 6, End: 8}, {Start: 0, End: 2}}, ErrAlignment},
		{"overlapping", []Range{{Start: 0, End: 5}, {Start: 3, End: 8}}, ErrAlignment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Extract(text, spans, tt.ranges)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel))
		})
	}
}

// Scenario: a rule rewriting the decimal separator of "3.5" must yield a
// one-byte Modified span at the separator and leave every other span
// untouched.
func TestReplace_DecimalSeparator(t *testing.T) {
	text := "The patient has 3.5 kg weight."
	newText, newSpans, err := Replace(text, wholeText(text), []Range{{Start: 17, End: 18}}, []string{","})
	require.NoError(t, err)
	assert.Equal(t, "The patient has 3,5 kg weight.", newText)
	assert.Equal(t, []Span{
		Bound{Start: 0, End: 17},
		Modified{Length: 1, Replaced: []Span{Bound{Start: 17, End: 18}}},
		Bound{Start: 18, End: 30},
	}, newSpans)
}

// Scenario: abbreviation expansion. The expanded segment must start with
// a Modified span covering the whole expansion, traced back to the
// abbreviation's original range.
func TestReplace_AbbreviationExpansion(t *testing.T) {
	text := "IRM du jour"
	expansion := "Imagerie par Résonance Magnétique"
	newText, newSpans, err := Replace(text, wholeText(text), []Range{{Start: 0, End: 3}}, []string{expansion})
	require.NoError(t, err)
	assert.Equal(t, expansion+" du jour", newText)
	require.NotEmpty(t, newSpans)
	assert.Equal(t, Modified{Length: len(expansion), Replaced: []Span{Bound{Start: 0, End: 3}}}, newSpans[0])
	assert.Equal(t, []Span{Bound{Start: 3, End: 11}}, newSpans[1:])
}

// Spans for text outside the replaced ranges must come through the call
// unchanged, not reconstructed.
func TestReplace_UntouchedSpansUnchanged(t *testing.T) {
	spans := []Span{
		Bound{Start: 10, End: 13},
		Modified{Length: 4, Replaced: []Span{Bound{Start: 13, End: 20}}},
		Bound{Start: 20, End: 24},
	}
	// text is 3+4+4 = 11 bytes; replace the last 2 bytes only.
	newText, newSpans, err := Replace("abcWXYZdefg", spans, []Range{{Start: 9, End: 11}}, []string{"!"})
	require.NoError(t, err)
	assert.Equal(t, "abcWXYZde!", newText)
	require.Len(t, newSpans, 4)
	assert.Equal(t, spans[0], newSpans[0])
	assert.Equal(t, spans[1], newSpans[1])
	assert.Equal(t, Bound{Start: 20, End: 22}, newSpans[2])
	assert.Equal(t, Modified{Length: 1, Replaced: []Span{Bound{Start: 22, End: 24}}}, newSpans[3])
}

func TestReplace_MultipleRanges(t *testing.T) {
	text := "aa bb cc"
	newText, newSpans, err := Replace(text, wholeText(text),
		[]Range{{Start: 0, End: 2}, {Start: 6, End: 8}},
		[]string{"XXX", "Y"})
	require.NoError(t, err)
	assert.Equal(t, "XXX bb Y", newText)
	assert.Equal(t, []Span{
		Modified{Length: 3, Replaced: []Span{Bound{Start: 0, End: 2}}},
		Bound{Start: 2, End: 6},
		Modified{Length: 1, Replaced: []Span{Bound{Start: 6, End: 8}}},
	}, newSpans)
}

func TestReplace_CountMismatch(t *testing.T) {
	text := "aa bb"
	_, _, err := Replace(text, wholeText(text), []Range{{Start: 0, End: 2}}, []string{"x", "y"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRange))
}

func TestRemove(t *testing.T) {
	text := "keep DROP keep"
	newText, newSpans, err := Remove(text, wholeText(text), []Range{{Start: 4, End: 9}})
	require.NoError(t, err)
	assert.Equal(t, "keep keep", newText)
	// No zero-length placebo span for the removed range.
	assert.Equal(t, []Span{Bound{Start: 0, End: 4}, Bound{Start: 9, End: 14}}, newSpans)
}

func TestInsert(t *testing.T) {
	text := "ab"
	newText, newSpans, err := Insert(text, wholeText(text), 1, "---")
	require.NoError(t, err)
	assert.Equal(t, "a---b", newText)
	assert.Equal(t, []Span{
		Bound{Start: 0, End: 1},
		Modified{Length: 3},
		Bound{Start: 1, End: 2},
	}, newSpans)
}

func TestInsert_AtEdges(t *testing.T) {
	text := "ab"
	newText, newSpans, err := Insert(text, wholeText(text), 0, ">>")
	require.NoError(t, err)
	assert.Equal(t, ">>ab", newText)
	assert.Equal(t, []Span{Modified{Length: 2}, Bound{Start: 0, End: 2}}, newSpans)

	newText, newSpans, err = Insert(text, wholeText(text), 2, "<<")
	require.NoError(t, err)
	assert.Equal(t, "ab<<", newText)
	assert.Equal(t, []Span{Bound{Start: 0, End: 2}, Modified{Length: 2}}, newSpans)
}

func TestInsert_InsideModifiedSpanFails(t *testing.T) {
	spans := []Span{Modified{Length: 4, Replaced: []Span{Bound{Start: 0, End: 2}}}}
	_, _, err := Insert("WXYZ", spans, 2, "!")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlignment))
}

func TestInsert_Validation(t *testing.T) {
	text := "ab"
	_, _, err := Insert(text, wholeText(text), 5, "x")
	assert.True(t, errors.Is(err, ErrRange))
	_, _, err = Insert(text, wholeText(text), 1, "")
	assert.True(t, errors.Is(err, ErrRange))
}

// checkReconstruction asserts the core invariant: span lengths account
// for every byte of the derived text, every top-level Bound span still
// denotes unmodified original text, and normalized spans stay within the
// original document.
func checkReconstruction(t *testing.T, original, derived string, spans []Span) {
	t.Helper()
	require.Equal(t, len(derived), TotalLen(spans))
	offset := 0
	for _, sp := range spans {
		if b, ok := sp.(Bound); ok {
			require.Equal(t, original[b.Start:b.End], derived[offset:offset+b.Len()])
		}
		offset += sp.Len()
	}
	for _, b := range Normalize(spans) {
		require.GreaterOrEqual(t, b.Start, 0)
		require.LessOrEqual(t, b.End, len(original))
		require.Less(t, b.Start, b.End)
	}
}

// Random sequences of extract/replace/insert operations must preserve
// the reconstruction invariant after every step.
func TestAlgebra_RandomOperationChains(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const alphabet = "abcdefghij kl mn"

	for trial := 0; trial < 200; trial++ {
		var sb strings.Builder
		for i := 0; i < 20+rng.Intn(60); i++ {
			sb.WriteByte(alphabet[rng.Intn(len(alphabet))])
		}
		original := sb.String()
		text := original
		spans := wholeText(original)

		for step := 0; step < 8; step++ {
			if len(text) < 2 {
				break
			}
			start := rng.Intn(len(text) - 1)
			end := start + 1 + rng.Intn(len(text)-start-1)
			var (
				newText  string
				newSpans []Span
				err      error
			)
			switch rng.Intn(3) {
			case 0:
				newText, newSpans, err = Extract(text, spans, []Range{{Start: start, End: end}})
			case 1:
				repl := strings.Repeat("#", 1+rng.Intn(5))
				newText, newSpans, err = Replace(text, spans, []Range{{Start: start, End: end}}, []string{repl})
			default:
				newText, newSpans, err = Insert(text, spans, start, "@@")
			}
			if err != nil {
				// Partial slices of modified spans are legal
				// outcomes of random ranges; nothing else is.
				require.True(t, errors.Is(err, ErrAlignment),
					fmt.Sprintf("trial %d step %d: unexpected error %v", trial, step, err))
				continue
			}
			text, spans = newText, newSpans
			checkReconstruction(t, original, text, spans)
		}
	}
}
