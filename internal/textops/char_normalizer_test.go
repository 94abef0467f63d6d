package textops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/span"
)

func TestCharNormalizer_FoldsDiacritics(t *testing.T) {
	text := "café"
	normalizer := NewCharNormalizer(WithDiacriticsFolding())

	outputs, err := normalizer.Run([][]annot.Annotation{{rawSegment(text)}})
	require.NoError(t, err)
	require.Len(t, outputs[0], 1)

	clean := outputs[0][0].(*annot.Segment)
	assert.Equal(t, "cafe", clean.Text)

	// "é" occupies bytes 3..5 of the source; the folded "e" keeps a
	// modified span pointing back at it.
	require.Len(t, clean.Spans, 2)
	assert.Equal(t, span.NewBound(0, 3), clean.Spans[0])
	assert.Equal(t, span.Modified{Length: 1, Replaced: []span.Span{span.NewBound(3, 5)}}, clean.Spans[1])
}

func TestCharNormalizer_CharRules(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		rules []CharRule
		want  string
	}{
		{
			name:  "ligature expands",
			text:  "cœur",
			rules: []CharRule{{Char: "œ", Replacement: "oe"}},
			want:  "coeur",
		},
		{
			name:  "curly quote to apostrophe",
			text:  "l’hôpital",
			rules: []CharRule{{Char: "’", Replacement: "'"}},
			want:  "l'hôpital",
		},
		{
			name:  "character removal",
			text:  "a­b",
			rules: []CharRule{{Char: "­", Replacement: ""}},
			want:  "ab",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalizer := NewCharNormalizer(WithCharRules(tt.rules...))
			outputs, err := normalizer.Run([][]annot.Annotation{{rawSegment(tt.text)}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, outputs[0][0].(*annot.Segment).Text)
		})
	}
}

func TestCharNormalizer_RulesWinOverFolding(t *testing.T) {
	normalizer := NewCharNormalizer(
		WithDiacriticsFolding(),
		WithCharRules(CharRule{Char: "é", Replacement: "ee"}),
	)
	outputs, err := normalizer.Run([][]annot.Annotation{{rawSegment("café")}})
	require.NoError(t, err)
	assert.Equal(t, "cafee", outputs[0][0].(*annot.Segment).Text)
}

func TestCharNormalizer_IdentityWithoutOptions(t *testing.T) {
	seg := rawSegment("déjà vu")
	normalizer := NewCharNormalizer()

	outputs, err := normalizer.Run([][]annot.Annotation{{seg}})
	require.NoError(t, err)

	clean := outputs[0][0].(*annot.Segment)
	assert.Equal(t, seg.Text, clean.Text)
	assert.Equal(t, seg.Spans, clean.Spans)
}

func TestCharNormalizer_MatchOnCleanMapsToSource(t *testing.T) {
	text := "fièvre élevée"
	normalizer := NewCharNormalizer(WithDiacriticsFolding())
	outputs, err := normalizer.Run([][]annot.Annotation{{rawSegment(text)}})
	require.NoError(t, err)

	clean := outputs[0][0].(*annot.Segment)
	require.Equal(t, "fievre elevee", clean.Text)

	matcher, err := NewRegexpMatcher([]RegexpMatcherRule{{Label: "finding", Regexp: "fievre"}})
	require.NoError(t, err)
	matched, err := matcher.Run([][]annot.Annotation{{clean}})
	require.NoError(t, err)
	require.Len(t, matched[0], 1)

	// "fièvre" spans bytes 0..7 of the source (è is two bytes).
	entity := matched[0][0].(*annot.Entity)
	assert.Equal(t, []span.Bound{span.NewBound(0, 7)}, entity.NormalizedSpans())
}
