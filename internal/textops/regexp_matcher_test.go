package textops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/provenance"
	"github.com/textweave/textweave/internal/span"
)

func rawSegment(text string) *annot.Segment {
	return annot.NewSegment("raw_text", text, []span.Span{span.NewBound(0, len(text))})
}

func TestRegexpMatcher_BadPatternFailsConstruction(t *testing.T) {
	_, err := NewRegexpMatcher([]RegexpMatcherRule{
		{Label: "broken", Regexp: "(unclosed"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRegexpMatcher_FindsEntitiesWithRawOffsets(t *testing.T) {
	text := "Patient has asthma and severe asthma attacks."
	matcher, err := NewRegexpMatcher([]RegexpMatcherRule{
		{Label: "problem", Regexp: `\basthma\b`},
	})
	require.NoError(t, err)

	outputs, err := matcher.Run([][]annot.Annotation{{rawSegment(text)}})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	require.Len(t, outputs[0], 2)

	first, ok := outputs[0][0].(*annot.Entity)
	require.True(t, ok)
	assert.Equal(t, "problem", first.Label)
	assert.Equal(t, "asthma", first.Text)
	assert.Equal(t, []span.Bound{span.NewBound(12, 18)}, first.NormalizedSpans())

	second := outputs[0][1].(*annot.Entity)
	assert.Equal(t, []span.Bound{span.NewBound(30, 36)}, second.NormalizedSpans())
}

func TestRegexpMatcher_CaseSensitivity(t *testing.T) {
	text := "ASTHMA noted."
	tests := []struct {
		name        string
		rule        RegexpMatcherRule
		wantMatches int
	}{
		{
			name:        "insensitive by default",
			rule:        RegexpMatcherRule{Label: "problem", Regexp: "asthma"},
			wantMatches: 1,
		},
		{
			name:        "sensitive on request",
			rule:        RegexpMatcherRule{Label: "problem", Regexp: "asthma", CaseSensitive: true},
			wantMatches: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matcher, err := NewRegexpMatcher([]RegexpMatcherRule{tt.rule})
			require.NoError(t, err)
			outputs, err := matcher.Run([][]annot.Annotation{{rawSegment(text)}})
			require.NoError(t, err)
			assert.Len(t, outputs[0], tt.wantMatches)
		})
	}
}

func TestRegexpMatcher_CopiesAttrsFromSegment(t *testing.T) {
	seg := rawSegment("no asthma")
	seg.Attrs.Add(annot.NewAttribute(NegationAttrLabel, annot.BoolValue(true)))
	seg.Attrs.Add(annot.NewAttribute("section", annot.StringValue("history")))

	matcher, err := NewRegexpMatcher(
		[]RegexpMatcherRule{{Label: "problem", Regexp: "asthma"}},
		WithAttrsToCopy(NegationAttrLabel),
	)
	require.NoError(t, err)

	outputs, err := matcher.Run([][]annot.Annotation{{seg}})
	require.NoError(t, err)
	require.Len(t, outputs[0], 1)

	entity := outputs[0][0].(*annot.Entity)
	copied := entity.Attrs.Get(NegationAttrLabel)
	require.Len(t, copied, 1)
	assert.Equal(t, annot.BoolValue(true), copied[0].Value)
	assert.NotEqual(t, seg.Attrs.Get(NegationAttrLabel)[0].UID, copied[0].UID)
	assert.Empty(t, entity.Attrs.Get("section"))
}

func TestRegexpMatcher_RejectsNonSegmentInput(t *testing.T) {
	matcher, err := NewRegexpMatcher([]RegexpMatcherRule{{Label: "x", Regexp: "x"}})
	require.NoError(t, err)

	rel := annot.NewRelation("refers_to", "a", "b")
	_, err = matcher.Run([][]annot.Annotation{{rel}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a segment")
}

func TestRegexpMatcher_RecordsProvenance(t *testing.T) {
	seg := rawSegment("asthma")
	matcher, err := NewRegexpMatcher([]RegexpMatcherRule{{Label: "problem", Regexp: "asthma"}})
	require.NoError(t, err)

	tracer := provenance.New()
	matcher.SetProvTracer(tracer)

	outputs, err := matcher.Run([][]annot.Annotation{{seg}})
	require.NoError(t, err)

	entity := outputs[0][0].(*annot.Entity)
	prov, err := tracer.GetProv(entity.UID)
	require.NoError(t, err)
	assert.Equal(t, []string{seg.UID}, prov.SourceIDs)
	assert.Equal(t, matcher.Description().UID, prov.OpDesc.UID)
}
