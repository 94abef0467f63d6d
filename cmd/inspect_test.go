package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/span"
)

func TestAnnotationRow_Entity(t *testing.T) {
	entity := annot.NewEntity("disorder", "asthma",
		[]span.Span{span.Bound{Start: 12, End: 18}},
		annot.WithAttrs(annot.NewAttribute("is_negated", annot.BoolValue(false))),
	)

	row := annotationRow(entity)
	require.Len(t, row, 6)
	assert.Equal(t, annot.KindEntity, row[1])
	assert.Equal(t, "disorder", row[2])
	assert.Equal(t, "asthma", row[3])
	assert.Equal(t, "12..18", row[4])
	assert.Equal(t, "is_negated=false", row[5])
}

func TestAnnotationRow_SegmentWithModifiedSpan(t *testing.T) {
	seg := annot.NewSegment("clean_text", "cafe, 3.5 kg", []span.Span{
		span.Bound{Start: 0, End: 3},
		span.Modified{Length: 1, Replaced: []span.Span{span.Bound{Start: 3, End: 5}}},
		span.Bound{Start: 5, End: 13},
	})

	row := annotationRow(seg)
	assert.Equal(t, annot.KindSegment, row[1])
	// Adjacent bounds merge when normalized.
	assert.Equal(t, "0..13", row[4])
}

func TestAnnotationRow_Relation(t *testing.T) {
	rel := annot.NewRelation("negates", "source01-aaaa", "target01-bbbb")

	row := annotationRow(rel)
	assert.Equal(t, annot.KindRelation, row[1])
	assert.Equal(t, "negates", row[2])
	assert.Equal(t, "source01 -> target01", row[3])
	assert.Empty(t, row[4])
}

func TestFormatAttrs(t *testing.T) {
	attrs := annot.NewAttrs(
		annot.NewAttribute("is_negated", annot.BoolValue(true)),
		annot.NewAttribute("severity", annot.StringValue("mild")),
		annot.NewAttribute("score", annot.FloatValue(0.5)),
		annot.NewAttribute(annot.NormLabel, annot.NormValue{KB: "umls", ID: "C0004096"}),
	)

	out := formatAttrs(attrs)
	assert.Contains(t, out, "is_negated=true")
	assert.Contains(t, out, "severity=mild")
	assert.Contains(t, out, "score=0.5")
	assert.Contains(t, out, "NORMALIZATION=umls:C0004096")
}
