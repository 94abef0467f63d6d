package textops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/provenance"
)

func negationOf(t *testing.T, seg *annot.Segment) bool {
	t.Helper()
	attrs := seg.Attrs.Get(NegationAttrLabel)
	require.Len(t, attrs, 1)
	return bool(attrs[0].Value.(annot.BoolValue))
}

func TestNegationDetector_DefaultCues(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Patient has asthma", false},
		{"No diabetes", true},
		{"Patient denies chest pain", true},
		{"Blood culture negative for growth", true},
		{"Notable weight loss", false},
		{"Discharged WITHOUT complication", true},
	}
	detector, err := NewNegationDetector(nil)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			seg := rawSegment(tt.text)
			outputs, err := detector.Run([][]annot.Annotation{{seg}})
			require.NoError(t, err)
			assert.Nil(t, outputs)
			assert.Equal(t, tt.want, negationOf(t, seg))
		})
	}
}

func TestNegationDetector_CustomPatterns(t *testing.T) {
	detector, err := NewNegationDetector([]string{`(?i)\babsence of\b`})
	require.NoError(t, err)

	seg := rawSegment("Absence of fever. No cough.")
	_, err = detector.Run([][]annot.Annotation{{seg}})
	require.NoError(t, err)
	assert.True(t, negationOf(t, seg))

	// Default cues are replaced, not extended.
	plain := rawSegment("No cough")
	_, err = detector.Run([][]annot.Annotation{{plain}})
	require.NoError(t, err)
	assert.False(t, negationOf(t, plain))
}

func TestNegationDetector_BadPattern(t *testing.T) {
	_, err := NewNegationDetector([]string{"(unclosed"})
	assert.Error(t, err)
}

func TestNegationDetector_RecordsAttributeProvenance(t *testing.T) {
	detector, err := NewNegationDetector(nil)
	require.NoError(t, err)

	tracer := provenance.New()
	detector.SetProvTracer(tracer)

	seg := rawSegment("no fever")
	_, err = detector.Run([][]annot.Annotation{{seg}})
	require.NoError(t, err)

	attr := seg.Attrs.Get(NegationAttrLabel)[0]
	prov, err := tracer.GetProv(attr.UID)
	require.NoError(t, err)
	assert.Equal(t, []string{seg.UID}, prov.SourceIDs)
}
