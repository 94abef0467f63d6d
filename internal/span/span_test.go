package span

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundLen(t *testing.T) {
	assert.Equal(t, 5, NewBound(3, 8).Len())
}

func TestNewBound_RejectsEmpty(t *testing.T) {
	assert.Panics(t, func() { NewBound(3, 3) })
	assert.Panics(t, func() { NewBound(5, 2) })
	assert.Panics(t, func() { NewBound(-1, 2) })
}

func TestModifiedLen(t *testing.T) {
	m := Modified{Length: 4, Replaced: []Span{Bound{Start: 0, End: 10}}}
	assert.Equal(t, 4, m.Len())
}

func TestTotalLen(t *testing.T) {
	spans := []Span{
		Bound{Start: 0, End: 3},
		Modified{Length: 7, Replaced: []Span{Bound{Start: 3, End: 5}}},
		Bound{Start: 5, End: 6},
	}
	assert.Equal(t, 11, TotalLen(spans))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		spans    []Span
		expected []Bound
	}{
		{
			"bounds pass through",
			[]Span{Bound{Start: 2, End: 5}, Bound{Start: 8, End: 10}},
			[]Bound{{Start: 2, End: 5}, {Start: 8, End: 10}},
		},
		{
			"adjacent bounds merge",
			[]Span{Bound{Start: 2, End: 5}, Bound{Start: 5, End: 9}},
			[]Bound{{Start: 2, End: 9}},
		},
		{
			"modified spans expand recursively",
			[]Span{
				Modified{Length: 3, Replaced: []Span{
					Modified{Length: 8, Replaced: []Span{Bound{Start: 0, End: 4}}},
					Bound{Start: 4, End: 6},
				}},
			},
			[]Bound{{Start: 0, End: 6}},
		},
		{
			"insertions disappear",
			[]Span{Bound{Start: 0, End: 2}, Modified{Length: 5}, Bound{Start: 2, End: 4}},
			[]Bound{{Start: 0, End: 4}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.spans))
		})
	}
}

func TestCoalesce(t *testing.T) {
	spans := []Span{
		Bound{Start: 0, End: 3},
		Bound{Start: 3, End: 6},
		Modified{Length: 2, Replaced: []Span{Bound{Start: 6, End: 7}}},
		Bound{Start: 7, End: 8},
		Bound{Start: 9, End: 10},
	}
	got := Coalesce(spans)
	require.Len(t, got, 4)
	assert.Equal(t, Bound{Start: 0, End: 6}, got[0])
	assert.Equal(t, Bound{Start: 7, End: 8}, got[2])
	assert.Equal(t, Bound{Start: 9, End: 10}, got[3])
	assert.Equal(t, TotalLen(spans), TotalLen(got))
}

func TestJSONRoundTrip(t *testing.T) {
	spans := []Span{
		Bound{Start: 2, End: 7},
		Modified{Length: 4, Replaced: []Span{
			Bound{Start: 7, End: 9},
			Modified{Length: 1},
		}},
	}
	for _, sp := range spans {
		data, err := json.Marshal(sp)
		require.NoError(t, err)
		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, sp, decoded)
	}
}

func TestJSONKindTags(t *testing.T) {
	data, err := json.Marshal(Bound{Start: 1, End: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"bound","start":1,"end":2}`, string(data))

	data, err = json.Marshal(Modified{Length: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"modified","length":3,"replaced_spans":[]}`, string(data))
}

func TestDecode_UnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"kind":"wobbly"}`))
	assert.Error(t, err)
}
