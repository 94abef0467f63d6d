package textops

import (
	"strings"
	"unicode/utf8"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/operation"
	"github.com/textweave/textweave/internal/provenance"
	"github.com/textweave/textweave/internal/span"
)

// DefaultSentenceLabel is the label of segments produced by a
// SentenceTokenizer unless configured otherwise.
const DefaultSentenceLabel = "sentence"

// SentenceTokenizer splits segments into sentences on terminal
// punctuation and newlines. Sentence spans are carved out of the input
// segment's spans, so they stay traceable through any earlier
// rewriting.
type SentenceTokenizer struct {
	desc        operation.Description
	outputLabel string
	punctChars  string
	keepPunct   bool
	tracer      *provenance.Tracer
}

// TokenizerOption configures a SentenceTokenizer.
type TokenizerOption func(*SentenceTokenizer)

// WithOutputLabel sets the label of produced sentence segments.
func WithOutputLabel(label string) TokenizerOption {
	return func(t *SentenceTokenizer) { t.outputLabel = label }
}

// WithPunctChars sets the characters treated as sentence terminators.
func WithPunctChars(chars string) TokenizerOption {
	return func(t *SentenceTokenizer) { t.punctChars = chars }
}

// WithKeepPunct keeps the terminating punctuation inside the sentence
// segment instead of dropping it.
func WithKeepPunct() TokenizerOption {
	return func(t *SentenceTokenizer) { t.keepPunct = true }
}

// NewSentenceTokenizer creates a tokenizer splitting on ".", "!", "?"
// and newline by default.
func NewSentenceTokenizer(opts ...TokenizerOption) *SentenceTokenizer {
	t := &SentenceTokenizer{
		outputLabel: DefaultSentenceLabel,
		punctChars:  ".!?\n",
	}
	for _, opt := range opts {
		opt(t)
	}
	t.desc = operation.NewDescription("SentenceTokenizer", "", map[string]any{
		"output_label": t.outputLabel,
		"punct_chars":  t.punctChars,
		"keep_punct":   t.keepPunct,
	})
	return t
}

func (t *SentenceTokenizer) Description() operation.Description { return t.desc }

// SetProvTracer enables provenance recording for produced sentences.
func (t *SentenceTokenizer) SetProvTracer(tracer *provenance.Tracer) { t.tracer = tracer }

// Run splits every input segment and returns the sentence segments in
// reading order.
func (t *SentenceTokenizer) Run(inputs [][]annot.Annotation) ([][]annot.Annotation, error) {
	segments, err := inputSegments("sentence tokenizer", inputs)
	if err != nil {
		return nil, err
	}
	var sentences []annot.Annotation
	for _, seg := range segments {
		for _, r := range t.sentenceRanges(seg.Text) {
			text, spans, err := span.Extract(seg.Text, seg.Spans, []span.Range{r})
			if err != nil {
				return nil, err
			}
			sentence := annot.NewSegment(t.outputLabel, text, spans)
			if t.tracer != nil {
				t.tracer.AddProv(sentence.UID, t.desc, []string{seg.UID})
			}
			sentences = append(sentences, sentence)
		}
	}
	return [][]annot.Annotation{sentences}, nil
}

// sentenceRanges finds the byte ranges of sentences in text, trimmed of
// surrounding whitespace. Empty sentences are dropped.
func (t *SentenceTokenizer) sentenceRanges(text string) []span.Range {
	var ranges []span.Range
	start := 0
	flush := func(end, punctEnd int) {
		if t.keepPunct && punctEnd > end {
			end = punctEnd
		}
		if r, ok := trimRange(text, start, end); ok {
			ranges = append(ranges, r)
		}
	}
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if strings.ContainsRune(t.punctChars, r) {
			punctEnd := i + size
			// Swallow a run of terminators ("...", "?!").
			for punctEnd < len(text) {
				next, nextSize := utf8.DecodeRuneInString(text[punctEnd:])
				if !strings.ContainsRune(t.punctChars, next) {
					break
				}
				punctEnd += nextSize
			}
			flush(i, punctEnd)
			start = punctEnd
			i = punctEnd
			continue
		}
		i += size
	}
	flush(len(text), len(text))
	return ranges
}

// trimRange narrows [start, end) to exclude surrounding whitespace,
// reporting false when nothing is left.
func trimRange(text string, start, end int) (span.Range, bool) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !isSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !isSpace(r) {
			break
		}
		end -= size
	}
	if start >= end {
		return span.Range{}, false
	}
	return span.Range{Start: start, End: end}, true
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
