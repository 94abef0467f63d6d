package textops

import (
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/operation"
	"github.com/textweave/textweave/internal/provenance"
	"github.com/textweave/textweave/internal/span"
)

// CharRule maps a single character to its replacement, e.g. a ligature
// to its expansion or a curly quote to the ASCII apostrophe.
type CharRule struct {
	Char        string `yaml:"char" json:"char"`
	Replacement string `yaml:"replacement" json:"replacement"`
}

// CharNormalizer rewrites individual characters. Each changed character
// becomes a Modified span over the original rune, so downstream matches
// still map back to the exact source character. Runes are rewritten one
// at a time; rules that need surrounding context belong in a
// RegexpReplacer instead.
type CharNormalizer struct {
	desc           operation.Description
	outputLabel    string
	foldDiacritics bool
	rules          map[rune]string
	folder         transform.Transformer
	tracer         *provenance.Tracer
}

// NormalizerOption configures a CharNormalizer.
type NormalizerOption func(*CharNormalizer)

// WithNormalizerOutputLabel sets the label of produced segments.
func WithNormalizerOutputLabel(label string) NormalizerOption {
	return func(n *CharNormalizer) { n.outputLabel = label }
}

// WithDiacriticsFolding strips combining marks, turning "é" into "e".
func WithDiacriticsFolding() NormalizerOption {
	return func(n *CharNormalizer) { n.foldDiacritics = true }
}

// WithCharRules adds explicit single-character replacements. Rules take
// precedence over diacritics folding.
func WithCharRules(rules ...CharRule) NormalizerOption {
	return func(n *CharNormalizer) {
		for _, rule := range rules {
			r, size := utf8.DecodeRuneInString(rule.Char)
			if size == len(rule.Char) && r != utf8.RuneError {
				n.rules[r] = rule.Replacement
			}
		}
	}
}

// NewCharNormalizer builds a normalizer from the given options. With no
// options it is the identity operation.
func NewCharNormalizer(opts ...NormalizerOption) *CharNormalizer {
	n := &CharNormalizer{
		outputLabel: DefaultCleanLabel,
		rules:       map[rune]string{},
		folder:      transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.desc = operation.NewDescription("CharNormalizer", "", map[string]any{
		"output_label":    n.outputLabel,
		"fold_diacritics": n.foldDiacritics,
		"rules":           len(n.rules),
	})
	return n
}

func (n *CharNormalizer) Description() operation.Description { return n.desc }

// SetProvTracer enables provenance recording for produced segments.
func (n *CharNormalizer) SetProvTracer(tracer *provenance.Tracer) { n.tracer = tracer }

// Run normalizes every input segment and returns one new segment per
// input, even when no character changed.
func (n *CharNormalizer) Run(inputs [][]annot.Annotation) ([][]annot.Annotation, error) {
	segments, err := inputSegments("char normalizer", inputs)
	if err != nil {
		return nil, err
	}
	out := make([]annot.Annotation, 0, len(segments))
	for _, seg := range segments {
		text, spans, err := n.normalize(seg.Text, seg.Spans)
		if err != nil {
			return nil, eris.Wrapf(err, "char normalizer: segment %s", seg.UID)
		}
		normalized := annot.NewSegment(n.outputLabel, text, spans)
		if n.tracer != nil {
			n.tracer.AddProv(normalized.UID, n.desc, []string{seg.UID})
		}
		out = append(out, normalized)
	}
	return [][]annot.Annotation{out}, nil
}

func (n *CharNormalizer) normalize(text string, spans []span.Span) (string, []span.Span, error) {
	var ranges []span.Range
	var replacements []string
	for i, r := range text {
		repl, changed := n.replacementFor(r)
		if !changed {
			continue
		}
		ranges = append(ranges, span.Range{Start: i, End: i + utf8.RuneLen(r)})
		replacements = append(replacements, repl)
	}
	if len(ranges) == 0 {
		return text, spans, nil
	}
	return span.Replace(text, spans, ranges, replacements)
}

func (n *CharNormalizer) replacementFor(r rune) (string, bool) {
	if repl, ok := n.rules[r]; ok {
		return repl, repl != string(r)
	}
	if !n.foldDiacritics {
		return "", false
	}
	folded, _, err := transform.String(n.folder, string(r))
	if err != nil || folded == string(r) {
		return "", false
	}
	return folded, true
}
