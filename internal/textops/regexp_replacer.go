package textops

import (
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/operation"
	"github.com/textweave/textweave/internal/provenance"
	"github.com/textweave/textweave/internal/span"
)

// DefaultCleanLabel is the label of segments produced by rewriting
// operations unless configured otherwise.
const DefaultCleanLabel = "clean_text"

// ReplacementRule rewrites every match of Pattern to Replacement. When
// Group is non-zero, only that capture group's range is rewritten; the
// surrounding match acts as context, standing in for the lookaround
// assertions the regexp syntax does not provide.
type ReplacementRule struct {
	Pattern     string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement" json:"replacement"`
	Group       int    `yaml:"group" json:"group"`
}

// RegexpReplacer rewrites segments rule by rule, producing new segments
// whose rewritten ranges carry Modified spans pointing at the text they
// replaced. Abbreviation expansion, character folding and redaction are
// all instances of this operation.
type RegexpReplacer struct {
	desc        operation.Description
	outputLabel string
	rules       []ReplacementRule
	patterns    []*regexp.Regexp
	tracer      *provenance.Tracer
}

// ReplacerOption configures a RegexpReplacer.
type ReplacerOption func(*RegexpReplacer)

// WithReplacerOutputLabel sets the label of produced segments.
func WithReplacerOutputLabel(label string) ReplacerOption {
	return func(r *RegexpReplacer) { r.outputLabel = label }
}

// NewRegexpReplacer compiles the given rules.
func NewRegexpReplacer(rules []ReplacementRule, opts ...ReplacerOption) (*RegexpReplacer, error) {
	r := &RegexpReplacer{
		outputLabel: DefaultCleanLabel,
		rules:       rules,
		patterns:    make([]*regexp.Regexp, len(rules)),
	}
	for i, rule := range rules {
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "regexp replacer: rule %d", i)
		}
		if rule.Group < 0 || rule.Group > pattern.NumSubexp() {
			return nil, eris.Errorf("regexp replacer: rule %d has no capture group %d", i, rule.Group)
		}
		r.patterns[i] = pattern
	}
	for _, opt := range opts {
		opt(r)
	}
	r.desc = operation.NewDescription("RegexpReplacer", "", map[string]any{
		"output_label": r.outputLabel,
		"rules":        len(rules),
	})
	return r, nil
}

func (r *RegexpReplacer) Description() operation.Description { return r.desc }

// SetProvTracer enables provenance recording for produced segments.
func (r *RegexpReplacer) SetProvTracer(tracer *provenance.Tracer) { r.tracer = tracer }

// Run rewrites every input segment through every rule in order and
// returns one new segment per input segment, even when no rule matched.
func (r *RegexpReplacer) Run(inputs [][]annot.Annotation) ([][]annot.Annotation, error) {
	segments, err := inputSegments("regexp replacer", inputs)
	if err != nil {
		return nil, err
	}
	out := make([]annot.Annotation, 0, len(segments))
	for _, seg := range segments {
		text, spans := seg.Text, seg.Spans
		for i, pattern := range r.patterns {
			text, spans, err = r.applyRule(text, spans, pattern, r.rules[i])
			if err != nil {
				return nil, eris.Wrapf(err, "regexp replacer: segment %s", seg.UID)
			}
		}
		rewritten := annot.NewSegment(r.outputLabel, text, spans)
		if r.tracer != nil {
			r.tracer.AddProv(rewritten.UID, r.desc, []string{seg.UID})
		}
		out = append(out, rewritten)
	}
	return [][]annot.Annotation{out}, nil
}

func (r *RegexpReplacer) applyRule(text string, spans []span.Span, pattern *regexp.Regexp, rule ReplacementRule) (string, []span.Span, error) {
	matches := pattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, spans, nil
	}
	ranges := make([]span.Range, 0, len(matches))
	replacements := make([]string, 0, len(matches))
	for _, match := range matches {
		start, end := match[2*rule.Group], match[2*rule.Group+1]
		if start < 0 {
			// The group did not participate in this match.
			continue
		}
		ranges = append(ranges, span.Range{Start: start, End: end})
		replacements = append(replacements, rule.Replacement)
	}
	if len(ranges) == 0 {
		return text, spans, nil
	}
	return span.Replace(text, spans, ranges, replacements)
}
