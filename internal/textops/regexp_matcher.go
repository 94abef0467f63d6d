package textops

import (
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/operation"
	"github.com/textweave/textweave/internal/provenance"
	"github.com/textweave/textweave/internal/span"
)

// RegexpMatcherRule is one pattern of a RegexpMatcher. Matches of
// Regexp become entities labeled Label.
type RegexpMatcherRule struct {
	Label         string `yaml:"label" json:"label"`
	Regexp        string `yaml:"regexp" json:"regexp"`
	CaseSensitive bool   `yaml:"case_sensitive" json:"case_sensitive"`
}

// RegexpMatcher finds entities in segments by regular expression. The
// entity spans are computed with the span algebra, so matches in heavily
// rewritten segments still resolve to raw-document offsets.
type RegexpMatcher struct {
	desc        operation.Description
	rules       []RegexpMatcherRule
	patterns    []*regexp.Regexp
	attrsToCopy []string
	tracer      *provenance.Tracer
}

// MatcherOption configures a RegexpMatcher.
type MatcherOption func(*RegexpMatcher)

// WithAttrsToCopy propagates attributes with the given labels from each
// matched segment onto the entities found in it (deep copies, new
// uids).
func WithAttrsToCopy(labels ...string) MatcherOption {
	return func(m *RegexpMatcher) { m.attrsToCopy = labels }
}

// NewRegexpMatcher compiles the given rules. A pattern that does not
// compile fails construction; there is no partial rule set.
func NewRegexpMatcher(rules []RegexpMatcherRule, opts ...MatcherOption) (*RegexpMatcher, error) {
	m := &RegexpMatcher{
		rules:    rules,
		patterns: make([]*regexp.Regexp, len(rules)),
	}
	for i, rule := range rules {
		expr := rule.Regexp
		if !rule.CaseSensitive {
			expr = "(?i)" + expr
		}
		pattern, err := regexp.Compile(expr)
		if err != nil {
			return nil, eris.Wrapf(err, "regexp matcher: rule %q", rule.Label)
		}
		m.patterns[i] = pattern
	}
	for _, opt := range opts {
		opt(m)
	}
	labels := make([]string, len(rules))
	for i, rule := range rules {
		labels[i] = rule.Label
	}
	m.desc = operation.NewDescription("RegexpMatcher", "", map[string]any{
		"rule_labels":   labels,
		"attrs_to_copy": m.attrsToCopy,
	})
	return m, nil
}

func (m *RegexpMatcher) Description() operation.Description { return m.desc }

// SetProvTracer enables provenance recording for found entities.
func (m *RegexpMatcher) SetProvTracer(tracer *provenance.Tracer) { m.tracer = tracer }

// Run finds every rule match in every input segment and returns the
// entities, in segment order then rule order then match order.
func (m *RegexpMatcher) Run(inputs [][]annot.Annotation) ([][]annot.Annotation, error) {
	segments, err := inputSegments("regexp matcher", inputs)
	if err != nil {
		return nil, err
	}
	var entities []annot.Annotation
	for _, seg := range segments {
		for i, pattern := range m.patterns {
			for _, loc := range pattern.FindAllStringIndex(seg.Text, -1) {
				entity, err := m.matchToEntity(seg, m.rules[i].Label, loc[0], loc[1])
				if err != nil {
					return nil, err
				}
				entities = append(entities, entity)
			}
		}
	}
	return [][]annot.Annotation{entities}, nil
}

func (m *RegexpMatcher) matchToEntity(seg *annot.Segment, label string, start, end int) (*annot.Entity, error) {
	text, spans, err := span.Extract(seg.Text, seg.Spans, []span.Range{{Start: start, End: end}})
	if err != nil {
		return nil, eris.Wrapf(err, "regexp matcher: match %q in segment %s", label, seg.UID)
	}
	entity := annot.NewEntity(label, text, spans)
	copyAttrs(&seg.Base, &entity.Base, m.attrsToCopy, m.desc, m.tracer)
	if m.tracer != nil {
		m.tracer.AddProv(entity.UID, m.desc, []string{seg.UID})
	}
	return entity, nil
}
