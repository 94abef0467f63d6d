package textops

import (
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/operation"
	"github.com/textweave/textweave/internal/provenance"
)

// NegationAttrLabel is the label of the boolean attribute attached by
// the NegationDetector.
const NegationAttrLabel = "is_negated"

// DefaultNegationPatterns cover common negation cues. They match the
// cue word anywhere in the segment, so the detector is meant to run on
// short segments such as sentences or syntagmas.
var DefaultNegationPatterns = []string{
	`(?i)\bno\b`,
	`(?i)\bnot\b`,
	`(?i)\bwithout\b`,
	`(?i)\bdenies\b`,
	`(?i)\bnegative for\b`,
	`(?i)\bfree of\b`,
}

// NegationDetector attaches an is_negated boolean attribute to every
// input segment. It modifies its inputs in place and produces no output
// segments.
type NegationDetector struct {
	desc     operation.Description
	patterns []*regexp.Regexp
	tracer   *provenance.Tracer
}

// NewNegationDetector compiles the given cue patterns, falling back to
// DefaultNegationPatterns when none are given.
func NewNegationDetector(patterns []string) (*NegationDetector, error) {
	if len(patterns) == 0 {
		patterns = DefaultNegationPatterns
	}
	d := &NegationDetector{patterns: make([]*regexp.Regexp, len(patterns))}
	for i, p := range patterns {
		compiled, err := regexp.Compile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "negation detector: pattern %d", i)
		}
		d.patterns[i] = compiled
	}
	d.desc = operation.NewDescription("NegationDetector", "", map[string]any{
		"patterns": len(patterns),
	})
	return d, nil
}

func (d *NegationDetector) Description() operation.Description { return d.desc }

// SetProvTracer enables provenance recording for attached attributes.
func (d *NegationDetector) SetProvTracer(tracer *provenance.Tracer) { d.tracer = tracer }

// Run tags every input segment and returns nil output slots.
func (d *NegationDetector) Run(inputs [][]annot.Annotation) ([][]annot.Annotation, error) {
	segments, err := inputSegments("negation detector", inputs)
	if err != nil {
		return nil, err
	}
	for _, seg := range segments {
		negated := false
		for _, pattern := range d.patterns {
			if pattern.MatchString(seg.Text) {
				negated = true
				break
			}
		}
		attr := annot.NewAttribute(NegationAttrLabel, annot.BoolValue(negated))
		seg.Attrs.Add(attr)
		if d.tracer != nil {
			d.tracer.AddProv(attr.UID, d.desc, []string{seg.UID})
		}
	}
	return nil, nil
}
