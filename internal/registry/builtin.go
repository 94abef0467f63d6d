package registry

import (
	"github.com/textweave/textweave/internal/operation"
	"github.com/textweave/textweave/internal/textops"
)

// Operation names accepted in pipeline definitions.
const (
	OpRegexpMatcher       = "regexp_matcher"
	OpSentenceTokenizer   = "sentence_tokenizer"
	OpRegexpReplacer      = "regexp_replacer"
	OpCharNormalizer      = "char_normalizer"
	OpNegationDetector    = "negation_detector"
	OpAttributeDuplicator = "attribute_duplicator"
)

// NewDefault creates a registry with every built-in operation
// registered.
func NewDefault() *Registry {
	r := New()
	builtins := map[string]Factory{
		OpRegexpMatcher:       buildRegexpMatcher,
		OpSentenceTokenizer:   buildSentenceTokenizer,
		OpRegexpReplacer:      buildRegexpReplacer,
		OpCharNormalizer:      buildCharNormalizer,
		OpNegationDetector:    buildNegationDetector,
		OpAttributeDuplicator: buildAttributeDuplicator,
	}
	for name, factory := range builtins {
		// Names are distinct constants; registration cannot collide.
		_ = r.Register(name, factory)
	}
	return r
}

func buildRegexpMatcher(params map[string]any) (operation.Operation, error) {
	var cfg struct {
		Rules       []textops.RegexpMatcherRule `yaml:"rules"`
		AttrsToCopy []string                    `yaml:"attrs_to_copy"`
	}
	if err := DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	var opts []textops.MatcherOption
	if len(cfg.AttrsToCopy) > 0 {
		opts = append(opts, textops.WithAttrsToCopy(cfg.AttrsToCopy...))
	}
	return textops.NewRegexpMatcher(cfg.Rules, opts...)
}

func buildSentenceTokenizer(params map[string]any) (operation.Operation, error) {
	var cfg struct {
		OutputLabel string `yaml:"output_label"`
		PunctChars  string `yaml:"punct_chars"`
		KeepPunct   bool   `yaml:"keep_punct"`
	}
	if err := DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	var opts []textops.TokenizerOption
	if cfg.OutputLabel != "" {
		opts = append(opts, textops.WithOutputLabel(cfg.OutputLabel))
	}
	if cfg.PunctChars != "" {
		opts = append(opts, textops.WithPunctChars(cfg.PunctChars))
	}
	if cfg.KeepPunct {
		opts = append(opts, textops.WithKeepPunct())
	}
	return textops.NewSentenceTokenizer(opts...), nil
}

func buildRegexpReplacer(params map[string]any) (operation.Operation, error) {
	var cfg struct {
		Rules       []textops.ReplacementRule `yaml:"rules"`
		OutputLabel string                    `yaml:"output_label"`
	}
	if err := DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	var opts []textops.ReplacerOption
	if cfg.OutputLabel != "" {
		opts = append(opts, textops.WithReplacerOutputLabel(cfg.OutputLabel))
	}
	return textops.NewRegexpReplacer(cfg.Rules, opts...)
}

func buildCharNormalizer(params map[string]any) (operation.Operation, error) {
	var cfg struct {
		OutputLabel    string             `yaml:"output_label"`
		FoldDiacritics bool               `yaml:"fold_diacritics"`
		Rules          []textops.CharRule `yaml:"rules"`
	}
	if err := DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	var opts []textops.NormalizerOption
	if cfg.OutputLabel != "" {
		opts = append(opts, textops.WithNormalizerOutputLabel(cfg.OutputLabel))
	}
	if cfg.FoldDiacritics {
		opts = append(opts, textops.WithDiacriticsFolding())
	}
	if len(cfg.Rules) > 0 {
		opts = append(opts, textops.WithCharRules(cfg.Rules...))
	}
	return textops.NewCharNormalizer(opts...), nil
}

func buildNegationDetector(params map[string]any) (operation.Operation, error) {
	var cfg struct {
		Patterns []string `yaml:"patterns"`
	}
	if err := DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	return textops.NewNegationDetector(cfg.Patterns)
}

func buildAttributeDuplicator(params map[string]any) (operation.Operation, error) {
	var cfg struct {
		AttrLabels []string `yaml:"attr_labels"`
	}
	if err := DecodeParams(params, &cfg); err != nil {
		return nil, err
	}
	return textops.NewAttributeDuplicator(cfg.AttrLabels)
}
