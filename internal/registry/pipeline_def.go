package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/textweave/textweave/internal/pipeline"
)

// StepDef is one step of a declarative pipeline definition.
type StepDef struct {
	Op                 string         `yaml:"op"`
	InputKeys          []string       `yaml:"input_keys"`
	OutputKeys         []string       `yaml:"output_keys"`
	AggregateInputKeys bool           `yaml:"aggregate_input_keys"`
	Params             map[string]any `yaml:"params"`
}

// PipelineDef is a declarative pipeline: named steps wired by keys,
// loaded from YAML.
type PipelineDef struct {
	Name       string    `yaml:"name"`
	InputKeys  []string  `yaml:"input_keys"`
	OutputKeys []string  `yaml:"output_keys"`
	Steps      []StepDef `yaml:"steps"`
}

// ParsePipelineDef parses a YAML pipeline definition.
func ParsePipelineDef(data []byte) (*PipelineDef, error) {
	var def PipelineDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, eris.Wrap(err, "registry: parse pipeline definition")
	}
	if def.Name == "" {
		return nil, eris.New("registry: pipeline definition has no name")
	}
	if len(def.Steps) == 0 {
		return nil, eris.New("registry: pipeline definition has no steps")
	}
	for i, step := range def.Steps {
		if step.Op == "" {
			return nil, eris.Errorf("registry: step %d has no op", i)
		}
	}
	return &def, nil
}

// BuildPipeline instantiates every step through the registry and wires
// the pipeline. Key wiring is validated by the pipeline constructor.
func (r *Registry) BuildPipeline(def *PipelineDef) (*pipeline.Pipeline, error) {
	log := zap.L().With(zap.String("pipeline", def.Name))

	steps := make([]pipeline.Step, 0, len(def.Steps))
	for i, stepDef := range def.Steps {
		op, err := r.Build(stepDef.Op, stepDef.Params)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: pipeline %q step %d", def.Name, i)
		}
		steps = append(steps, pipeline.Step{
			Operation:          op,
			InputKeys:          stepDef.InputKeys,
			OutputKeys:         stepDef.OutputKeys,
			AggregateInputKeys: stepDef.AggregateInputKeys,
		})
	}

	p, err := pipeline.New(steps, def.InputKeys, def.OutputKeys, pipeline.WithName(def.Name))
	if err != nil {
		return nil, eris.Wrapf(err, "registry: pipeline %q", def.Name)
	}
	log.Debug("pipeline built", zap.Int("steps", len(def.Steps)))
	return p, nil
}

// LoadPipeline reads, parses and builds a pipeline definition file.
func (r *Registry) LoadPipeline(path string) (*pipeline.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read pipeline definition %s", path)
	}
	def, err := ParsePipelineDef(data)
	if err != nil {
		return nil, err
	}
	return r.BuildPipeline(def)
}
