// Package pipeline composes operations into a keyed graph executable as
// a single operation. Steps are connected by sharing key names: a key in
// one step's output keys feeds every step declaring it as an input key.
// Execution order is derived from the producer/consumer graph by a
// topological sort, with declaration order breaking ties among
// independent steps, so a run is always single-pass and deterministic.
package pipeline

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/operation"
	"github.com/textweave/textweave/internal/provenance"
)

// ErrWiring reports a step graph that cannot execute: an input key
// nothing produces, a pipeline output key no step produces, or a cycle
// among steps.
var ErrWiring = eris.New("pipeline: invalid step wiring")

// ProvCapable is implemented by operations that can record provenance.
// Pipelines check for it by type assertion when a tracer is installed.
type ProvCapable interface {
	SetProvTracer(tracer *provenance.Tracer)
}

// Step binds an operation to the keys it consumes and produces.
type Step struct {
	Operation operation.Operation

	// InputKeys names, in operation argument order, the keys whose data
	// is passed to the operation.
	InputKeys []string

	// OutputKeys names, in operation return order, the keys the
	// operation's outputs are published under. Empty for operations
	// that only mutate their inputs in place.
	OutputKeys []string

	// AggregateInputKeys merges the data of all input keys into a
	// single list handed to the operation as its only argument, for
	// operations that do not care which producer an annotation came
	// from.
	AggregateInputKeys bool
}

// Pipeline is a composed graph of operations. It satisfies the
// operation contract itself, so a pipeline can be a step of another
// pipeline; nesting is invisible to the outer pipeline.
type Pipeline struct {
	uid   string
	name  string
	steps []Step

	inputKeys  []string
	outputKeys []string

	// Execution order: step indices, topologically sorted.
	order []int

	tracer    *provenance.Tracer
	subTracer *provenance.Tracer
}

// Option configures a pipeline at construction time.
type Option func(*Pipeline)

// WithName gives the pipeline a descriptive name, used in provenance
// and error messages.
func WithName(name string) Option {
	return func(p *Pipeline) { p.name = name }
}

// WithUID overrides the generated pipeline uid.
func WithUID(uid string) Option {
	return func(p *Pipeline) { p.uid = uid }
}

// New builds a pipeline from steps and the keys binding its own Run
// inputs and outputs. The wiring is validated here: every step input
// key must be produced by another step or supplied by the pipeline,
// every pipeline output key must be produced by a step, every pipeline
// input key must be consumed, and the producer/consumer graph must be
// acyclic.
func New(steps []Step, inputKeys, outputKeys []string, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		uid:        uuid.New().String(),
		name:       "pipeline",
		steps:      steps,
		inputKeys:  inputKeys,
		outputKeys: outputKeys,
	}
	for _, opt := range opts {
		opt(p)
	}
	order, err := p.sortSteps()
	if err != nil {
		return nil, err
	}
	p.order = order
	return p, nil
}

// sortSteps validates the key wiring and returns the execution order:
// a topological sort of the producer/consumer graph, breaking ties by
// declaration order.
func (p *Pipeline) sortSteps() ([]int, error) {
	producers := make(map[string][]int)
	for i, step := range p.steps {
		for _, key := range step.OutputKeys {
			producers[key] = append(producers[key], i)
		}
	}

	supplied := make(map[string]struct{}, len(p.inputKeys))
	for _, key := range p.inputKeys {
		supplied[key] = struct{}{}
	}

	consumed := make(map[string]struct{})
	for i, step := range p.steps {
		if step.Operation == nil {
			return nil, eris.Wrapf(ErrWiring, "step %d has no operation", i)
		}
		for _, key := range step.InputKeys {
			consumed[key] = struct{}{}
			if _, ok := supplied[key]; ok {
				continue
			}
			if _, ok := producers[key]; !ok {
				return nil, eris.Wrapf(ErrWiring,
					"step %d (%s): input key %q is neither a pipeline input nor produced by any step",
					i, stepName(step), key)
			}
		}
	}
	for _, key := range p.inputKeys {
		if _, ok := consumed[key]; !ok {
			return nil, eris.Wrapf(ErrWiring, "pipeline input key %q is not consumed by any step", key)
		}
	}
	for _, key := range p.outputKeys {
		if _, ok := producers[key]; !ok {
			return nil, eris.Wrapf(ErrWiring, "pipeline output key %q is not produced by any step", key)
		}
	}

	// Edges: every producer of a key precedes every consumer of it.
	// A step consuming a key it also produces is not its own
	// predecessor.
	succs := make([]map[int]struct{}, len(p.steps))
	indegree := make([]int, len(p.steps))
	for i := range p.steps {
		succs[i] = make(map[int]struct{})
	}
	for i, step := range p.steps {
		for _, key := range step.InputKeys {
			for _, producer := range producers[key] {
				if producer == i {
					continue
				}
				if _, ok := succs[producer][i]; !ok {
					succs[producer][i] = struct{}{}
					indegree[i]++
				}
			}
		}
	}

	// Kahn's algorithm, always picking the lowest-index ready step so
	// that independent steps keep their declaration order.
	order := make([]int, 0, len(p.steps))
	done := make([]bool, len(p.steps))
	for len(order) < len(p.steps) {
		next := -1
		for i := range p.steps {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			return nil, eris.Wrap(ErrWiring, "steps form a cycle")
		}
		done[next] = true
		order = append(order, next)
		for succ := range succs[next] {
			indegree[succ]--
		}
	}
	return order, nil
}

func stepName(step Step) string {
	if step.Operation == nil {
		return "?"
	}
	return step.Operation.Description().Name
}

// Description renders the pipeline as an operation description, with
// the full step wiring in the configuration.
func (p *Pipeline) Description() operation.Description {
	stepConfigs := make([]map[string]any, len(p.steps))
	for i, step := range p.steps {
		stepConfigs[i] = map[string]any{
			"operation":            step.Operation.Description(),
			"input_keys":           step.InputKeys,
			"output_keys":          step.OutputKeys,
			"aggregate_input_keys": step.AggregateInputKeys,
		}
	}
	return operation.Description{
		UID:       p.uid,
		Name:      p.name,
		ClassName: "Pipeline",
		Config: map[string]any{
			"steps":       stepConfigs,
			"input_keys":  p.inputKeys,
			"output_keys": p.outputKeys,
		},
	}
}

// SetProvTracer enables provenance recording. Steps run against a
// private sub-tracer; the pipeline re-exposes its outputs on the given
// tracer under its own description. An operation that does not support
// provenance leaves a gap in the fine-grained lineage and is logged.
func (p *Pipeline) SetProvTracer(tracer *provenance.Tracer) {
	p.tracer = tracer
	p.subTracer = provenance.New()
	for _, step := range p.steps {
		if pc, ok := step.Operation.(ProvCapable); ok {
			pc.SetProvTracer(p.subTracer)
		} else {
			zap.L().Warn("pipeline: operation does not record provenance",
				zap.String("pipeline", p.name),
				zap.String("operation", stepName(step)))
		}
	}
}

// InputKeys returns the keys bound to Run's inputs, in order.
func (p *Pipeline) InputKeys() []string { return p.inputKeys }

// OutputKeys returns the keys bound to Run's outputs, in order.
func (p *Pipeline) OutputKeys() []string { return p.outputKeys }

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Run executes every step once, in the precomputed order, and returns
// one annotation list per declared output key. The first failing step
// aborts the run; there is no retry and no partial result.
func (p *Pipeline) Run(inputs [][]annot.Annotation) ([][]annot.Annotation, error) {
	if len(inputs) != len(p.inputKeys) {
		return nil, eris.Errorf("pipeline %s: got %d inputs for %d input keys",
			p.name, len(inputs), len(p.inputKeys))
	}
	dataByKey := make(map[string][]annot.Annotation, len(p.inputKeys))
	for i, key := range p.inputKeys {
		dataByKey[key] = inputs[i]
	}
	for _, idx := range p.order {
		if err := p.performStep(idx, dataByKey); err != nil {
			return nil, err
		}
	}
	outputs := make([][]annot.Annotation, len(p.outputKeys))
	for i, key := range p.outputKeys {
		outputs[i] = dataByKey[key]
	}
	for _, out := range outputs {
		for _, ann := range out {
			ann.Common().TrimKeys(p.outputKeys)
		}
	}
	if p.tracer != nil {
		p.addProvenance(outputs)
	}
	return outputs, nil
}

func (p *Pipeline) performStep(idx int, dataByKey map[string][]annot.Annotation) error {
	step := p.steps[idx]

	inputs := make([][]annot.Annotation, 0, len(step.InputKeys))
	for _, key := range step.InputKeys {
		data, ok := dataByKey[key]
		if !ok {
			// Unreachable for a validated wiring; kept as a guard.
			return eris.Wrapf(ErrWiring, "step %d (%s): no data available for input key %q",
				idx, stepName(step), key)
		}
		inputs = append(inputs, data)
	}
	if step.AggregateInputKeys {
		var merged []annot.Annotation
		for _, in := range inputs {
			merged = append(merged, in...)
		}
		inputs = [][]annot.Annotation{merged}
	}

	outputs, err := step.Operation.Run(inputs)
	if err != nil {
		return eris.Wrapf(err, "pipeline %s: step %d (%s) failed", p.name, idx, stepName(step))
	}
	if outputs == nil {
		outputs = [][]annot.Annotation{}
	}
	if len(outputs) != len(step.OutputKeys) {
		return eris.Errorf("pipeline %s: step %d (%s) returned %d outputs for %d output keys",
			p.name, idx, stepName(step), len(outputs), len(step.OutputKeys))
	}

	for i, key := range step.OutputKeys {
		existing := dataByKey[key]
		// Full-slice expression: never grow into the backing array of a
		// caller-supplied input slice.
		dataByKey[key] = append(existing[:len(existing):len(existing)], outputs[i]...)
		for _, ann := range outputs[i] {
			ann.Common().AddKey(key)
		}
	}
	return nil
}

// addProvenance records the pipeline's outputs on the parent tracer,
// including attributes attached in place by side-effecting steps: those
// never appear in the output lists but are still products of this run.
func (p *Pipeline) addProvenance(outputs [][]annot.Annotation) {
	var itemIDs []string
	for _, out := range outputs {
		for _, ann := range out {
			itemIDs = append(itemIDs, ann.Common().UID)
			for _, attr := range ann.Common().Attrs.All() {
				if !p.subTracer.HasProv(attr.UID) {
					continue
				}
				if prov, err := p.subTracer.GetProv(attr.UID); err == nil && prov.OpDesc != nil {
					itemIDs = append(itemIDs, attr.UID)
				}
			}
		}
	}
	p.tracer.AddProvFromSubTracer(itemIDs, p.Description(), p.subTracer)
}
