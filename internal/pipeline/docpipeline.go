package pipeline

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/document"
	"github.com/textweave/textweave/internal/provenance"
)

// DocPipeline iterates a pipeline over documents: for each document it
// resolves the pipeline's input keys against the document's existing
// annotations, runs the pipeline, and commits every output annotation
// back into the document's container.
//
// Runs are not idempotent: output annotations always carry fresh uids,
// so running the same DocPipeline twice over a document duplicates its
// annotations. Callers needing idempotence must guard externally.
type DocPipeline struct {
	uid      string
	pipeline *Pipeline

	// labelsByInputKey maps each pipeline input key to the labels of
	// the document annotations feeding it. When nil, the pipeline is
	// assumed to take the document's raw segment as its single input.
	labelsByInputKey map[string][]string
}

// DocOption configures a DocPipeline.
type DocOption func(*DocPipeline)

// WithLabelsByInputKey maps pipeline input keys to document annotation
// labels. Several labels may feed the same key; their annotations are
// concatenated in label order.
func WithLabelsByInputKey(labels map[string][]string) DocOption {
	return func(dp *DocPipeline) { dp.labelsByInputKey = labels }
}

// NewDocPipeline wraps a pipeline for document-level execution.
func NewDocPipeline(p *Pipeline, opts ...DocOption) *DocPipeline {
	dp := &DocPipeline{uid: uuid.New().String(), pipeline: p}
	for _, opt := range opts {
		opt(dp)
	}
	return dp
}

// SetProvTracer forwards the tracer to the wrapped pipeline.
func (dp *DocPipeline) SetProvTracer(tracer *provenance.Tracer) {
	dp.pipeline.SetProvTracer(tracer)
}

// Run executes the pipeline on each document in turn, attaching the
// outputs to the document they came from. The first failing document
// aborts the remaining ones.
func (dp *DocPipeline) Run(docs []*document.Document) error {
	log := zap.L().With(zap.String("pipeline", dp.pipeline.Name()))
	for _, doc := range docs {
		if err := dp.processDoc(doc); err != nil {
			return eris.Wrapf(err, "doc pipeline: document %s", doc.UID)
		}
		log.Debug("doc pipeline: document processed", zap.String("doc", doc.UID))
	}
	return nil
}

func (dp *DocPipeline) processDoc(doc *document.Document) error {
	inputs, err := dp.resolveInputs(doc)
	if err != nil {
		return err
	}
	outputs, err := dp.pipeline.Run(inputs)
	if err != nil {
		return err
	}
	for _, out := range outputs {
		for _, ann := range out {
			if err := doc.Anns.Add(ann); err != nil {
				return err
			}
		}
	}
	return nil
}

func (dp *DocPipeline) resolveInputs(doc *document.Document) ([][]annot.Annotation, error) {
	inputKeys := dp.pipeline.InputKeys()

	if dp.labelsByInputKey == nil {
		if len(inputKeys) > 1 {
			return nil, eris.Errorf(
				"doc pipeline: pipeline expects %d inputs, a labels-by-input-key mapping is required",
				len(inputKeys))
		}
		return [][]annot.Annotation{{doc.RawSegment()}}, nil
	}

	inputs := make([][]annot.Annotation, 0, len(inputKeys))
	for _, key := range inputKeys {
		labels, ok := dp.labelsByInputKey[key]
		if !ok {
			return nil, eris.Errorf("doc pipeline: no labels mapped to input key %q", key)
		}
		var anns []annot.Annotation
		for _, label := range labels {
			anns = append(anns, doc.Anns.Get(annot.Filter{Label: label})...)
		}
		inputs = append(inputs, anns)
	}
	return inputs, nil
}
