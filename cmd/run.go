package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/textweave/textweave/internal/document"
	"github.com/textweave/textweave/internal/ioconv"
	"github.com/textweave/textweave/internal/pipeline"
	"github.com/textweave/textweave/internal/provenance"
	"github.com/textweave/textweave/internal/registry"
	"github.com/textweave/textweave/internal/store"
)

var (
	runPipelineFile string
	runInputFile    string
	runTextFile     string
	runWorkers      int
	runOutFile      string
	runSave         bool
	runProvenance   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline over documents",
	Long:  "Loads a YAML pipeline definition, runs it over the input documents, and optionally persists the annotated documents to the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pipelinePath := runPipelineFile
		if pipelinePath == "" {
			pipelinePath = cfg.Run.PipelineFile
		}
		if pipelinePath == "" {
			return eris.New("a pipeline definition is required (--pipeline or run.pipeline_file)")
		}

		data, err := os.ReadFile(pipelinePath)
		if err != nil {
			return eris.Wrapf(err, "read pipeline definition %s", pipelinePath)
		}
		def, err := registry.ParsePipelineDef(data)
		if err != nil {
			return err
		}

		docs, err := loadRunDocuments()
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			zap.L().Info("no documents to process")
			return nil
		}

		workers := runWorkers
		if workers <= 0 {
			workers = cfg.Run.Workers
		}
		if workers > len(docs) {
			workers = len(docs)
		}

		zap.L().Info("running pipeline",
			zap.String("pipeline", def.Name),
			zap.Int("documents", len(docs)),
			zap.Int("workers", workers),
		)

		var st store.Store
		var run *store.Run
		if runSave {
			if st, err = initStore(ctx); err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			if run, err = st.CreateRun(ctx, def.Name); err != nil {
				return err
			}
		}

		tracers, runErr := runPipeline(def, docs, workers)

		if runSave {
			if runErr != nil {
				if fErr := st.FailRun(ctx, run.ID, runErr); fErr != nil {
					zap.L().Warn("record run failure", zap.Error(fErr))
				}
				return eris.Wrap(runErr, "pipeline run")
			}
			if err := st.ImportDocuments(ctx, docs); err != nil {
				if fErr := st.FailRun(ctx, run.ID, err); fErr != nil {
					zap.L().Warn("record run failure", zap.Error(fErr))
				}
				return eris.Wrap(err, "persist documents")
			}
			if err := st.CompleteRun(ctx, run.ID, len(docs), countAnnotations(docs)); err != nil {
				return err
			}
			zap.L().Info("run recorded", zap.String("run", run.ID))
		} else if runErr != nil {
			return eris.Wrap(runErr, "pipeline run")
		}

		if runOutFile != "" {
			if err := ioconv.WriteFile(runOutFile, docs); err != nil {
				return err
			}
			zap.L().Info("documents written", zap.String("path", runOutFile))
		}

		if runProvenance || cfg.Run.Provenance {
			if err := dumpProvenance(os.Stdout, tracers); err != nil {
				return err
			}
		}

		zap.L().Info("pipeline complete",
			zap.String("pipeline", def.Name),
			zap.Int("documents", len(docs)),
			zap.Int("annotations", countAnnotations(docs)),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runPipelineFile, "pipeline", "", "path to the YAML pipeline definition")
	runCmd.Flags().StringVar(&runInputFile, "input", "", "JSONL file of documents to annotate")
	runCmd.Flags().StringVar(&runTextFile, "text", "", "plain text file, one document per line")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "number of parallel workers (default from config)")
	runCmd.Flags().StringVar(&runOutFile, "out", "", "write annotated documents to this JSONL file")
	runCmd.Flags().BoolVar(&runSave, "save", true, "persist annotated documents and the run record to the store")
	runCmd.Flags().BoolVar(&runProvenance, "provenance", false, "dump the provenance graph as JSON to stdout")
	rootCmd.AddCommand(runCmd)
}

// loadRunDocuments reads the input documents from exactly one of the
// two input flags.
func loadRunDocuments() ([]*document.Document, error) {
	switch {
	case runInputFile != "" && runTextFile != "":
		return nil, eris.New("--input and --text are mutually exclusive")
	case runInputFile != "":
		return ioconv.ReadFile(runInputFile)
	case runTextFile != "":
		f, err := os.Open(runTextFile)
		if err != nil {
			return nil, eris.Wrapf(err, "open %s", runTextFile)
		}
		defer f.Close() //nolint:errcheck
		return ioconv.ReadTexts(f)
	default:
		return nil, eris.New("an input is required (--input or --text)")
	}
}

// runPipeline fans the documents out over worker goroutines. Each
// worker builds its own pipeline instance from the definition, so no
// operation state is shared across goroutines. Always returns the
// tracers of the workers that ran, even on error.
func runPipeline(def *registry.PipelineDef, docs []*document.Document, workers int) ([]*provenance.Tracer, error) {
	chunks := chunkDocuments(docs, workers)
	tracers := make([]*provenance.Tracer, len(chunks))

	g := new(errgroup.Group)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			p, err := registry.NewDefault().BuildPipeline(def)
			if err != nil {
				return err
			}
			dp := pipeline.NewDocPipeline(p)
			tracer := provenance.New()
			dp.SetProvTracer(tracer)
			tracers[i] = tracer
			return dp.Run(chunk)
		})
	}
	err := g.Wait()
	return tracers, err
}

// chunkDocuments splits docs into at most n contiguous chunks of near
// equal size.
func chunkDocuments(docs []*document.Document, n int) [][]*document.Document {
	if len(docs) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if n > len(docs) {
		n = len(docs)
	}
	chunks := make([][]*document.Document, 0, n)
	size := (len(docs) + n - 1) / n
	for start := 0; start < len(docs); start += size {
		end := start + size
		if end > len(docs) {
			end = len(docs)
		}
		chunks = append(chunks, docs[start:end])
	}
	return chunks
}

// countAnnotations counts the annotations across docs, raw segments
// excluded.
func countAnnotations(docs []*document.Document) int {
	var n int
	for _, doc := range docs {
		for _, ann := range doc.Anns.All() {
			if ann.Common().UID == doc.RawSegment().UID {
				continue
			}
			n++
		}
	}
	return n
}

// provRecord is the JSON shape of one provenance entry in the dump.
type provRecord struct {
	Item    string   `json:"item"`
	Op      string   `json:"op,omitempty"`
	Sources []string `json:"sources,omitempty"`
	Derived []string `json:"derived,omitempty"`
}

// dumpProvenance writes every lineage record of every tracer as a JSON
// array.
func dumpProvenance(w io.Writer, tracers []*provenance.Tracer) error {
	var records []provRecord
	for _, tracer := range tracers {
		if tracer == nil {
			continue
		}
		for _, p := range tracer.AllProvs() {
			rec := provRecord{
				Item:    p.ItemID,
				Sources: p.SourceIDs,
				Derived: p.DerivedIDs,
			}
			if p.OpDesc != nil {
				rec.Op = p.OpDesc.Name
			}
			records = append(records, rec)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
