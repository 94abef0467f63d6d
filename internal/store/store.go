// Package store persists documents, their annotations and pipeline run
// records. Two implementations exist: SQLite for local single-user use
// and PostgreSQL for shared deployments.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/textweave/textweave/internal/annot"
	"github.com/textweave/textweave/internal/document"
)

// ErrNotFound reports a lookup for a document or run the store does not
// hold.
var ErrNotFound = eris.New("store: not found")

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one execution of a pipeline over a batch of documents.
type Run struct {
	ID         string
	Pipeline   string
	Status     RunStatus
	DocCount   int
	AnnCount   int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status   RunStatus
	Pipeline string
	Limit    int
	Offset   int
}

// DocInfo is the listing view of a stored document.
type DocInfo struct {
	UID       string
	Preview   string
	AnnCount  int
	CreatedAt time.Time
}

// Store is the persistence interface of the annotation engine.
type Store interface {
	// Documents. Saving is an upsert: a document's annotations are
	// replaced wholesale, never merged.
	SaveDocument(ctx context.Context, doc *document.Document) error
	ImportDocuments(ctx context.Context, docs []*document.Document) error
	GetDocument(ctx context.Context, uid string) (*document.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]DocInfo, error)
	DeleteDocument(ctx context.Context, uid string) error

	// Runs
	CreateRun(ctx context.Context, pipelineName string) (*Run, error)
	CompleteRun(ctx context.Context, runID string, docCount, annCount int) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// annKind returns the serialized kind tag of an annotation, used as a
// filterable column next to the JSON body.
func annKind(ann annot.Annotation) string {
	switch ann.(type) {
	case *annot.Entity:
		return annot.KindEntity
	case *annot.Relation:
		return annot.KindRelation
	default:
		return annot.KindSegment
	}
}

// storedAnns returns a document's annotations in container order,
// without the raw segment. The raw segment is reconstructed from the
// document text on load, storing it would duplicate the full text.
func storedAnns(doc *document.Document) []annot.Annotation {
	raw := doc.RawSegment()
	all := doc.Anns.All()
	out := make([]annot.Annotation, 0, len(all))
	for _, ann := range all {
		if raw != nil && ann.Common().UID == raw.UID {
			continue
		}
		out = append(out, ann)
	}
	return out
}

// preview returns the head of a document text for listings.
func preview(text string) string {
	const max = 80
	if len(text) <= max {
		return text
	}
	return text[:max]
}

// encodeMetadata serializes document metadata for storage, nil when
// there is none.
func encodeMetadata(metadata map[string]any) (any, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode metadata")
	}
	return string(data), nil
}

// rebuildDocument reconstructs a document from its stored columns. The
// raw segment is re-seeded by the document constructor.
func rebuildDocument(uid, text, metadataJSON string) (*document.Document, error) {
	opts := []document.Option{document.WithUID(uid)}
	if metadataJSON != "" {
		var metadata map[string]any
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			return nil, eris.Wrapf(err, "store: decode metadata of %s", uid)
		}
		opts = append(opts, document.WithMetadata(metadata))
	}
	return document.New(text, opts...), nil
}

// attachAnnotation decodes a stored annotation body and adds it to the
// document.
func attachAnnotation(doc *document.Document, body string) error {
	ann, err := annot.DecodeAnnotation([]byte(body))
	if err != nil {
		return err
	}
	return doc.Anns.Add(ann)
}
