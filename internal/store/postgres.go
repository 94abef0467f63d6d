package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/textweave/textweave/internal/db"
	"github.com/textweave/textweave/internal/document"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool, typically a mock in
// tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	metadata   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS annotations (
	id       TEXT NOT NULL,
	doc_id   TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	kind     TEXT NOT NULL,
	label    TEXT NOT NULL,
	body     JSONB NOT NULL,
	PRIMARY KEY (doc_id, id)
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	pipeline    TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	doc_count   INTEGER NOT NULL DEFAULT 0,
	ann_count   INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_annotations_doc_id ON annotations(doc_id);
CREATE INDEX IF NOT EXISTS idx_annotations_label ON annotations(label);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON runs(pipeline);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveDocument(ctx context.Context, doc *document.Document) error {
	metadataJSON, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO documents (id, text, metadata) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, metadata = EXCLUDED.metadata`,
		doc.UID, doc.Text, metadataJSON,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert document %s", doc.UID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM annotations WHERE doc_id = $1`, doc.UID); err != nil {
		return eris.Wrapf(err, "postgres: clear annotations of %s", doc.UID)
	}

	rows, err := annotationRows(doc)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"annotations"}, annotationColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return eris.Wrapf(err, "postgres: copy annotations of %s", doc.UID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit save")
}

// ImportDocuments bulk-loads a batch: documents are upserted through a
// temp table, annotations go in via COPY.
func (s *PostgresStore) ImportDocuments(ctx context.Context, docs []*document.Document) error {
	if len(docs) == 0 {
		return nil
	}

	docRows := make([][]any, 0, len(docs))
	var annRows [][]any
	for _, doc := range docs {
		metadataJSON, err := encodeMetadata(doc.Metadata)
		if err != nil {
			return err
		}
		docRows = append(docRows, []any{doc.UID, doc.Text, metadataJSON})

		rows, err := annotationRows(doc)
		if err != nil {
			return err
		}
		annRows = append(annRows, rows...)
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "documents",
		Columns:      []string{"id", "text", "metadata"},
		ConflictKeys: []string{"id"},
	}, docRows)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if _, err := s.pool.Exec(ctx, `DELETE FROM annotations WHERE doc_id = $1`, doc.UID); err != nil {
			return eris.Wrapf(err, "postgres: clear annotations of %s", doc.UID)
		}
	}
	_, err = db.CopyFrom(ctx, s.pool, "annotations", annotationColumns, annRows)
	return err
}

var annotationColumns = []string{"id", "doc_id", "position", "kind", "label", "body"}

func annotationRows(doc *document.Document) ([][]any, error) {
	anns := storedAnns(doc)
	rows := make([][]any, 0, len(anns))
	for i, ann := range anns {
		body, err := json.Marshal(ann)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: encode annotation %s", ann.Common().UID)
		}
		rows = append(rows, []any{ann.Common().UID, doc.UID, i, annKind(ann), ann.Common().Label, string(body)})
	}
	return rows, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, uid string) (*document.Document, error) {
	var text string
	var metadataJSON *string
	err := s.pool.QueryRow(ctx,
		`SELECT text, metadata::text FROM documents WHERE id = $1`, uid).Scan(&text, &metadataJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "document %s", uid)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get document %s", uid)
	}

	var metadata string
	if metadataJSON != nil {
		metadata = *metadataJSON
	}
	doc, err := rebuildDocument(uid, text, metadata)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT body::text FROM annotations WHERE doc_id = $1 ORDER BY position`, uid)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load annotations of %s", uid)
	}
	defer rows.Close()

	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "postgres: scan annotation")
		}
		if err := attachAnnotation(doc, body); err != nil {
			return nil, err
		}
	}
	return doc, eris.Wrap(rows.Err(), "postgres: iterate annotations")
}

func (s *PostgresStore) ListDocuments(ctx context.Context, limit, offset int) ([]DocInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT d.id, d.text, d.created_at,
		        (SELECT count(*) FROM annotations a WHERE a.doc_id = d.id)
		 FROM documents d ORDER BY d.created_at DESC, d.id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var infos []DocInfo
	for rows.Next() {
		var info DocInfo
		var text string
		if err := rows.Scan(&info.UID, &text, &info.CreatedAt, &info.AnnCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document row")
		}
		info.Preview = preview(text)
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, uid string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, uid)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete document %s", uid)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "document %s", uid)
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, pipelineName string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, pipeline, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, pipelineName, string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &Run{ID: id, Pipeline: pipelineName, Status: RunStatusRunning, StartedAt: now}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, docCount, annCount int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, doc_count = $2, ann_count = $3, finished_at = $4 WHERE id = $5`,
		string(RunStatusComplete), docCount, annCount, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause error) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(RunStatusFailed), cause.Error(), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var r Run
	var status string
	var errMsg *string
	var finished *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT id, pipeline, status, doc_count, ann_count, error, started_at, finished_at
		 FROM runs WHERE id = $1`, runID).
		Scan(&r.ID, &r.Pipeline, &status, &r.DocCount, &r.AnnCount, &errMsg, &r.StartedAt, &finished)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	r.Status = RunStatus(status)
	if errMsg != nil {
		r.Error = *errMsg
	}
	r.FinishedAt = finished
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, pipeline, status, doc_count, ann_count, error, started_at, finished_at
	          FROM runs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.Pipeline != "" {
		query += ` AND pipeline = ` + arg(filter.Pipeline)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var errMsg *string
		var finished *time.Time
		if err := rows.Scan(&r.ID, &r.Pipeline, &status, &r.DocCount, &r.AnnCount, &errMsg, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = RunStatus(status)
		if errMsg != nil {
			r.Error = *errMsg
		}
		r.FinishedAt = finished
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
