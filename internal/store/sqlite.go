package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/textweave/textweave/internal/document"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	metadata   TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS annotations (
	id       TEXT NOT NULL,
	doc_id   TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	kind     TEXT NOT NULL,
	label    TEXT NOT NULL,
	body     TEXT NOT NULL,
	PRIMARY KEY (doc_id, id)
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	pipeline    TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	doc_count   INTEGER NOT NULL DEFAULT 0,
	ann_count   INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_annotations_doc_id ON annotations(doc_id);
CREATE INDEX IF NOT EXISTS idx_annotations_label ON annotations(label);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON runs(pipeline);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *document.Document) error {
	metadataJSON, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, text, metadata, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET text = excluded.text, metadata = excluded.metadata`,
		doc.UID, doc.Text, metadataJSON, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert document %s", doc.UID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations WHERE doc_id = ?`, doc.UID); err != nil {
		return eris.Wrapf(err, "sqlite: clear annotations of %s", doc.UID)
	}

	for i, ann := range storedAnns(doc) {
		body, err := json.Marshal(ann)
		if err != nil {
			return eris.Wrapf(err, "sqlite: encode annotation %s", ann.Common().UID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO annotations (id, doc_id, position, kind, label, body) VALUES (?, ?, ?, ?, ?, ?)`,
			ann.Common().UID, doc.UID, i, annKind(ann), ann.Common().Label, string(body),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert annotation %s", ann.Common().UID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save")
}

// ImportDocuments saves a batch one document at a time; SQLite gains
// nothing from a separate bulk path.
func (s *SQLiteStore) ImportDocuments(ctx context.Context, docs []*document.Document) error {
	for _, doc := range docs {
		if err := s.SaveDocument(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, uid string) (*document.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT text, metadata FROM documents WHERE id = ?`, uid)

	var text string
	var metadataJSON sql.NullString
	err := row.Scan(&text, &metadataJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "document %s", uid)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get document %s", uid)
	}

	doc, err := rebuildDocument(uid, text, metadataJSON.String)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM annotations WHERE doc_id = ? ORDER BY position`, uid)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load annotations of %s", uid)
	}
	defer rows.Close()

	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan annotation")
		}
		if err := attachAnnotation(doc, body); err != nil {
			return nil, err
		}
	}
	return doc, eris.Wrap(rows.Err(), "sqlite: iterate annotations")
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, limit, offset int) ([]DocInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.text, d.created_at,
		        (SELECT count(*) FROM annotations a WHERE a.doc_id = d.id)
		 FROM documents d ORDER BY d.created_at DESC, d.id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var infos []DocInfo
	for rows.Next() {
		var info DocInfo
		var text string
		if err := rows.Scan(&info.UID, &text, &info.CreatedAt, &info.AnnCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document row")
		}
		info.Preview = preview(text)
		infos = append(infos, info)
	}
	return infos, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, uid string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, uid)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete document %s", uid)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "document %s", uid)
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, pipelineName string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, pipeline, status, started_at) VALUES (?, ?, ?, ?)`,
		id, pipelineName, string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &Run{ID: id, Pipeline: pipelineName, Status: RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, docCount, annCount int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, doc_count = ?, ann_count = ?, finished_at = ? WHERE id = ?`,
		string(RunStatusComplete), docCount, annCount, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(RunStatusFailed), cause.Error(), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, pipeline, status, doc_count, ann_count, error, started_at, finished_at
		 FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, pipeline, status, doc_count, ann_count, error, started_at, finished_at
	          FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Pipeline != "" {
		query += ` AND pipeline = ?`
		args = append(args, filter.Pipeline)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var errMsg sql.NullString
	var finished sql.NullTime

	err := row.Scan(&r.ID, &r.Pipeline, &r.Status, &r.DocCount, &r.AnnCount, &errMsg, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
