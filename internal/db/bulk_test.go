package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.Background(), nil, "annotations", []string{"id", "body"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"annotations"}, []string{"id", "body"}).WillReturnResult(3)

	rows := [][]any{{"a", "{}"}, {"b", "{}"}, {"c", "{}"}}
	n, err := CopyFrom(context.Background(), mock, "annotations", []string{"id", "body"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"annotations"}, []string{"id"}).
		WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "annotations", []string{"id"}, [][]any{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO annotations")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "documents",
		Columns:      []string{"id", "text"},
		ConflictKeys: []string{"id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_ValidatesConfig(t *testing.T) {
	rows := [][]any{{"a"}}
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{Table: "documents"}, rows)
	assert.Error(t, err)

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "documents",
		Columns: []string{"id"},
	}, rows)
	assert.Error(t, err)
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "doc_id", "body"`, quoteAndJoin([]string{"id", "doc_id", "body"}))
}
