package state

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/core"
)

func TestSQLiteStore_CreateIngestRun_ExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO ingest_runs").WillReturnError(assert.AnError)

	store := NewStoreWithDB(db)
	_, err = store.CreateIngestRun("/data/landing")
	assert.ErrorContains(t, err, "failed to create ingest run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_CompleteIngestRun_NoRowsAffected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE ingest_runs").WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewStoreWithDB(db)
	err = store.CompleteIngestRun("missing-id", core.IngestRunStatusCompleted, core.IngestCounts{}, "")
	assert.ErrorContains(t, err, "ingest run not found: missing-id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ListIngestRuns_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT id, landing_dir").WillReturnError(assert.AnError)

	store := NewStoreWithDB(db)
	_, err = store.ListIngestRuns(10)
	assert.ErrorContains(t, err, "failed to list ingest runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_RecordIngestFile_ExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO ingest_files").WillReturnError(assert.AnError)

	store := NewStoreWithDB(db)
	err = store.RecordIngestFile(&core.IngestFile{RunID: "run-1", Name: "orders.csv"})
	assert.ErrorContains(t, err, "failed to record ingest file")
	assert.NoError(t, mock.ExpectationsWereMet())
}
