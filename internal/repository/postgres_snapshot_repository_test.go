package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshotMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestPostgresSnapshotRepositoryEnsureSchema(t *testing.T) {
	db, mock, cleanup := newSnapshotMock(t)
	defer cleanup()
	repo := NewPostgresSnapshotRepository(db, "")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS gradebook_snapshots").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotRepositoryLoad(t *testing.T) {
	db, mock, cleanup := newSnapshotMock(t)
	defer cleanup()
	repo := NewPostgresSnapshotRepository(db, "main")

	payload, err := encodeSnapshot(sampleDatabase(), false)
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{"id", "payload", "updated_at"}).AddRow("main", string(payload), time.Now())
	mock.ExpectQuery("SELECT id, payload, updated_at FROM gradebook_snapshots").
		WithArgs("main").
		WillReturnRows(rows)

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleDatabase(), *loaded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotRepositoryLoadMissing(t *testing.T) {
	db, mock, cleanup := newSnapshotMock(t)
	defer cleanup()
	repo := NewPostgresSnapshotRepository(db, "main")

	mock.ExpectQuery("SELECT id, payload").WithArgs("main").WillReturnError(sql.ErrNoRows)

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestPostgresSnapshotRepositorySave(t *testing.T) {
	db, mock, cleanup := newSnapshotMock(t)
	defer cleanup()
	repo := NewPostgresSnapshotRepository(db, "main")

	mock.ExpectExec("INSERT INTO gradebook_snapshots").
		WithArgs("main", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Save(context.Background(), sampleDatabase()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotRepositorySaveError(t *testing.T) {
	db, mock, cleanup := newSnapshotMock(t)
	defer cleanup()
	repo := NewPostgresSnapshotRepository(db, "main")

	mock.ExpectExec("INSERT INTO gradebook_snapshots").WillReturnError(errors.New("connection reset"))

	err := repo.Save(context.Background(), sampleDatabase())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save gradebook snapshot")
}
