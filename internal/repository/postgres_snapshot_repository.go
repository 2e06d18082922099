package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradebook/internal/models"
)

const createSnapshotTable = `CREATE TABLE IF NOT EXISTS gradebook_snapshots (
    id TEXT PRIMARY KEY,
    payload JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`

type snapshotRow struct {
	ID        string    `db:"id"`
	Payload   string    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PostgresSnapshotRepository stores the gradebook document as one JSONB row.
type PostgresSnapshotRepository struct {
	db *sqlx.DB
	id string
}

// NewPostgresSnapshotRepository constructs the repository for the row keyed by id.
func NewPostgresSnapshotRepository(db *sqlx.DB, id string) *PostgresSnapshotRepository {
	if id == "" {
		id = "gradebook"
	}
	return &PostgresSnapshotRepository{db: db, id: id}
}

// EnsureSchema creates the snapshot table when missing.
func (r *PostgresSnapshotRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSnapshotTable); err != nil {
		return fmt.Errorf("create gradebook_snapshots: %w", err)
	}
	return nil
}

// Load reads the stored document.
func (r *PostgresSnapshotRepository) Load(ctx context.Context) (*models.Database, error) {
	const query = `SELECT id, payload, updated_at FROM gradebook_snapshots WHERE id = $1`
	var row snapshotRow
	if err := r.db.GetContext(ctx, &row, query, r.id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("load gradebook snapshot: %w", err)
	}
	return decodeSnapshot([]byte(row.Payload))
}

// Save upserts the document row.
func (r *PostgresSnapshotRepository) Save(ctx context.Context, db models.Database) error {
	const query = `INSERT INTO gradebook_snapshots (id, payload, updated_at)
VALUES (:id, :payload, :updated_at)
ON CONFLICT (id)
DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	payload, err := encodeSnapshot(db, false)
	if err != nil {
		return err
	}
	row := snapshotRow{ID: r.id, Payload: string(payload), UpdatedAt: time.Now().UTC()}
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("save gradebook snapshot: %w", err)
	}
	return nil
}
