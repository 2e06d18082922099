package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/noah-isme/gradebook/internal/models"
)

// ErrSnapshotNotFound is returned by Load when nothing has been saved yet.
var ErrSnapshotNotFound = errors.New("gradebook snapshot not found")

// decodeSnapshot parses a persisted document. Fields missing from the
// document keep their default values.
func decodeSnapshot(data []byte) (*models.Database, error) {
	db := models.DefaultDatabase()
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("decode gradebook snapshot: %w", err)
	}
	db.EnsureCollections()
	return &db, nil
}

func encodeSnapshot(db models.Database, indent bool) ([]byte, error) {
	db.EnsureCollections()
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(db, "", "  ")
	} else {
		data, err = json.Marshal(db)
	}
	if err != nil {
		return nil, fmt.Errorf("encode gradebook snapshot: %w", err)
	}
	return data, nil
}
