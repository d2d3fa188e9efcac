// Package store keeps a ledger of batch and sweep runs.
//
// Each run is one [Record]: a UUID, the run kind, outcome counts and the
// run's full report as JSON. Two backends implement [Store]:
//
//   - [FileStore] writes one JSON file per run under a directory (the
//     default, placed in the run's output directory).
//   - [MongoStore] writes documents to a MongoDB collection, for sharing a
//     ledger across machines.
//
// [Open] picks the backend from a URI.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/grainscale/pkg/errors"
)

// Run kinds.
const (
	KindBatch = "batch"
	KindSweep = "sweep"
)

// Counts are the outcome totals every run reports.
type Counts struct {
	Succeeded int `json:"succeeded" bson:"succeeded"`
	Skipped   int `json:"skipped" bson:"skipped"`
	Failed    int `json:"failed" bson:"failed"`
}

// Record is one ledger entry.
type Record struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	Counts    Counts          `json:"counts"`
	Detail    json.RawMessage `json:"detail,omitempty"`
}

// NewRecord builds a record for a run, encoding detail as JSON. An empty id
// gets a fresh UUID.
func NewRecord(id, kind string, counts Counts, detail any) (*Record, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "run id %q", id)
	}
	var raw json.RawMessage
	if detail != nil {
		data, err := json.Marshal(detail)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode run detail")
		}
		raw = data
	}
	return &Record{
		ID:        id,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
		Counts:    counts,
		Detail:    raw,
	}, nil
}

// Store persists run records.
type Store interface {
	// Save inserts or replaces rec.
	Save(ctx context.Context, rec *Record) error

	// Get returns the record with id, or a FILE_NOT_FOUND error.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns up to limit records of kind (all kinds when empty),
	// newest first. A limit of 0 means no limit.
	List(ctx context.Context, kind string, limit int) ([]*Record, error)

	Close() error
}

// Open returns a MongoStore for mongodb:// and mongodb+srv:// URIs and a
// FileStore rooted at dir otherwise.
func Open(ctx context.Context, uri, dir string) (Store, error) {
	if strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://") {
		return NewMongoStore(ctx, uri, DefaultDatabase)
	}
	return NewFileStore(dir)
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeFileNotFound, "run %s not found", id)
}
