package etl

import (
	"context"

	"github.com/BartekS5/treemigrate/pkg/models"
)

// Sink receives every source read, per object type.
type Sink interface {
	Dump(ctx context.Context, objectType string, records []*models.Record) error
}

// Journal records the identities established by a run and what rollback removed.
type Journal interface {
	RecordMappings(ctx context.Context, mappings []models.Mapping) error
	RecordRollback(ctx context.Context, objectType string, ids []string) error
}
