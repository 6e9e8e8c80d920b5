package etl

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/BartekS5/treemigrate/pkg/models"
	"github.com/google/uuid"
)

const (
	journalTable = "migration_id_map"
	// SQL Server accepts at most 2100 parameters per statement.
	journalBatch  = 300
	rollbackBatch = 2000
)

// SQLJournal persists identity mappings and rollbacks in SQL Server so a run
// can be audited after the process exits.
type SQLJournal struct {
	DB    *sql.DB
	RunID uuid.UUID
	Org   string
}

func NewSQLJournal(db *sql.DB, runID uuid.UUID, org string) *SQLJournal {
	return &SQLJournal{DB: db, RunID: runID, Org: org}
}

// EnsureSchema creates the journal table when missing.
func (j *SQLJournal) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`IF OBJECT_ID(N'%[1]s', N'U') IS NULL
CREATE TABLE %[1]s (
	run_id UNIQUEIDENTIFIER NOT NULL,
	target_org NVARCHAR(255) NOT NULL,
	object_type NVARCHAR(255) NOT NULL,
	source_id NVARCHAR(255) NOT NULL,
	target_id NVARCHAR(255) NOT NULL,
	rolled_back BIT NOT NULL DEFAULT 0,
	created_at DATETIME2 NOT NULL
)`, journalTable)
	if _, err := j.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create journal table: %w", err)
	}
	return nil
}

func (j *SQLJournal) RecordMappings(ctx context.Context, mappings []models.Mapping) error {
	now := time.Now().UTC()
	for start := 0; start < len(mappings); start += journalBatch {
		end := min(start+journalBatch, len(mappings))
		query, args := insertMappingsQuery(j.RunID, j.Org, mappings[start:end], now)
		if _, err := j.DB.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("journal %d mappings: %w", end-start, err)
		}
	}
	return nil
}

func (j *SQLJournal) RecordRollback(ctx context.Context, objectType string, ids []string) error {
	for start := 0; start < len(ids); start += rollbackBatch {
		end := min(start+rollbackBatch, len(ids))
		query, args := rollbackQuery(j.RunID, objectType, ids[start:end])
		if _, err := j.DB.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("journal rollback of %s: %w", objectType, err)
		}
	}
	return nil
}

func insertMappingsQuery(runID uuid.UUID, org string, mappings []models.Mapping, at time.Time) (string, []interface{}) {
	var placeholders []string
	var args []interface{}
	for _, m := range mappings {
		n := len(args)
		placeholders = append(placeholders, fmt.Sprintf("(@p%d, @p%d, @p%d, @p%d, @p%d, @p%d)", n+1, n+2, n+3, n+4, n+5, n+6))
		args = append(args, runID.String(), org, m.ObjectType, m.SourceID, m.TargetID, at)
	}
	query := fmt.Sprintf("INSERT INTO %s (run_id, target_org, object_type, source_id, target_id, created_at) VALUES %s",
		journalTable, strings.Join(placeholders, ", "))
	return query, args
}

func rollbackQuery(runID uuid.UUID, objectType string, ids []string) (string, []interface{}) {
	args := []interface{}{runID.String(), objectType}
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		args = append(args, id)
		placeholders[i] = fmt.Sprintf("@p%d", i+3)
	}
	query := fmt.Sprintf("UPDATE %s SET rolled_back = 1 WHERE run_id = @p1 AND object_type = @p2 AND target_id IN (%s)",
		journalTable, strings.Join(placeholders, ", "))
	return query, args
}
