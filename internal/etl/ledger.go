package etl

import (
	"context"
	"errors"
	"fmt"

	"github.com/BartekS5/treemigrate/pkg/database"
	"github.com/BartekS5/treemigrate/pkg/logger"
	"github.com/BartekS5/treemigrate/pkg/models"
)

// LedgerEntry is the set of target ids created by one write call.
type LedgerEntry struct {
	ObjectType string
	IDs        []string
}

// Ledger remembers what this run created so a failed run can undo it.
type Ledger struct {
	entries []LedgerEntry
}

// Push appends the ids created by one write call.
func (l *Ledger) Push(objectType string, ids []string) {
	if len(ids) == 0 {
		return
	}
	l.entries = append(l.entries, LedgerEntry{ObjectType: objectType, IDs: append([]string(nil), ids...)})
}

func (l *Ledger) Entries() []LedgerEntry {
	return append([]LedgerEntry(nil), l.entries...)
}

func (l *Ledger) Len() int { return len(l.entries) }

// Rollback deletes every recorded id, newest write first, then clears the
// ledger. Row-level delete failures are logged and do not stop the rollback;
// transport failures are collected and returned together.
func (l *Ledger) Rollback(ctx context.Context, db database.Database, journal Journal) error {
	if len(l.entries) == 0 {
		return nil
	}
	logger.Warn("↩️  Rolling back %d write batches...", len(l.entries))
	var errs []error
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		results, err := db.Delete(ctx, e.ObjectType, e.IDs)
		if err != nil {
			logger.Error("rollback of %s failed: %v", e.ObjectType, err)
			errs = append(errs, fmt.Errorf("delete %s: %w", e.ObjectType, err))
			continue
		}
		displayResults("delete", e.ObjectType, models.Summarize(results))
		if journal != nil {
			if err := journal.RecordRollback(ctx, e.ObjectType, e.IDs); err != nil {
				logger.Warn("journal rollback of %s: %v", e.ObjectType, err)
			}
		}
	}
	l.entries = nil
	return errors.Join(errs...)
}
