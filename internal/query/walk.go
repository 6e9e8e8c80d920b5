package query

import (
	"context"
	"fmt"

	"github.com/BartekS5/treemigrate/pkg/database"
	"github.com/BartekS5/treemigrate/pkg/logger"
	"github.com/BartekS5/treemigrate/pkg/models"
)

// VisitFunc receives the source records of one tree node, after scope.RecordIDs
// has been set from them.
type VisitFunc func(ctx context.Context, scope *models.Scope, records []*models.Record) error

// Walk reads the tree rooted at root from db, depth first and pre-order. A
// node without ids to filter on, or without source rows, ends its branch.
func Walk(ctx context.Context, db database.Querier, b *Builder, root *models.TreeConfig, visit VisitFunc) error {
	return walk(ctx, db, b, models.RootScope(root), visit)
}

func walk(ctx context.Context, db database.Querier, b *Builder, scope *models.Scope, visit VisitFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q, err := b.ForScope(ctx, scope)
	if err != nil {
		return fmt.Errorf("build query for %s: %w", scope.Config.APIName, err)
	}
	if q == "" {
		logger.Debug("no ids to filter %s on, skipping branch", scope.Config.APIName)
		return nil
	}
	logger.Debug("query: %s", q)
	records, err := db.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("query %s: %w", scope.Config.APIName, err)
	}
	scope.RecordIDs = models.IDs(records)

	if err := visit(ctx, scope, records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	for _, child := range scope.Config.Children {
		if err := walk(ctx, db, b, scope.Child(child, scope.RecordIDs), visit); err != nil {
			return err
		}
	}
	return nil
}
