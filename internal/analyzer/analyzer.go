// Package analyzer discovers the object types a tree references but does not
// own, and turns them into flat dependency configs.
package analyzer

import (
	"context"
	"fmt"

	"github.com/BartekS5/treemigrate/internal/query"
	"github.com/BartekS5/treemigrate/internal/schema"
	"github.com/BartekS5/treemigrate/pkg/database"
	"github.com/BartekS5/treemigrate/pkg/logger"
	"github.com/BartekS5/treemigrate/pkg/models"
)

// Options tune what counts as a dependency.
type Options struct {
	// Skip lists object types never treated as dependencies.
	Skip []string
	// KeyMapped reports types matched by business key instead of migrated.
	KeyMapped func(objectType string) bool
}

// Analyzer only reads from the source org.
type Analyzer struct {
	source  database.Querier
	schema  *schema.Cache
	builder *query.Builder
	skip    map[string]bool
	keyed   func(string) bool
}

func New(source database.Querier, cache *schema.Cache, opts Options) *Analyzer {
	skip := make(map[string]bool, len(opts.Skip))
	for _, t := range opts.Skip {
		skip[t] = true
	}
	keyed := opts.KeyMapped
	if keyed == nil {
		keyed = func(string) bool { return false }
	}
	return &Analyzer{
		source:  source,
		schema:  cache,
		builder: query.NewBuilder(cache),
		skip:    skip,
		keyed:   keyed,
	}
}

// Result is the outcome of one analysis.
type Result struct {
	Dependencies *DependencyMap
	Configs      []*models.TreeConfig
	// TreeIDs holds every source id read while walking the tree.
	TreeIDs map[string]bool
}

type level struct {
	config  *models.TreeConfig
	records []*models.Record
}

// Analyze walks root on the source org and reports its external references.
func (a *Analyzer) Analyze(ctx context.Context, root *models.TreeConfig) (*Result, error) {
	logger.Info("📥 Analyzing references for %s tree...", root.APIName)

	var levels []level
	treeIDs := make(map[string]bool)
	err := query.Walk(ctx, a.source, a.builder, root, func(_ context.Context, scope *models.Scope, records []*models.Record) error {
		levels = append(levels, level{config: scope.Config, records: records})
		for _, id := range scope.RecordIDs {
			treeIDs[id] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s tree: %w", root.APIName, err)
	}

	deps := NewDependencyMap()
	for _, lv := range levels {
		if err := a.scan(ctx, lv, treeIDs, deps); err != nil {
			return nil, err
		}
	}

	configs, err := a.fold(ctx, deps)
	if err != nil {
		return nil, err
	}
	logger.Info("\t✅ Found %d dependency types", len(configs))
	return &Result{Dependencies: deps, Configs: configs, TreeIDs: treeIDs}, nil
}

func (a *Analyzer) scan(ctx context.Context, lv level, treeIDs map[string]bool, deps *DependencyMap) error {
	fields, err := a.schema.Filter(ctx, lv.config.APIName, func(f models.Field) bool {
		return f.IsReference() && f.Createable && f.Updateable && !lv.config.IsExcluded(f.Name)
	})
	if err != nil {
		return err
	}
	for _, rec := range lv.records {
		for _, f := range fields {
			id, ok := rec.GetString(f.Name)
			if !ok || treeIDs[id] {
				continue
			}
			target, err := a.referencedType(ctx, f, id)
			if err != nil {
				return err
			}
			if target == "" || a.skip[target] || a.keyed(target) {
				continue
			}
			deps.Add(lv.config.APIName, f.Name, target, id)
		}
	}
	return nil
}

func (a *Analyzer) referencedType(ctx context.Context, f models.Field, id string) (string, error) {
	switch len(f.ReferenceTo) {
	case 0:
		return "", nil
	case 1:
		return f.ReferenceTo[0], nil
	default:
		return a.schema.ResolveTypeOfID(ctx, id)
	}
}

// fold builds one flat config per referenced type.
func (a *Analyzer) fold(ctx context.Context, deps *DependencyMap) ([]*models.TreeConfig, error) {
	var out []*models.TreeConfig
	for _, t := range deps.Types() {
		s, err := a.schema.Describe(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, &models.TreeConfig{
			APIName:         t,
			RecordIDs:       deps.IDs(t),
			ExternalIDField: s.ExternalIDFields(),
		})
	}
	return out, nil
}

// Merge combines declared dependency configs with discovered ones. Declared
// configs keep their settings and absorb the discovered ids of their type;
// discovered types nobody declared are appended.
func Merge(declared, discovered []*models.TreeConfig) []*models.TreeConfig {
	byType := make(map[string]*models.TreeConfig, len(discovered))
	for _, d := range discovered {
		byType[d.APIName] = d
	}
	used := make(map[string]bool)
	out := make([]*models.TreeConfig, 0, len(declared)+len(discovered))
	for _, d := range declared {
		c := *d
		c.RecordIDs = append([]string(nil), d.RecordIDs...)
		if found, ok := byType[d.APIName]; ok {
			c.RecordIDs = union(c.RecordIDs, found.RecordIDs)
			used[d.APIName] = true
		}
		out = append(out, &c)
	}
	for _, d := range discovered {
		if !used[d.APIName] {
			out = append(out, d)
		}
	}
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			a = append(a, v)
		}
	}
	return a
}
