// Package etl orchestrates a migration run: key mapping, dependencies, the
// main tree and the final patch pass, with rollback on failure.
package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/treemigrate/internal/analyzer"
	"github.com/BartekS5/treemigrate/internal/query"
	"github.com/BartekS5/treemigrate/internal/reference"
	"github.com/BartekS5/treemigrate/internal/schema"
	"github.com/BartekS5/treemigrate/pkg/database"
	"github.com/BartekS5/treemigrate/pkg/logger"
	"github.com/BartekS5/treemigrate/pkg/models"
)

// retained keeps the source records of one written object type for the
// patch pass.
type retained struct {
	config  *models.TreeConfig
	records []*models.Record
	// pending is the number of unresolved references when last written.
	pending int
}

// Pipeline runs one migration from Source to Target.
type Pipeline struct {
	Source  database.Database
	Target  database.Database
	Config  *models.ExportConfig
	Sink    Sink
	Journal Journal

	schema   *schema.Cache
	mapper   *reference.Mapper
	builder  *query.Builder
	ledger   *Ledger
	retained []*retained
}

// NewPipeline wires fresh per-run state: schema cache, identity map and ledger.
func NewPipeline(source, target database.Database, cfg *models.ExportConfig) *Pipeline {
	cache := schema.NewCache(source)
	return &Pipeline{
		Source:  source,
		Target:  target,
		Config:  cfg,
		schema:  cache,
		mapper:  reference.NewMapper(cache, source, target),
		builder: query.NewBuilder(cache),
		ledger:  &Ledger{},
	}
}

func (p *Pipeline) Mapper() *reference.Mapper { return p.mapper }
func (p *Pipeline) Ledger() *Ledger           { return p.ledger }

// Run migrates the configured tree. On any failure everything this run
// created is deleted before the error is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := Validate(p.Config); err != nil {
		return fmt.Errorf("invalid export config: %w", err)
	}
	startTime := time.Now()
	logger.Info("Starting migration of %s tree", p.Config.TreeConfig.APIName)

	if err := p.run(ctx); err != nil {
		logger.Error("Migration failed: %v", err)
		if rbErr := p.ledger.Rollback(context.WithoutCancel(ctx), p.Target, p.Journal); rbErr != nil {
			logger.Error("Rollback incomplete: %v", rbErr)
		}
		return err
	}
	logger.Info("Migration finished in %s. %d identities mapped.", time.Since(startTime).Round(time.Millisecond), p.mapper.Len())
	return nil
}

func (p *Pipeline) run(ctx context.Context) error {
	deps, err := p.dependencies(ctx)
	if err != nil {
		return err
	}
	if err := p.mapKeys(ctx, deps); err != nil {
		return err
	}
	if err := p.migrateDependencies(ctx, deps); err != nil {
		return err
	}

	logger.Info("🔄 Migrating main tree...")
	if err := query.Walk(ctx, p.Source, p.builder, p.Config.TreeConfig, p.migrateNode); err != nil {
		return err
	}
	logger.Info("✅ Migrating main tree completed")

	return p.patch(ctx)
}

// dependencies returns the declared dependency configs merged with the
// discovered ones.
func (p *Pipeline) dependencies(ctx context.Context) ([]*models.TreeConfig, error) {
	declared := p.Config.DependencyConfig
	if !p.Config.ShouldDiscover() {
		return declared, nil
	}
	a := analyzer.New(p.Source, p.schema, analyzer.Options{
		Skip:      p.Config.SkipSobjectDependencies,
		KeyMapped: p.Config.KeyMapped,
	})
	res, err := a.Analyze(ctx, p.Config.TreeConfig)
	if err != nil {
		return nil, fmt.Errorf("analyze references: %w", err)
	}
	return analyzer.Merge(declared, res.Configs), nil
}

// mapKeys registers business-key matches before anything is written.
func (p *Pipeline) mapKeys(ctx context.Context, deps []*models.TreeConfig) error {
	types := p.Config.TreeConfig.ObjectTypes()
	seen := make(map[string]bool, len(types))
	for _, t := range types {
		seen[t] = true
	}
	for _, d := range deps {
		if !seen[d.APIName] {
			seen[d.APIName] = true
			types = append(types, d.APIName)
		}
	}

	for _, km := range p.Config.EffectiveKeyMappings() {
		logger.Info("📥 Including %s references...", km.APIName)
		mappings, err := p.mapper.AddReferenceIDMappings(ctx, km, types)
		if err != nil {
			return fmt.Errorf("map %s by %v: %w", km.APIName, km.KeyFields, err)
		}
		p.journal(ctx, mappings)
		logger.Info("\t✅ %d %s references included", len(mappings), km.APIName)
	}
	return nil
}

func (p *Pipeline) migrateDependencies(ctx context.Context, deps []*models.TreeConfig) error {
	if len(deps) == 0 {
		return nil
	}
	logger.Info("🔄 Migrating %d dependencies...", len(deps))
	for _, dep := range deps {
		q, err := p.builder.ForConfig(ctx, dep)
		if err != nil {
			return fmt.Errorf("build query for %s: %w", dep.APIName, err)
		}
		if q == "" {
			continue
		}
		records, err := p.Source.Query(ctx, q)
		if err != nil {
			return fmt.Errorf("query %s: %w", dep.APIName, err)
		}
		if len(records) == 0 {
			logger.Warn("\t⚠️  no records found for %s dependency", dep.APIName)
			continue
		}
		p.dump(ctx, dep.APIName, records)

		if err := p.write(ctx, dep, records); err != nil {
			return err
		}
		kept := p.retain(dep, records)
		if err := p.update(ctx, dep, kept.records); err != nil {
			return err
		}
		if kept.pending, err = p.mapper.Pending(ctx, records, dep.APIName); err != nil {
			return err
		}
	}
	logger.Info("✅ Migrating dependencies completed")
	return nil
}

func (p *Pipeline) migrateNode(ctx context.Context, scope *models.Scope, records []*models.Record) error {
	cfg := scope.Config
	if len(records) == 0 {
		logger.Warn("\t⚠️  no records found for %s", cfg.APIName)
		return nil
	}
	p.dump(ctx, cfg.APIName, records)

	pending, err := p.mapper.Pending(ctx, records, cfg.APIName)
	if err != nil {
		return err
	}
	if err := p.write(ctx, cfg, records); err != nil {
		return err
	}
	p.retain(cfg, records).pending = pending
	return nil
}

// write inserts, or upserts by business key, and registers the new identities.
func (p *Pipeline) write(ctx context.Context, cfg *models.TreeConfig, records []*models.Record) error {
	payload, err := p.mapper.AssignReferences(ctx, records, cfg.APIName, reference.Creatable(cfg))
	if err != nil {
		return err
	}
	rows := models.RowsByID(records, payload)

	action := "insert"
	var results []models.WriteResult
	if key := upsertKey(cfg, payload); key != "" {
		action = "upsert"
		results, err = p.Target.Upsert(ctx, cfg.APIName, rows, key, false)
	} else {
		results, err = p.Target.Insert(ctx, cfg.APIName, rows)
	}
	// Rows written before a transport error still get rolled back.
	p.ledger.Push(cfg.APIName, models.CreatedIDs(results))
	if err != nil {
		return fmt.Errorf("%s %s: %w", action, cfg.APIName, err)
	}

	summary := models.Summarize(results)
	displayResults(action, cfg.APIName, summary)
	if summary.ErrorCount > 0 {
		return &WriteError{Action: action, ObjectType: cfg.APIName, Summary: summary}
	}

	mappings, err := p.mapper.AddReferencesFromDbResults(ctx, records, results, cfg)
	if err != nil {
		return err
	}
	p.journal(ctx, mappings)
	return nil
}

// update writes the updatable fields of records with references resolved
// through the current identity map.
func (p *Pipeline) update(ctx context.Context, cfg *models.TreeConfig, records []*models.Record) error {
	payload, err := p.mapper.AssignReferences(ctx, records, cfg.APIName, reference.Updatable(cfg))
	if err != nil {
		return err
	}
	var rows []models.Row
	for i, r := range payload {
		if r.ID() == "" || r.Len() < 2 {
			continue
		}
		rows = append(rows, models.Row{Key: records[i].ID(), Record: r})
	}
	if len(rows) == 0 {
		return nil
	}
	results, err := p.Target.Update(ctx, cfg.APIName, rows)
	if err != nil {
		return fmt.Errorf("update %s: %w", cfg.APIName, err)
	}
	summary := models.Summarize(results)
	displayResults("update", cfg.APIName, summary)
	if summary.ErrorCount > 0 {
		return &WriteError{Action: "update", ObjectType: cfg.APIName, Summary: summary}
	}
	return nil
}

// patch closes references that could not be written at insert time: every
// type with required references, and every type whose unresolved references
// have since been mapped.
func (p *Pipeline) patch(ctx context.Context) error {
	logger.Info("🔄 Updating record references...")
	for _, r := range p.retained {
		pending, err := p.mapper.Pending(ctx, r.records, r.config.APIName)
		if err != nil {
			return err
		}
		if len(r.config.RequiredReferences) == 0 && pending >= r.pending {
			continue
		}
		if err := p.update(ctx, r.config, r.records); err != nil {
			return err
		}
	}
	logger.Info("✅ Updating record references completed")
	return nil
}

// retain stores copies of records without their required references, which
// are applied by the patch pass instead.
func (p *Pipeline) retain(cfg *models.TreeConfig, records []*models.Record) *retained {
	kept := models.CloneAll(records)
	for _, r := range kept {
		for _, f := range cfg.RequiredReferences {
			r.Delete(f)
		}
	}
	r := &retained{config: cfg, records: kept}
	p.retained = append(p.retained, r)
	return r
}

func (p *Pipeline) dump(ctx context.Context, objectType string, records []*models.Record) {
	if p.Sink == nil {
		return
	}
	if err := p.Sink.Dump(ctx, objectType, records); err != nil {
		logger.Warn("dump of %s failed: %v", objectType, err)
	}
}

func (p *Pipeline) journal(ctx context.Context, mappings []models.Mapping) {
	if p.Journal == nil || len(mappings) == 0 {
		return
	}
	if err := p.Journal.RecordMappings(ctx, mappings); err != nil {
		logger.Warn("journal write failed: %v", err)
	}
}

// upsertKey picks the first business key populated on every payload, falling
// back to the first declared key.
func upsertKey(cfg *models.TreeConfig, payload []*models.Record) string {
	for _, key := range cfg.ExternalIDField {
		all := true
		for _, r := range payload {
			if !r.Has(key) {
				all = false
				break
			}
		}
		if all {
			return key
		}
	}
	return cfg.ExternalIDField.First()
}
