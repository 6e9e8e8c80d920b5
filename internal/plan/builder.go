// Package plan writes source trees as data-import plans: one record file per
// tree node plus a plan ordered so parents are saved before children.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/BartekS5/treemigrate/internal/query"
	"github.com/BartekS5/treemigrate/internal/reference"
	"github.com/BartekS5/treemigrate/internal/schema"
	"github.com/BartekS5/treemigrate/pkg/database"
	"github.com/BartekS5/treemigrate/pkg/logger"
	"github.com/BartekS5/treemigrate/pkg/models"
)

// FileName is the name of the plan manifest.
const FileName = "_import-plan.json"

// Writer stores named JSON documents.
type Writer interface {
	WriteJSON(name string, v interface{}) error
}

// Entry is one step of the import plan.
type Entry struct {
	Sobject     string   `json:"sobject"`
	SaveRefs    bool     `json:"saveRefs"`
	ResolveRefs bool     `json:"resolveRefs"`
	Files       []string `json:"files"`

	level int
}

// RecordFile is the content of one record file.
type RecordFile struct {
	Records []*models.Record `json:"records"`
}

type Builder struct {
	source  database.Querier
	target  database.Querier
	schema  *schema.Cache
	builder *query.Builder
	mapper  *reference.Mapper
	out     Writer

	refCounts  map[string]int
	fileCounts map[string]int
}

// New returns a plan builder. target may be nil; when set, key-mapped types
// are resolved against it so their references hold real target ids.
func New(source database.Database, target database.Querier, out Writer) *Builder {
	cache := schema.NewCache(source)
	return &Builder{
		source:     source,
		target:     target,
		schema:     cache,
		builder:    query.NewBuilder(cache),
		mapper:     reference.NewMapper(cache, source, target),
		out:        out,
		refCounts:  make(map[string]int),
		fileCounts: make(map[string]int),
	}
}

// Build reads the tree of cfg and writes its record files and plan.
func (b *Builder) Build(ctx context.Context, cfg *models.ExportConfig) ([]Entry, error) {
	if b.target != nil {
		types := cfg.TreeConfig.ObjectTypes()
		for _, km := range cfg.EffectiveKeyMappings() {
			if _, err := b.mapper.AddReferenceIDMappings(ctx, km, types); err != nil {
				return nil, fmt.Errorf("map %s: %w", km.APIName, err)
			}
		}
	}

	var entries []Entry
	err := query.Walk(ctx, b.source, b.builder, cfg.TreeConfig, func(ctx context.Context, scope *models.Scope, records []*models.Record) error {
		if len(records) == 0 {
			logger.Warn("\t⚠️  no records found for %s", scope.Config.APIName)
			return nil
		}
		name, err := b.writeNode(ctx, scope.Config, records)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Sobject:     scope.Config.APIName,
			SaveRefs:    true,
			ResolveRefs: true,
			Files:       []string{name},
			level:       scope.Depth,
		})
		logger.Info("%s records were retrieved.", scope.Config.APIName)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].level < entries[j].level })
	if err := b.out.WriteJSON(FileName, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *Builder) writeNode(ctx context.Context, cfg *models.TreeConfig, records []*models.Record) (string, error) {
	refs := make([]string, len(records))
	for i, r := range records {
		b.refCounts[cfg.APIName]++
		refs[i] = fmt.Sprintf("%sRef%d", cfg.APIName, b.refCounts[cfg.APIName])
		b.mapper.Add(r.ID(), "@"+refs[i])
	}

	payload, err := b.mapper.AssignReferences(ctx, records, cfg.APIName, reference.Creatable(cfg))
	if err != nil {
		return "", err
	}
	file := RecordFile{Records: make([]*models.Record, len(payload))}
	for i, r := range payload {
		file.Records[i] = withAttributes(r, cfg.APIName, refs[i])
	}

	b.fileCounts[cfg.APIName]++
	name := cfg.APIName + ".json"
	if n := b.fileCounts[cfg.APIName]; n > 1 {
		name = fmt.Sprintf("%s_%d.json", cfg.APIName, n)
	}
	if err := b.out.WriteJSON(name, file); err != nil {
		return "", err
	}
	return name, nil
}

func withAttributes(r *models.Record, objectType, referenceID string) *models.Record {
	attrs, _ := json.Marshal(struct {
		Type        string `json:"type"`
		ReferenceID string `json:"referenceId"`
	}{objectType, referenceID})
	out := models.NewRecord()
	out.Set(models.FieldAttributes, models.Object(attrs))
	for _, f := range r.Fields() {
		v, _ := r.Get(f)
		out.Set(f, v)
	}
	return out
}
