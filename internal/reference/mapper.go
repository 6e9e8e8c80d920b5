// Package reference owns the source-id to target-id table of a run and
// rewrites reference fields of outgoing payloads through it.
package reference

import (
	"context"
	"fmt"
	"strings"

	"github.com/BartekS5/treemigrate/internal/query"
	"github.com/BartekS5/treemigrate/internal/schema"
	"github.com/BartekS5/treemigrate/pkg/database"
	"github.com/BartekS5/treemigrate/pkg/logger"
	"github.com/BartekS5/treemigrate/pkg/models"
)

// KeepFunc decides which described fields survive in a payload.
type KeepFunc func(models.Field) bool

// Creatable keeps fields accepted by an insert, minus the config's exclusions.
func Creatable(cfg *models.TreeConfig) KeepFunc {
	return func(f models.Field) bool {
		return f.Createable && (cfg == nil || !cfg.IsExcluded(f.Name))
	}
}

// Updatable keeps the identifier and fields accepted by an update, minus the
// config's exclusions.
func Updatable(cfg *models.TreeConfig) KeepFunc {
	return func(f models.Field) bool {
		if f.IsID() {
			return true
		}
		return f.Updateable && (cfg == nil || !cfg.IsExcluded(f.Name))
	}
}

// Mapper is created once per run. It is not safe for concurrent use.
type Mapper struct {
	schema  *schema.Cache
	source  database.Querier
	target  database.Querier
	builder *query.Builder
	ids     map[string]string
}

// NewMapper wires a mapper. cache describes source-side types.
func NewMapper(cache *schema.Cache, source, target database.Querier) *Mapper {
	return &Mapper{
		schema:  cache,
		source:  source,
		target:  target,
		builder: query.NewBuilder(cache),
		ids:     make(map[string]string),
	}
}

// Add registers source -> target. An id is registered at most once; Add
// reports whether the mapping was new.
func (m *Mapper) Add(source, target string) bool {
	if source == "" || target == "" {
		return false
	}
	if existing, ok := m.ids[source]; ok {
		if existing != target {
			logger.Warn("ignoring second mapping for %s: %s already mapped to %s", source, target, existing)
		}
		return false
	}
	m.ids[source] = target
	return true
}

// Lookup returns the target id registered for source.
func (m *Mapper) Lookup(source string) (string, bool) {
	t, ok := m.ids[source]
	return t, ok
}

func (m *Mapper) Len() int { return len(m.ids) }

// AssignReferences returns payload copies of records ready to write as
// objectType. Reference fields and the identifier are rewritten to target ids;
// a reference without a mapping is removed, never nulled. Nulls, the
// attributes envelope, undescribed fields and fields rejected by keep are
// removed as well.
func (m *Mapper) AssignReferences(ctx context.Context, records []*models.Record, objectType string, keep KeepFunc) ([]*models.Record, error) {
	s, err := m.schema.Describe(ctx, objectType)
	if err != nil {
		return nil, err
	}
	refs := s.ReferenceFields()

	out := make([]*models.Record, 0, len(records))
	for _, src := range records {
		r := src.Clone()
		r.Delete(models.FieldAttributes)
		for _, name := range r.Fields() {
			v, _ := r.Get(name)
			if v.IsNull() {
				r.Delete(name)
				continue
			}
			if !refs[name] {
				continue
			}
			id, _ := v.Str()
			if target, ok := m.ids[id]; ok {
				r.Set(name, models.String(target))
			} else {
				r.Delete(name)
			}
		}
		for _, name := range r.Fields() {
			f, ok := s.Field(name)
			if !ok || !keep(f) {
				r.Delete(name)
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// Pending counts reference values (identifier excluded) that have no mapping yet.
func (m *Mapper) Pending(ctx context.Context, records []*models.Record, objectType string) (int, error) {
	s, err := m.schema.Describe(ctx, objectType)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range records {
		for _, f := range s.Fields {
			if !f.IsReference() {
				continue
			}
			id, ok := r.GetString(f.Name)
			if !ok {
				continue
			}
			if _, mapped := m.ids[id]; !mapped {
				n++
			}
		}
	}
	return n, nil
}

// AddReferencesFromDbResults registers every successfully written record,
// pairing source records and results by source Id. When cfg has required
// references, the written target records are read back and each field's
// source value is mapped to its target value.
func (m *Mapper) AddReferencesFromDbResults(ctx context.Context, records []*models.Record, results []models.WriteResult, cfg *models.TreeConfig) ([]models.Mapping, error) {
	byKey := make(map[string]models.WriteResult, len(results))
	for _, r := range results {
		byKey[r.Key] = r
	}

	var added []models.Mapping
	type pair struct {
		source *models.Record
		target string
	}
	var written []pair
	for _, rec := range records {
		res, ok := byKey[rec.ID()]
		if !ok || !res.Success || res.ID == "" {
			continue
		}
		written = append(written, pair{rec, res.ID})
		if m.Add(rec.ID(), res.ID) {
			added = append(added, models.Mapping{ObjectType: cfg.APIName, SourceID: rec.ID(), TargetID: res.ID})
		}
	}
	if len(cfg.RequiredReferences) == 0 || len(written) == 0 {
		return added, nil
	}

	targetIDs := make([]string, len(written))
	for i, p := range written {
		targetIDs[i] = p.target
	}
	fields := append([]string{models.FieldID}, cfg.RequiredReferences...)
	targets, err := m.target.Query(ctx, m.builder.ByIDs(fields, cfg.APIName, targetIDs))
	if err != nil {
		return added, fmt.Errorf("read back required references of %s: %w", cfg.APIName, err)
	}
	byID := make(map[string]*models.Record, len(targets))
	for _, t := range targets {
		byID[t.ID()] = t
	}

	for _, p := range written {
		t, ok := byID[p.target]
		if !ok {
			continue
		}
		for _, field := range cfg.RequiredReferences {
			sv, ok := p.source.GetString(field)
			if !ok {
				continue
			}
			tv, ok := t.GetString(field)
			if !ok {
				continue
			}
			if m.Add(sv, tv) {
				added = append(added, models.Mapping{ObjectType: cfg.APIName + "." + field, SourceID: sv, TargetID: tv})
			}
		}
	}
	return added, nil
}

// AddReferenceIDMappings matches records of km.APIName that exist on both
// sides by business key. values filter km.FilterField when km declares no
// FilterValues of its own.
func (m *Mapper) AddReferenceIDMappings(ctx context.Context, km models.KeyMapping, values []string) ([]models.Mapping, error) {
	if len(km.FilterValues) > 0 {
		values = km.FilterValues
	}
	if len(values) == 0 {
		return nil, nil
	}
	fields := []string{models.FieldID}
	for _, f := range km.KeyFields {
		if f != models.FieldID {
			fields = append(fields, f)
		}
	}
	if !containsString(fields, km.FilterField) {
		fields = append(fields, km.FilterField)
	}
	q := m.builder.ByFieldValues(fields, km.APIName, km.FilterField, values)

	sourceRows, err := m.source.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", km.APIName, err)
	}
	targetRows, err := m.target.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("read target %s: %w", km.APIName, err)
	}

	targetByKey := make(map[string]string, len(targetRows))
	for _, r := range targetRows {
		targetByKey[businessKey(r, km)] = r.ID()
	}

	var added []models.Mapping
	for _, r := range sourceRows {
		target, ok := targetByKey[businessKey(r, km)]
		if !ok {
			logger.Warn("no %s on target matching %s", km.APIName, describeKey(r, km))
			continue
		}
		if m.Add(r.ID(), target) {
			added = append(added, models.Mapping{ObjectType: km.APIName, SourceID: r.ID(), TargetID: target})
		}
	}
	return added, nil
}

// businessKey joins the filter value and key values, so that two record types
// sharing a developer name on different object types stay apart.
func businessKey(r *models.Record, km models.KeyMapping) string {
	parts := make([]string, 0, len(km.KeyFields)+1)
	if v, ok := r.Get(km.FilterField); ok {
		parts = append(parts, v.Text())
	}
	for _, f := range km.KeyFields {
		v, _ := r.Get(f)
		parts = append(parts, v.Text())
	}
	return strings.Join(parts, "\x1f")
}

func describeKey(r *models.Record, km models.KeyMapping) string {
	parts := make([]string, 0, len(km.KeyFields)+1)
	for _, f := range append([]string{km.FilterField}, km.KeyFields...) {
		v, _ := r.Get(f)
		parts = append(parts, f+"="+v.Text())
	}
	return strings.Join(parts, ", ")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
