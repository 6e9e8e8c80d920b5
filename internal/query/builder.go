// Package query builds the read queries used against source and target orgs.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BartekS5/treemigrate/pkg/models"
)

// ErrNoSchema is returned when a config query is built without a schema source.
var ErrNoSchema = errors.New("query builder requires a schema source")

// SchemaSource is the subset of the schema cache the builder needs.
type SchemaSource interface {
	Describe(ctx context.Context, objectType string) (*models.ObjectSchema, error)
}

// Builder assembles the SOQL reads of a run.
type Builder struct {
	schema SchemaSource
}

// NewBuilder returns a builder. schema may be nil when only ByIDs and
// ByFieldValues are used.
func NewBuilder(schema SchemaSource) *Builder {
	return &Builder{schema: schema}
}

// ForScope builds the source read for one tree node. It returns "" when the
// node has no ids to filter on, which means there is nothing to migrate here.
func (b *Builder) ForScope(ctx context.Context, scope *models.Scope) (string, error) {
	cfg := scope.Config
	if b.schema == nil {
		return "", ErrNoSchema
	}
	fields, idField, err := b.fieldsForConfig(ctx, cfg)
	if err != nil {
		return "", err
	}

	ids := scope.FilterIDs()
	if len(ids) == 0 {
		return "", nil
	}

	filterField := idField
	if cfg.ReferenceField != "" {
		filterField = cfg.ReferenceField
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(fields, ","), cfg.APIName, filterField, literalList(ids))

	if len(cfg.ExternalIDField) > 0 {
		conds := make([]string, len(cfg.ExternalIDField))
		for i, f := range cfg.ExternalIDField {
			conds[i] = f + " != NULL"
		}
		fmt.Fprintf(&sb, " AND (%s)", strings.Join(conds, " OR "))
	}
	return sb.String(), nil
}

// ForConfig builds the read for a config used as its own root scope.
func (b *Builder) ForConfig(ctx context.Context, cfg *models.TreeConfig) (string, error) {
	return b.ForScope(ctx, models.RootScope(cfg))
}

// ByIDs selects fields of objectType by Id.
func (b *Builder) ByIDs(fields []string, objectType string, ids []string) string {
	return b.ByFieldValues(fields, objectType, models.FieldID, ids)
}

// ByFieldValues selects fields of objectType where field matches one of values.
func (b *Builder) ByFieldValues(fields []string, objectType, field string, values []string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		strings.Join(fields, ","), objectType, field, literalList(values))
}

// fieldsForConfig keeps the identifier, every creatable and updatable field not
// excluded, and every required reference.
func (b *Builder) fieldsForConfig(ctx context.Context, cfg *models.TreeConfig) ([]string, string, error) {
	s, err := b.schema.Describe(ctx, cfg.APIName)
	if err != nil {
		return nil, "", err
	}
	var fields []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			fields = append(fields, name)
		}
	}
	for _, f := range s.Fields {
		switch {
		case f.IsID():
			add(f.Name)
		case f.Createable && f.Updateable && !cfg.IsExcluded(f.Name):
			add(f.Name)
		}
	}
	for _, name := range cfg.RequiredReferences {
		add(name)
	}
	return fields, s.IDField(), nil
}

func literalList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return strings.Join(quoted, ",")
}

// Quote renders s as a single-quoted literal.
func Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
