// Package schema memoizes object metadata of one org for the lifetime of a run.
package schema

import (
	"context"
	"fmt"

	"github.com/BartekS5/treemigrate/pkg/database"
	"github.com/BartekS5/treemigrate/pkg/logger"
	"github.com/BartekS5/treemigrate/pkg/models"
)

// KeyPrefixLength is the length of the type prefix carried by every record id.
const KeyPrefixLength = 3

// Cache wraps a Describer. Describe calls are network round trips, so each
// type is described at most once.
type Cache struct {
	db       database.Describer
	objects  map[string]*models.ObjectSchema
	prefixes map[string]string
	resolved map[string]string
}

func NewCache(db database.Describer) *Cache {
	return &Cache{
		db:       db,
		objects:  make(map[string]*models.ObjectSchema),
		resolved: make(map[string]string),
	}
}

// Describe returns the field metadata of objectType.
func (c *Cache) Describe(ctx context.Context, objectType string) (*models.ObjectSchema, error) {
	if s, ok := c.objects[objectType]; ok {
		return s, nil
	}
	s, err := c.db.Describe(ctx, objectType)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", objectType, err)
	}
	logger.Debug("described %s: %d fields", objectType, len(s.Fields))
	c.objects[objectType] = s
	return s, nil
}

// ResolveTypeOfID maps a record id to its object type through the key prefix.
// It returns "" when no declared type owns the prefix.
func (c *Cache) ResolveTypeOfID(ctx context.Context, id string) (string, error) {
	if len(id) < KeyPrefixLength {
		return "", nil
	}
	prefix := id[:KeyPrefixLength]
	if t, ok := c.resolved[prefix]; ok {
		return t, nil
	}
	if c.prefixes == nil {
		types, err := c.db.DescribeGlobal(ctx)
		if err != nil {
			return "", fmt.Errorf("describe global: %w", err)
		}
		c.prefixes = make(map[string]string, len(types))
		for _, t := range types {
			if t.KeyPrefix != "" {
				c.prefixes[t.KeyPrefix] = t.Name
			}
		}
	}
	t := c.prefixes[prefix]
	c.resolved[prefix] = t
	return t, nil
}

// Filter returns the metadata of every field of objectType accepted by keep.
func (c *Cache) Filter(ctx context.Context, objectType string, keep func(models.Field) bool) ([]models.Field, error) {
	s, err := c.Describe(ctx, objectType)
	if err != nil {
		return nil, err
	}
	var out []models.Field
	for _, f := range s.Fields {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out, nil
}
