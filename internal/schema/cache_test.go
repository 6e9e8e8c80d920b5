package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/BartekS5/treemigrate/internal/platform/memory"
	"github.com/BartekS5/treemigrate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDescriber struct {
	*memory.DB
	describes map[string]int
	globals   int
}

func (c *countingDescriber) Describe(ctx context.Context, objectType string) (*models.ObjectSchema, error) {
	c.describes[objectType]++
	return c.DB.Describe(ctx, objectType)
}

func (c *countingDescriber) DescribeGlobal(ctx context.Context) ([]models.ObjectType, error) {
	c.globals++
	return c.DB.DescribeGlobal(ctx)
}

func newCounting() *countingDescriber {
	return &countingDescriber{DB: memory.NewStandard('S'), describes: make(map[string]int)}
}

func TestDescribeIsMemoized(t *testing.T) {
	ctx := context.Background()
	db := newCounting()
	c := NewCache(db)

	first, err := c.Describe(ctx, "Account")
	require.NoError(t, err)
	second, err := c.Describe(ctx, "Account")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, db.describes["Account"])
}

func TestDescribeErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	db := newCounting()
	c := NewCache(db)

	_, err := c.Describe(ctx, "Nope__c")
	require.Error(t, err)
	_, err = c.Describe(ctx, "Nope__c")
	require.Error(t, err)
	assert.Equal(t, 2, db.describes["Nope__c"])
}

func TestResolveTypeOfID(t *testing.T) {
	ctx := context.Background()
	db := newCounting()
	c := NewCache(db)

	tests := []struct {
		id   string
		want string
	}{
		{"003S00000000001", "Contact"},
		{"005S00000000002", "User"},
		{"003S00000000003", "Contact"},
		{"zzzS00000000004", ""},
		{"00", ""},
	}
	for _, tt := range tests {
		got, err := c.ResolveTypeOfID(ctx, tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.id)
	}
	assert.Equal(t, 1, db.globals)
}

func TestResolveTypeOfIDPropagatesErrors(t *testing.T) {
	db := newCounting()
	db.FailWith("describeGlobal", "", errors.New("session expired"))
	_, err := NewCache(db).ResolveTypeOfID(context.Background(), "003S00000000001")
	assert.ErrorContains(t, err, "session expired")
}

func TestFilter(t *testing.T) {
	c := NewCache(newCounting())
	refs, err := c.Filter(context.Background(), "Case", models.Field.IsReference)
	require.NoError(t, err)

	var names []string
	for _, f := range refs {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"AccountId", "ContactId", "RecordTypeId", "WhoId"}, names)
}
