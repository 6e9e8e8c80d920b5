package query

import (
	"context"
	"errors"
	"testing"

	"github.com/BartekS5/treemigrate/internal/platform/memory"
	"github.com/BartekS5/treemigrate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type visit struct {
	objectType string
	depth      int
	parents    []string
	ids        []string
}

func TestWalkPreOrder(t *testing.T) {
	ctx := context.Background()
	db := memory.NewStandard('S')
	accounts := db.Seed("Account", models.RecordOf("Name", "Acme"))
	contacts := db.Seed("Contact",
		models.RecordOf("LastName", "One", "AccountId", accounts[0]),
		models.RecordOf("LastName", "Two", "AccountId", accounts[0]))
	cases := db.Seed("Case", models.RecordOf("Subject", "Broken", "ContactId", contacts[1]))

	root := &models.TreeConfig{
		APIName:   "Account",
		RecordIDs: accounts,
		Children: []*models.TreeConfig{
			{APIName: "Contact", ReferenceField: "AccountId", Children: []*models.TreeConfig{
				{APIName: "Case", ReferenceField: "ContactId", Children: []*models.TreeConfig{
					{APIName: "Asset", ReferenceField: "ContactId"},
				}},
				{APIName: "Asset", ReferenceField: "ContactId"},
			}},
		},
	}

	var got []visit
	err := Walk(ctx, db, NewBuilder(db), root, func(_ context.Context, scope *models.Scope, records []*models.Record) error {
		got = append(got, visit{scope.Config.APIName, scope.Depth, scope.ParentRecordIDs, models.IDs(records)})
		assert.Equal(t, models.IDs(records), scope.RecordIDs)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 5)
	assert.Equal(t, visit{"Account", 1, nil, accounts}, got[0])
	assert.Equal(t, visit{"Contact", 2, accounts, contacts}, got[1])
	assert.Equal(t, visit{"Case", 3, contacts, cases}, got[2])
	// Asset under Case filters on case ids and finds nothing.
	assert.Equal(t, "Asset", got[3].objectType)
	assert.Equal(t, cases, got[3].parents)
	assert.Empty(t, got[3].ids)
	assert.Equal(t, visit{"Asset", 3, contacts, []string{}}, got[4])

	assert.Empty(t, root.Children[0].ParentRecordIDs, "tree config must not be mutated")
}

func TestWalkStopsBranchWithoutRows(t *testing.T) {
	ctx := context.Background()
	db := memory.NewStandard('S')
	accounts := db.Seed("Account", models.RecordOf("Name", "Acme"))

	root := &models.TreeConfig{
		APIName:   "Account",
		RecordIDs: accounts,
		Children: []*models.TreeConfig{
			{APIName: "Contact", ReferenceField: "AccountId", Children: []*models.TreeConfig{
				{APIName: "Case", ReferenceField: "ContactId"},
			}},
		},
	}

	var visited []string
	err := Walk(ctx, db, NewBuilder(db), root, func(_ context.Context, scope *models.Scope, _ []*models.Record) error {
		visited = append(visited, scope.Config.APIName)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Account", "Contact"}, visited)
	assert.Len(t, db.Queries(), 2)
}

func TestWalkPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	db := memory.NewStandard('S')
	accounts := db.Seed("Account", models.RecordOf("Name", "Acme"))
	root := &models.TreeConfig{APIName: "Account", RecordIDs: accounts}

	stop := errors.New("stop")
	err := Walk(ctx, db, NewBuilder(db), root, func(context.Context, *models.Scope, []*models.Record) error { return stop })
	assert.ErrorIs(t, err, stop)

	db.FailWith("query", "Account", errors.New("socket hang up"))
	err = Walk(ctx, db, NewBuilder(db), root, func(context.Context, *models.Scope, []*models.Record) error { return nil })
	assert.ErrorContains(t, err, "socket hang up")
}

func TestWalkHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	db := memory.NewStandard('S')
	err := Walk(ctx, db, NewBuilder(db), &models.TreeConfig{APIName: "Account", RecordIDs: []string{"001"}},
		func(context.Context, *models.Scope, []*models.Record) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
