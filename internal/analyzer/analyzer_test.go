package analyzer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/BartekS5/treemigrate/internal/platform/memory"
	"github.com/BartekS5/treemigrate/internal/schema"
	"github.com/BartekS5/treemigrate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db       *memory.DB
	tree     *models.TreeConfig
	accounts []string
	users    []string
	contact  string
}

func newFixture() *fixture {
	db := memory.NewStandard('S')
	users := db.Seed("User",
		models.RecordOf("Username", "owner@example.com", "FederationIdentifier", "owner"),
		models.RecordOf("Username", "agent@example.com"))
	recordType := db.Seed(models.ObjectRecordType, models.RecordOf("DeveloperName", "Support", "SobjectType", "Case"))[0]
	outside := db.Seed("Contact", models.RecordOf("LastName", "Outside"))[0]

	parent := db.NewID("Account")
	accounts := db.Seed("Account",
		models.RecordOf("Name", "Child", "ParentId", parent, "OwnerId", users[0]),
		models.RecordOf("Id", parent, "Name", "Parent", "OwnerId", users[0]))
	db.Seed("Case", models.RecordOf(
		"Subject", "Broken",
		"AccountId", accounts[0],
		"ContactId", outside,
		"RecordTypeId", recordType,
		"WhoId", users[1],
	))

	tree := &models.TreeConfig{
		APIName:   "Account",
		RecordIDs: accounts,
		Children:  []*models.TreeConfig{{APIName: "Case", ReferenceField: "AccountId"}},
	}
	return &fixture{db: db, tree: tree, accounts: accounts, users: users, contact: outside}
}

func (f *fixture) analyze(t *testing.T, opts Options) *Result {
	t.Helper()
	res, err := New(f.db, schema.NewCache(f.db), opts).Analyze(context.Background(), f.tree)
	require.NoError(t, err)
	return res
}

func TestAnalyze(t *testing.T) {
	f := newFixture()
	res := f.analyze(t, Options{KeyMapped: (&models.ExportConfig{}).KeyMapped})

	assert.Equal(t, []string{"Account.OwnerId", "Case.ContactId", "Case.WhoId"}, res.Dependencies.Fields())
	assert.Equal(t, []string{"User", "Contact"}, res.Dependencies.Types())
	assert.Equal(t, []string{"User"}, res.Dependencies.TargetsOf("Case.WhoId"))

	require.Len(t, res.Configs, 2)
	assert.Equal(t, &models.TreeConfig{
		APIName:         "User",
		RecordIDs:       f.users,
		ExternalIDField: models.FieldList{"FederationIdentifier"},
	}, res.Configs[0])
	assert.Equal(t, "Contact", res.Configs[1].APIName)
	assert.Equal(t, []string{f.contact}, res.Configs[1].RecordIDs)
	assert.Empty(t, res.Configs[1].ExternalIDField)

	for _, id := range f.accounts {
		assert.True(t, res.TreeIDs[id])
	}
	assert.Empty(t, f.db.Calls(""), "analysis never writes")
}

func TestAnalyzeNeverReportsTreeIDs(t *testing.T) {
	f := newFixture()
	res := f.analyze(t, Options{})
	for _, typ := range res.Dependencies.Types() {
		for _, id := range res.Dependencies.IDs(typ) {
			assert.False(t, res.TreeIDs[id], "%s %s is part of the tree", typ, id)
		}
	}
	// Without key mapping, record types count as dependencies.
	assert.Contains(t, res.Dependencies.Types(), models.ObjectRecordType)
}

func TestAnalyzeSkipList(t *testing.T) {
	f := newFixture()
	res := f.analyze(t, Options{Skip: []string{"User", models.ObjectRecordType}})
	assert.Equal(t, []string{"Contact"}, res.Dependencies.Types())
}

func TestAnalyzeExcludedFields(t *testing.T) {
	f := newFixture()
	f.tree.ExcludedFields = []string{"OwnerId"}
	res := f.analyze(t, Options{Skip: []string{models.ObjectRecordType}})
	assert.Equal(t, []string{"Case.ContactId", "Case.WhoId"}, res.Dependencies.Fields())
}

func TestDependencyMapJSON(t *testing.T) {
	d := NewDependencyMap()
	d.Add("Case", "WhoId", "User", "005A")
	d.Add("Case", "WhoId", "Contact", "003A")
	d.Add("Account", "OwnerId", "User", "005A")

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Case.WhoId":["User","Contact"],"Account.OwnerId":["User"]}`, string(out))
	assert.Equal(t, []string{"005A"}, d.IDs("User"))
	assert.Equal(t, 2, d.Len())
}

func TestMerge(t *testing.T) {
	declared := []*models.TreeConfig{
		{APIName: "User", RecordIDs: []string{"005Z"}, ExternalIDField: models.FieldList{"Username"}},
		{APIName: "Product2", RecordIDs: []string{"01tA"}},
	}
	discovered := []*models.TreeConfig{
		{APIName: "User", RecordIDs: []string{"005A", "005Z"}, ExternalIDField: models.FieldList{"FederationIdentifier"}},
		{APIName: "Contact", RecordIDs: []string{"003A"}},
	}

	merged := Merge(declared, discovered)
	require.Len(t, merged, 3)
	assert.Equal(t, "User", merged[0].APIName)
	assert.Equal(t, []string{"005Z", "005A"}, merged[0].RecordIDs)
	assert.Equal(t, models.FieldList{"Username"}, merged[0].ExternalIDField)
	assert.Equal(t, "Product2", merged[1].APIName)
	assert.Equal(t, "Contact", merged[2].APIName)

	assert.Equal(t, []string{"005Z"}, declared[0].RecordIDs, "declared configs are not mutated")
}
