package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/BartekS5/treemigrate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p, err := parse(`SELECT Id, Name FROM Account WHERE Name IN ('O\'Brien','a,b','x\\y') AND (External_Id__c != NULL OR Name != NULL)`)
	require.NoError(t, err)

	assert.Equal(t, []string{"Id", "Name"}, p.fields)
	assert.Equal(t, "Account", p.objectType)
	assert.Equal(t, "Name", p.filter)
	assert.Equal(t, map[string]bool{"O'Brien": true, "a,b": true, `x\y`: true}, p.values)
	assert.Equal(t, []string{"External_Id__c", "Name"}, p.notNull)
}

func TestParseRejectsMalformedQueries(t *testing.T) {
	for _, q := range []string{
		"DELETE FROM Account",
		"SELECT Id Account",
		"SELECT Id FROM Account",
		"SELECT Id FROM Account WHERE Id = '1'",
		"SELECT Id FROM Account WHERE Id IN ('1'",
		"SELECT Id FROM Account WHERE Id IN ('1') OR Name = 'x'",
	} {
		_, err := parse(q)
		assert.Error(t, err, q)
	}
}

func TestQueryProjectsFields(t *testing.T) {
	ctx := context.Background()
	db := NewStandard('S')
	ids := db.Seed("Account",
		models.RecordOf("Name", "Acme", "External_Id__c", "EXT-1"),
		models.RecordOf("Name", "Globex"))

	rows, err := db.Query(ctx, "SELECT Id,Name,ParentId FROM Account WHERE Id IN ('"+ids[0]+"','"+ids[1]+"') AND (External_Id__c != NULL)")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, []string{"attributes", "Id", "Name", "ParentId"}, rows[0].Fields())
	parent, _ := rows[0].Get("ParentId")
	assert.True(t, parent.IsNull())
}

func TestQueryUnknownType(t *testing.T) {
	_, err := NewStandard('S').Query(context.Background(), "SELECT Id FROM Nope WHERE Id IN ('1')")
	assert.ErrorContains(t, err, "INVALID_TYPE")
}

func TestInsertRules(t *testing.T) {
	ctx := context.Background()
	db := NewStandard('T')
	account := db.Seed("Account", models.RecordOf("Name", "Acme"))[0]

	results, err := db.Insert(ctx, "Contact", []models.Row{
		{Key: "ok", Record: models.RecordOf("LastName", "One", "AccountId", account)},
		{Key: "id", Record: models.RecordOf("Id", "003X", "LastName", "Two")},
		{Key: "null", Record: models.RecordOf("LastName", nil)},
		{Key: "dangling", Record: models.RecordOf("LastName", "Three", "AccountId", "001S00000000099")},
		{Key: "unknown", Record: models.RecordOf("Nope__c", "x")},
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.True(t, results[0].Success)
	assert.True(t, results[0].Created)
	assert.Equal(t, "ok", results[0].Key)
	assert.Equal(t, "003T", results[0].ID[:4])

	codes := make(map[string]string)
	for _, r := range results[1:] {
		require.False(t, r.Success, r.Key)
		codes[r.Key] = r.Errors[0].StatusCode
	}
	assert.Equal(t, map[string]string{
		"id":       "INVALID_FIELD_FOR_INSERT_UPDATE",
		"null":     "INVALID_FIELD",
		"dangling": "INVALID_CROSS_REFERENCE_KEY",
		"unknown":  "INVALID_FIELD_FOR_INSERT_UPDATE",
	}, codes)

	assert.Len(t, db.Records("Contact"), 1)
	assert.Len(t, db.Calls("insert"), 1)
}

func TestUpsertMatchesByKey(t *testing.T) {
	ctx := context.Background()
	db := NewStandard('T')
	existing := db.Seed("Account", models.RecordOf("Name", "Old", "External_Id__c", "EXT-1"))[0]

	results, err := db.Upsert(ctx, "Account", []models.Row{
		{Key: "a", Record: models.RecordOf("Name", "New", "External_Id__c", "EXT-1")},
		{Key: "b", Record: models.RecordOf("Name", "Fresh", "External_Id__c", "EXT-2")},
	}, "External_Id__c", false)
	require.NoError(t, err)

	assert.Equal(t, models.WriteResult{Key: "a", Success: true, ID: existing}, results[0])
	assert.True(t, results[1].Created)

	updated, ok := db.Find("Account", existing)
	require.True(t, ok)
	name, _ := updated.GetString("Name")
	assert.Equal(t, "New", name)
}

func TestUpsertAllOrNone(t *testing.T) {
	db := NewStandard('T')
	_, err := db.Upsert(context.Background(), "Account", []models.Row{
		{Key: "a", Record: models.RecordOf("Name", "New")},
	}, "External_Id__c", true)
	assert.Error(t, err)
}

func TestDeleteAndRejections(t *testing.T) {
	ctx := context.Background()
	db := NewStandard('T')
	ids := db.Seed("Account", models.RecordOf("Name", "Acme"))

	results, err := db.Delete(ctx, "Account", []string{ids[0], ids[0]})
	require.NoError(t, err)
	assert.True(t, results[0].Success)
	assert.Equal(t, "ENTITY_IS_DELETED", results[1].Errors[0].StatusCode)

	db.Reject("Account", func(r *models.Record) bool { return true }, "blocked")
	results, err = db.Insert(ctx, "Account", []models.Row{{Key: "x", Record: models.RecordOf("Name", "y")}})
	require.NoError(t, err)
	assert.Equal(t, "FIELD_CUSTOM_VALIDATION_EXCEPTION", results[0].Errors[0].StatusCode)

	boom := errors.New("boom")
	db.FailWith("delete", "Account", boom)
	_, err = db.Delete(ctx, "Account", ids)
	assert.ErrorIs(t, err, boom)
}
