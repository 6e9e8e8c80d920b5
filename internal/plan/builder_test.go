package plan

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/BartekS5/treemigrate/internal/platform/memory"
	"github.com/BartekS5/treemigrate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter map[string][]byte

func (w memWriter) WriteJSON(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w[name] = data
	return nil
}

func TestBuild(t *testing.T) {
	source := memory.NewStandard('S')
	accounts := source.Seed("Account", models.RecordOf("Name", "Acme"))
	contacts := source.Seed("Contact",
		models.RecordOf("LastName", "One", "AccountId", accounts[0]),
		models.RecordOf("LastName", "Two", "AccountId", accounts[0]))
	source.Seed("Case", models.RecordOf("Subject", "Broken", "AccountId", accounts[0], "ContactId", contacts[1]))

	cfg := &models.ExportConfig{TreeConfig: &models.TreeConfig{
		APIName:   "Account",
		RecordIDs: accounts,
		Children: []*models.TreeConfig{
			{APIName: "Contact", ReferenceField: "AccountId", Children: []*models.TreeConfig{
				{APIName: "Case", ReferenceField: "ContactId"},
			}},
			{APIName: "Case", ReferenceField: "AccountId"},
		},
	}}

	out := memWriter{}
	entries, err := New(source, nil, out).Build(context.Background(), cfg)
	require.NoError(t, err)

	var files []string
	for _, e := range entries {
		files = append(files, e.Sobject+":"+e.Files[0])
		assert.True(t, e.SaveRefs)
		assert.True(t, e.ResolveRefs)
	}
	// Parents come before children even though Case is first reached at depth 3.
	assert.Equal(t, []string{"Account:Account.json", "Contact:Contact.json", "Case:Case_2.json", "Case:Case.json"}, files)

	assert.JSONEq(t, `[
		{"sobject":"Account","saveRefs":true,"resolveRefs":true,"files":["Account.json"]},
		{"sobject":"Contact","saveRefs":true,"resolveRefs":true,"files":["Contact.json"]},
		{"sobject":"Case","saveRefs":true,"resolveRefs":true,"files":["Case_2.json"]},
		{"sobject":"Case","saveRefs":true,"resolveRefs":true,"files":["Case.json"]}
	]`, string(out[FileName]))

	assert.JSONEq(t, `{"records":[
		{"attributes":{"type":"Contact","referenceId":"ContactRef1"},"LastName":"One","AccountId":"@AccountRef1"},
		{"attributes":{"type":"Contact","referenceId":"ContactRef2"},"LastName":"Two","AccountId":"@AccountRef1"}
	]}`, string(out["Contact.json"]))

	assert.JSONEq(t, `{"records":[
		{"attributes":{"type":"Case","referenceId":"CaseRef1"},"Subject":"Broken","AccountId":"@AccountRef1","ContactId":"@ContactRef2"}
	]}`, string(out["Case.json"]))
	assert.JSONEq(t, `{"records":[
		{"attributes":{"type":"Case","referenceId":"CaseRef2"},"Subject":"Broken","AccountId":"@AccountRef1","ContactId":"@ContactRef2"}
	]}`, string(out["Case_2.json"]))
}

func TestBuildAttributesComeFirst(t *testing.T) {
	r := withAttributes(models.RecordOf("Name", "Acme"), "Account", "AccountRef1")
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"attributes":{"type":"Account","referenceId":"AccountRef1"},"Name":"Acme"}`, string(data))
}

func TestBuildResolvesKeyMappedTypesAgainstTarget(t *testing.T) {
	source := memory.NewStandard('S')
	target := memory.NewStandard('T')
	sourceRT := source.Seed(models.ObjectRecordType, models.RecordOf("DeveloperName", "Support", "SobjectType", "Case"))[0]
	targetRT := target.Seed(models.ObjectRecordType, models.RecordOf("DeveloperName", "Support", "SobjectType", "Case"))[0]
	cases := source.Seed("Case", models.RecordOf("Subject", "Broken", "RecordTypeId", sourceRT))

	out := memWriter{}
	cfg := &models.ExportConfig{TreeConfig: &models.TreeConfig{APIName: "Case", RecordIDs: cases}}
	_, err := New(source, target, out).Build(context.Background(), cfg)
	require.NoError(t, err)

	var file RecordFile
	require.NoError(t, json.Unmarshal(out["Case.json"], &file))
	require.Len(t, file.Records, 1)
	got, _ := file.Records[0].GetString("RecordTypeId")
	assert.Equal(t, targetRT, got)
	assert.Empty(t, target.Calls(""), "planning never writes")
}
