package memory

import "github.com/BartekS5/treemigrate/pkg/models"

func idField() models.Field {
	return models.Field{Name: models.FieldID, Type: models.FieldTypeID}
}

func text(name string) models.Field {
	return models.Field{Name: name, Type: "string", Createable: true, Updateable: true}
}

func lookup(name string, to ...string) models.Field {
	return models.Field{Name: name, Type: models.FieldTypeReference, Createable: true, Updateable: true, ReferenceTo: to}
}

func externalID(name string) models.Field {
	f := text(name)
	f.ExternalID = true
	f.Unique = true
	return f
}

// StandardObjects describes a small CRM: accounts with contacts, cases,
// assets, users and record types.
func StandardObjects() []*models.ObjectSchema {
	return []*models.ObjectSchema{
		{Name: "Account", KeyPrefix: "001", Fields: []models.Field{
			idField(),
			text("Name"),
			lookup("ParentId", "Account"),
			lookup("OwnerId", "User"),
			externalID("External_Id__c"),
			{Name: "CreatedDate", Type: "datetime"},
		}},
		{Name: "Contact", KeyPrefix: "003", Fields: []models.Field{
			idField(),
			text("LastName"),
			lookup("AccountId", "Account"),
			lookup("ReportsToId", "Contact"),
		}},
		{Name: "Case", KeyPrefix: "500", Fields: []models.Field{
			idField(),
			text("Subject"),
			lookup("AccountId", "Account"),
			lookup("ContactId", "Contact"),
			lookup("RecordTypeId", "RecordType"),
			lookup("WhoId", "Contact", "User"),
		}},
		{Name: "Asset", KeyPrefix: "02i", Fields: []models.Field{
			idField(),
			text("Name"),
			lookup("ContactId", "Contact"),
		}},
		{Name: "User", KeyPrefix: "005", Fields: []models.Field{
			idField(),
			text("Username"),
			externalID("FederationIdentifier"),
		}},
		{Name: models.ObjectRecordType, KeyPrefix: "012", Fields: []models.Field{
			idField(),
			{Name: models.FieldDeveloperName, Type: "string", Createable: true},
			{Name: models.FieldSobjectType, Type: "picklist", Createable: true},
		}},
	}
}

// NewStandard returns an org declaring StandardObjects.
func NewStandard(tag byte) *DB {
	d := New(tag)
	for _, s := range StandardObjects() {
		d.AddObject(s)
	}
	return d
}
