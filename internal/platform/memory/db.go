// Package memory is an in-process org. It understands the queries built by
// package query and enforces the write rules the engine depends on: ids are
// assigned on insert, non-creatable fields are rejected, and reference values
// must point at existing records.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/BartekS5/treemigrate/pkg/models"
)

// Call records one write against the org.
type Call struct {
	Op         string
	ObjectType string
	KeyField   string
	Records    []*models.Record
	IDs        []string
}

type rejection struct {
	objectType string
	match      func(*models.Record) bool
	message    string
}

type DB struct {
	tag      byte
	schemas  map[string]*models.ObjectSchema
	tables   map[string][]*models.Record
	seq      int
	calls    []Call
	queries  []string
	rejects  []rejection
	failures map[string]error
}

// New returns an empty org. tag distinguishes its ids from other orgs.
func New(tag byte) *DB {
	return &DB{
		tag:      tag,
		schemas:  make(map[string]*models.ObjectSchema),
		tables:   make(map[string][]*models.Record),
		failures: make(map[string]error),
	}
}

// AddObject declares an object type.
func (d *DB) AddObject(s *models.ObjectSchema) {
	d.schemas[s.Name] = s
}

// NewID allocates an id with the key prefix of objectType.
func (d *DB) NewID(objectType string) string {
	d.seq++
	prefix := "000"
	if s, ok := d.schemas[objectType]; ok && s.KeyPrefix != "" {
		prefix = s.KeyPrefix
	}
	return fmt.Sprintf("%s%c%011d", prefix, d.tag, d.seq)
}

// Seed stores records as they are. Records without an Id get one.
func (d *DB) Seed(objectType string, records ...*models.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		c := r.Clone()
		if c.ID() == "" {
			c.Set(models.FieldID, models.String(d.NewID(objectType)))
		}
		ids[i] = c.ID()
		d.tables[objectType] = append(d.tables[objectType], c)
	}
	return ids
}

// Records returns copies of every stored record of objectType.
func (d *DB) Records(objectType string) []*models.Record {
	return models.CloneAll(d.tables[objectType])
}

// Find returns a copy of the stored record with id.
func (d *DB) Find(objectType, id string) (*models.Record, bool) {
	for _, r := range d.tables[objectType] {
		if r.ID() == id {
			return r.Clone(), true
		}
	}
	return nil, false
}

// Calls returns the writes made with op ("insert", "update", "upsert",
// "delete"), or every write when op is empty.
func (d *DB) Calls(op string) []Call {
	var out []Call
	for _, c := range d.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Queries returns every query run against the org.
func (d *DB) Queries() []string {
	return append([]string(nil), d.queries...)
}

// Reject makes writes of matching rows fail with message.
func (d *DB) Reject(objectType string, match func(*models.Record) bool, message string) {
	d.rejects = append(d.rejects, rejection{objectType: objectType, match: match, message: message})
}

// FailWith makes every op call on objectType return err.
func (d *DB) FailWith(op, objectType string, err error) {
	d.failures[op+":"+objectType] = err
}

func (d *DB) failure(op, objectType string) error {
	if err, ok := d.failures[op+":"+objectType]; ok {
		return err
	}
	return nil
}

func (d *DB) Describe(_ context.Context, objectType string) (*models.ObjectSchema, error) {
	if err := d.failure("describe", objectType); err != nil {
		return nil, err
	}
	s, ok := d.schemas[objectType]
	if !ok {
		return nil, fmt.Errorf("NOT_FOUND: sObject type '%s' is not supported", objectType)
	}
	return s, nil
}

func (d *DB) DescribeGlobal(_ context.Context) ([]models.ObjectType, error) {
	if err := d.failure("describeGlobal", ""); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(d.schemas))
	for n := range d.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]models.ObjectType, 0, len(names))
	for _, n := range names {
		out = append(out, models.ObjectType{Name: n, KeyPrefix: d.schemas[n].KeyPrefix})
	}
	return out, nil
}

func (d *DB) Query(_ context.Context, q string) ([]*models.Record, error) {
	d.queries = append(d.queries, q)
	pq, err := parse(q)
	if err != nil {
		return nil, err
	}
	if err := d.failure("query", pq.objectType); err != nil {
		return nil, err
	}
	if _, ok := d.schemas[pq.objectType]; !ok {
		return nil, fmt.Errorf("INVALID_TYPE: sObject type '%s' is not supported", pq.objectType)
	}
	var out []*models.Record
	for _, r := range d.tables[pq.objectType] {
		if !pq.matches(r) {
			continue
		}
		row := models.NewRecord()
		row.Set(models.FieldAttributes, attributes(pq.objectType, r.ID()))
		for _, f := range pq.fields {
			if v, ok := r.Get(f); ok {
				row.Set(f, v)
			} else {
				row.Set(f, models.Null())
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (d *DB) Insert(_ context.Context, objectType string, rows []models.Row) ([]models.WriteResult, error) {
	d.record("insert", objectType, "", rows)
	if err := d.failure("insert", objectType); err != nil {
		return nil, err
	}
	results := make([]models.WriteResult, len(rows))
	for i, row := range rows {
		results[i] = d.create(objectType, row)
	}
	return results, nil
}

func (d *DB) Update(_ context.Context, objectType string, rows []models.Row) ([]models.WriteResult, error) {
	d.record("update", objectType, "", rows)
	if err := d.failure("update", objectType); err != nil {
		return nil, err
	}
	results := make([]models.WriteResult, len(rows))
	for i, row := range rows {
		results[i] = d.modify(objectType, row, row.Record.ID())
	}
	return results, nil
}

func (d *DB) Upsert(_ context.Context, objectType string, rows []models.Row, keyField string, allOrNone bool) ([]models.WriteResult, error) {
	d.record("upsert", objectType, keyField, rows)
	if err := d.failure("upsert", objectType); err != nil {
		return nil, err
	}
	results := make([]models.WriteResult, len(rows))
	for i, row := range rows {
		key, ok := row.Record.Get(keyField)
		if !ok || key.IsNull() {
			results[i] = failed(row.Key, "MISSING_ARGUMENT", keyField+" not specified", keyField)
			continue
		}
		if existing := d.findBy(objectType, keyField, key); existing != nil {
			results[i] = d.modify(objectType, row, existing.ID())
		} else {
			results[i] = d.create(objectType, row)
		}
	}
	if allOrNone {
		for _, r := range results {
			if !r.Success {
				return nil, fmt.Errorf("ALL_OR_NONE_OPERATION_ROLLED_BACK")
			}
		}
	}
	return results, nil
}

func (d *DB) Delete(_ context.Context, objectType string, ids []string) ([]models.WriteResult, error) {
	d.calls = append(d.calls, Call{Op: "delete", ObjectType: objectType, IDs: append([]string(nil), ids...)})
	if err := d.failure("delete", objectType); err != nil {
		return nil, err
	}
	results := make([]models.WriteResult, len(ids))
	for i, id := range ids {
		table := d.tables[objectType]
		idx := -1
		for j, r := range table {
			if r.ID() == id {
				idx = j
				break
			}
		}
		if idx < 0 {
			results[i] = failed(id, "ENTITY_IS_DELETED", "entity is deleted")
			continue
		}
		d.tables[objectType] = append(table[:idx], table[idx+1:]...)
		results[i] = models.WriteResult{Key: id, Success: true, ID: id}
	}
	return results, nil
}

func (d *DB) record(op, objectType, keyField string, rows []models.Row) {
	c := Call{Op: op, ObjectType: objectType, KeyField: keyField}
	for _, r := range rows {
		c.Records = append(c.Records, r.Record.Clone())
	}
	d.calls = append(d.calls, c)
}

func (d *DB) create(objectType string, row models.Row) models.WriteResult {
	if res, ok := d.validate(objectType, row, func(f models.Field) bool { return f.Createable }); !ok {
		return res
	}
	if row.Record.Has(models.FieldID) {
		return failed(row.Key, "INVALID_FIELD_FOR_INSERT_UPDATE", "cannot specify Id in an insert call", models.FieldID)
	}
	c := row.Record.Clone()
	id := d.NewID(objectType)
	c.Set(models.FieldID, models.String(id))
	d.tables[objectType] = append(d.tables[objectType], c)
	return models.WriteResult{Key: row.Key, Success: true, ID: id, Created: true}
}

func (d *DB) modify(objectType string, row models.Row, id string) models.WriteResult {
	if res, ok := d.validate(objectType, row, func(f models.Field) bool { return f.Updateable || f.IsID() }); !ok {
		return res
	}
	for _, r := range d.tables[objectType] {
		if r.ID() != id {
			continue
		}
		for _, f := range row.Record.Fields() {
			if f == models.FieldID {
				continue
			}
			v, _ := row.Record.Get(f)
			r.Set(f, v)
		}
		return models.WriteResult{Key: row.Key, Success: true, ID: id}
	}
	return failed(row.Key, "INVALID_ID_FIELD", "invalid id: "+id, models.FieldID)
}

func (d *DB) validate(objectType string, row models.Row, allowed func(models.Field) bool) (models.WriteResult, bool) {
	s, ok := d.schemas[objectType]
	if !ok {
		return failed(row.Key, "INVALID_TYPE", "unknown type "+objectType), false
	}
	for _, rj := range d.rejects {
		if rj.objectType == objectType && rj.match(row.Record) {
			return failed(row.Key, "FIELD_CUSTOM_VALIDATION_EXCEPTION", rj.message), false
		}
	}
	for _, name := range row.Record.Fields() {
		f, ok := s.Field(name)
		if !ok || !allowed(f) {
			return failed(row.Key, "INVALID_FIELD_FOR_INSERT_UPDATE", "unable to write field "+name, name), false
		}
		v, _ := row.Record.Get(name)
		if v.IsNull() {
			return failed(row.Key, "INVALID_FIELD", "explicit null for "+name, name), false
		}
		if f.IsReference() {
			ref, _ := v.Str()
			if !d.exists(ref) {
				return failed(row.Key, "INVALID_CROSS_REFERENCE_KEY", "invalid cross reference id: "+ref, name), false
			}
		}
	}
	return models.WriteResult{}, true
}

func (d *DB) exists(id string) bool {
	for _, table := range d.tables {
		for _, r := range table {
			if r.ID() == id {
				return true
			}
		}
	}
	return false
}

func (d *DB) findBy(objectType, field string, v models.Value) *models.Record {
	for _, r := range d.tables[objectType] {
		if got, ok := r.Get(field); ok && got.Equal(v) {
			return r
		}
	}
	return nil
}

func failed(key, code, message string, fields ...string) models.WriteResult {
	return models.WriteResult{
		Key:    key,
		Errors: []models.WriteError{{StatusCode: code, Message: message, Fields: fields}},
	}
}

func attributes(objectType, id string) models.Value {
	return models.Object([]byte(fmt.Sprintf(`{"type":%q,"url":%q}`, objectType,
		"/services/data/v62.0/sobjects/"+objectType+"/"+id)))
}

// String lists the stored records, for test failure output.
func (d *DB) String() string {
	var sb strings.Builder
	for name, table := range d.tables {
		fmt.Fprintf(&sb, "%s: %d records\n", name, len(table))
	}
	return sb.String()
}
