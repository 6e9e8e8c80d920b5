package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DependencyMap records, per (referencing type, field), the referenced types
// and their ids. Iteration follows discovery order.
type DependencyMap struct {
	keys    []string
	targets map[string][]string
	types   []string
	ids     map[string][]string
	seen    map[string]bool
}

func NewDependencyMap() *DependencyMap {
	return &DependencyMap{
		targets: make(map[string][]string),
		ids:     make(map[string][]string),
		seen:    make(map[string]bool),
	}
}

// Add notes that sourceType.field holds id, a record of targetType.
func (d *DependencyMap) Add(sourceType, field, targetType, id string) {
	key := sourceType + "." + field
	if _, ok := d.targets[key]; !ok {
		d.keys = append(d.keys, key)
	}
	if !d.seen[key+"->"+targetType] {
		d.seen[key+"->"+targetType] = true
		d.targets[key] = append(d.targets[key], targetType)
	}
	if _, ok := d.ids[targetType]; !ok {
		d.types = append(d.types, targetType)
		d.ids[targetType] = nil
	}
	if !d.seen[targetType+"#"+id] {
		d.seen[targetType+"#"+id] = true
		d.ids[targetType] = append(d.ids[targetType], id)
	}
}

// Fields returns the "Type.Field" keys in discovery order.
func (d *DependencyMap) Fields() []string {
	return append([]string(nil), d.keys...)
}

// TargetsOf returns the referenced types seen through key.
func (d *DependencyMap) TargetsOf(key string) []string {
	return append([]string(nil), d.targets[key]...)
}

// Types returns the referenced types in discovery order.
func (d *DependencyMap) Types() []string {
	return append([]string(nil), d.types...)
}

// IDs returns the referenced ids of objectType.
func (d *DependencyMap) IDs(objectType string) []string {
	return append([]string(nil), d.ids[objectType]...)
}

func (d *DependencyMap) Len() int { return len(d.types) }

// MarshalJSON renders the field -> types view.
func (d *DependencyMap) MarshalJSON() ([]byte, error) {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		key, _ := json.Marshal(k)
		vals, err := json.Marshal(d.targets[k])
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "%s:%s", key, vals)
	}
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}
