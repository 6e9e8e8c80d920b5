package models

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Well-known platform names.
const (
	FieldID            = "Id"
	FieldDeveloperName = "DeveloperName"
	FieldSobjectType   = "SobjectType"
	ObjectRecordType   = "RecordType"
	FieldAttributes    = "attributes"
)

// FieldList accepts either a single field name or a list of names.
type FieldList []string

func (l *FieldList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*l = nil
		} else {
			*l = FieldList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a field name or a list of field names: %w", err)
	}
	*l = many
	return nil
}

func (l *FieldList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if node.Value == "" {
			*l = nil
		} else {
			*l = FieldList{node.Value}
		}
		return nil
	}
	var many []string
	if err := node.Decode(&many); err != nil {
		return fmt.Errorf("expected a field name or a list of field names: %w", err)
	}
	*l = many
	return nil
}

// First returns the first field or "".
func (l FieldList) First() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}

// TreeConfig describes one object type and the child types migrated with it.
// It is never mutated during a run; traversal state lives in Scope.
type TreeConfig struct {
	APIName            string        `json:"apiName" yaml:"apiName"`
	RecordIDs          []string      `json:"recordIds,omitempty" yaml:"recordIds,omitempty"`
	ParentRecordIDs    []string      `json:"parentRecordIds,omitempty" yaml:"parentRecordIds,omitempty"`
	ReferenceField     string        `json:"referenceField,omitempty" yaml:"referenceField,omitempty"`
	ExternalIDField    FieldList     `json:"externalIdField,omitempty" yaml:"externalIdField,omitempty"`
	ExcludedFields     []string      `json:"excludedFields,omitempty" yaml:"excludedFields,omitempty"`
	RequiredReferences []string      `json:"requiredReferences,omitempty" yaml:"requiredReferences,omitempty"`
	Children           []*TreeConfig `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsExcluded reports whether field is listed in ExcludedFields.
func (c *TreeConfig) IsExcluded(field string) bool {
	return contains(c.ExcludedFields, field)
}

// IsRequiredReference reports whether field is listed in RequiredReferences.
func (c *TreeConfig) IsRequiredReference(field string) bool {
	return contains(c.RequiredReferences, field)
}

// ObjectTypes returns every apiName in the tree, pre-order, without duplicates.
func (c *TreeConfig) ObjectTypes() []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(*TreeConfig)
	walk = func(n *TreeConfig) {
		if n == nil {
			return
		}
		if !seen[n.APIName] {
			seen[n.APIName] = true
			out = append(out, n.APIName)
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(c)
	return out
}

// KeyMapping declares an object type that exists on both sides and is matched
// by business key instead of being migrated.
type KeyMapping struct {
	APIName      string   `json:"apiName" yaml:"apiName"`
	KeyFields    []string `json:"keyFields" yaml:"keyFields"`
	FilterField  string   `json:"filterField,omitempty" yaml:"filterField,omitempty"`
	FilterValues []string `json:"filterValues,omitempty" yaml:"filterValues,omitempty"`
}

// DefaultKeyMappings matches record types by developer name per object type.
func DefaultKeyMappings() []KeyMapping {
	return []KeyMapping{{
		APIName:     ObjectRecordType,
		KeyFields:   []string{FieldDeveloperName},
		FilterField: FieldSobjectType,
	}}
}

// ExportConfig is the configuration document driving a run.
type ExportConfig struct {
	TreeConfig              *TreeConfig   `json:"treeConfig" yaml:"treeConfig"`
	DependencyConfig        []*TreeConfig `json:"dependencyConfig,omitempty" yaml:"dependencyConfig,omitempty"`
	DiscoverDependencies    *bool         `json:"discoverDependencies,omitempty" yaml:"discoverDependencies,omitempty"`
	SkipSobjectDependencies []string      `json:"skipSobjectDependencies,omitempty" yaml:"skipSobjectDependencies,omitempty"`
	KeyMappings             []KeyMapping  `json:"keyMappings,omitempty" yaml:"keyMappings,omitempty"`
}

// ShouldDiscover defaults to true when the document does not say otherwise.
func (e *ExportConfig) ShouldDiscover() bool {
	return e.DiscoverDependencies == nil || *e.DiscoverDependencies
}

// EffectiveKeyMappings returns the defaults followed by the declared key
// mappings. A declared mapping replaces the one of the same type.
func (e *ExportConfig) EffectiveKeyMappings() []KeyMapping {
	out := DefaultKeyMappings()
	for _, km := range e.KeyMappings {
		replaced := false
		for i := range out {
			if out[i].APIName == km.APIName {
				out[i] = km
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, km)
		}
	}
	return out
}

// KeyMapped reports whether objectType is matched by business key.
func (e *ExportConfig) KeyMapped(objectType string) bool {
	for _, km := range e.EffectiveKeyMappings() {
		if km.APIName == objectType {
			return true
		}
	}
	return false
}

// LoadMapping parses a JSON export configuration.
func LoadMapping(data []byte) (*ExportConfig, error) {
	var e ExportConfig
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// LoadMappingYAML parses a YAML export configuration.
func LoadMappingYAML(data []byte) (*ExportConfig, error) {
	var e ExportConfig
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
