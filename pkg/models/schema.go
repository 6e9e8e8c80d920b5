package models

// Field types reported by describe.
const (
	FieldTypeID        = "id"
	FieldTypeReference = "reference"
)

// Field is the metadata of one field of an object type.
type Field struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Createable  bool     `json:"createable"`
	Updateable  bool     `json:"updateable"`
	ReferenceTo []string `json:"referenceTo,omitempty"`
	ExternalID  bool     `json:"externalId"`
	Unique      bool     `json:"unique"`
}

func (f Field) IsID() bool        { return f.Type == FieldTypeID || f.Name == FieldID }
func (f Field) IsReference() bool { return f.Type == FieldTypeReference }

// IsPolymorphic reports whether the field may point to more than one type.
func (f Field) IsPolymorphic() bool { return f.IsReference() && len(f.ReferenceTo) > 1 }

// ObjectSchema is the describe result of one object type.
type ObjectSchema struct {
	Name      string  `json:"name"`
	KeyPrefix string  `json:"keyPrefix,omitempty"`
	Fields    []Field `json:"fields"`

	byName map[string]int
}

// Field looks up a field by name.
func (s *ObjectSchema) Field(name string) (Field, bool) {
	if s.byName == nil || len(s.byName) != len(s.Fields) {
		s.byName = make(map[string]int, len(s.Fields))
		for i, f := range s.Fields {
			s.byName[f.Name] = i
		}
	}
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// IDField returns the name of the identifier field.
func (s *ObjectSchema) IDField() string {
	for _, f := range s.Fields {
		if f.Type == FieldTypeID {
			return f.Name
		}
	}
	return FieldID
}

// ReferenceFields returns the names of every reference field plus the identifier.
func (s *ObjectSchema) ReferenceFields() map[string]bool {
	out := make(map[string]bool)
	for _, f := range s.Fields {
		if f.IsReference() || f.IsID() {
			out[f.Name] = true
		}
	}
	return out
}

// ExternalIDFields returns fields usable as business keys (external id and unique).
func (s *ObjectSchema) ExternalIDFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.ExternalID && f.Unique {
			out = append(out, f.Name)
		}
	}
	return out
}

// ObjectType is one entry of the global type registry.
type ObjectType struct {
	Name      string `json:"name"`
	KeyPrefix string `json:"keyPrefix"`
}
