package stdf

import (
	"fmt"
	"sort"
)

// FieldType identifies the binary encoding of a single STDF field
type FieldType uint8

// STDF V4 field encodings
const (
	U1 FieldType = iota + 1 // unsigned 1 byte
	U2                      // unsigned 2 bytes
	U4                      // unsigned 4 bytes
	I1                      // signed 1 byte
	I2                      // signed 2 bytes
	I4                      // signed 4 bytes
	R4                      // IEEE float32
	R8                      // IEEE float64
	C1                      // single character
	Cn                      // length-prefixed string
	B1                      // single flag byte
	Bn                      // length-prefixed bytes
	Dn                      // bit-count-prefixed bit field
	N1                      // nibble
)

var fieldTypeNames = map[FieldType]string{
	U1: "U1", U2: "U2", U4: "U4",
	I1: "I1", I2: "I2", I4: "I4",
	R4: "R4", R8: "R8",
	C1: "C1", Cn: "Cn",
	B1: "B1", Bn: "Bn", Dn: "Dn", N1: "N1",
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FieldType(%d)", uint8(t))
}

// Field describes one field of a record schema
type Field struct {
	Name       string
	Type       FieldType
	Array      bool   // kxTYPE field
	CountField string // field holding the element count of an array
}

// Kind is the (REC_TYP, REC_SUB) pair identifying a record schema
type Kind struct {
	Typ uint8
	Sub uint8
}

func (k Kind) String() string {
	return fmt.Sprintf("%d/%d", k.Typ, k.Sub)
}

// Schema is the fixed field layout of one record kind
type Schema struct {
	Name   string
	Kind   Kind
	Fields []Field

	index map[string]int
}

// FieldIndex returns the position of the named field, or -1
func (s *Schema) FieldIndex(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Field returns the named field definition
func (s *Schema) Field(name string) (Field, bool) {
	i := s.FieldIndex(name)
	if i < 0 {
		return Field{}, false
	}
	return s.Fields[i], true
}

func newSchema(name string, typ, sub uint8, fields ...Field) *Schema {
	s := &Schema{
		Name:   name,
		Kind:   Kind{Typ: typ, Sub: sub},
		Fields: fields,
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Array {
			if _, ok := s.index[f.CountField]; !ok {
				panic(fmt.Sprintf("stdf: %s.%s counted by unknown field %s", name, f.Name, f.CountField))
			}
		}
		s.index[f.Name] = i
	}
	return s
}

func scalar(t FieldType, names ...string) []Field {
	fields := make([]Field, len(names))
	for i, n := range names {
		fields[i] = Field{Name: n, Type: t}
	}
	return fields
}

func one(t FieldType, name string) Field {
	return Field{Name: name, Type: t}
}

func array(t FieldType, name, count string) Field {
	return Field{Name: name, Type: t, Array: true, CountField: count}
}

func join(parts ...[]Field) []Field {
	var out []Field
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var (
	registry     = map[Kind]*Schema{}
	registryName = map[string]*Schema{}

	// Known record kinds this package deliberately does not decode.
	unsupported = map[Kind]string{
		{Typ: 1, Sub: 63}:  "PLR",
		{Typ: 50, Sub: 10}: "GDR",
	}
)

func register(s *Schema) {
	registry[s.Kind] = s
	registryName[s.Name] = s
}

// Lookup returns the schema registered for a record kind
func Lookup(typ, sub uint8) (*Schema, bool) {
	s, ok := registry[Kind{Typ: typ, Sub: sub}]
	return s, ok
}

// SchemaByName returns the schema for a record name such as "PTR"
func SchemaByName(name string) (*Schema, bool) {
	s, ok := registryName[name]
	return s, ok
}

// Unsupported reports whether a kind is a known STDF record that is not decoded
func Unsupported(typ, sub uint8) (string, bool) {
	name, ok := unsupported[Kind{Typ: typ, Sub: sub}]
	return name, ok
}

// Schemas returns all registered schemas ordered by kind
func Schemas() []*Schema {
	out := make([]*Schema, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind.Typ != out[j].Kind.Typ {
			return out[i].Kind.Typ < out[j].Kind.Typ
		}
		return out[i].Kind.Sub < out[j].Kind.Sub
	})
	return out
}
