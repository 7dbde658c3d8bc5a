package dataset

import (
	"fmt"

	"github.com/stdf2h5/stdf2h5/pkg/stdf"
)

// ElemType is the element type of a column
type ElemType uint8

// Column element types
const (
	Uint8 ElemType = iota + 1
	Uint16
	Uint32
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	String
)

var elemTypeNames = map[ElemType]string{
	Uint8: "uint8", Uint16: "uint16", Uint32: "uint32",
	Int8: "int8", Int16: "int16", Int32: "int32", Int64: "int64",
	Float32: "float32", Float64: "float64", String: "string",
}

func (t ElemType) String() string {
	if name, ok := elemTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ElemType(%d)", uint8(t))
}

// ElemTypeFor returns the column type used to store an STDF field. Bn and Dn
// payloads are kept as byte strings.
func ElemTypeFor(t stdf.FieldType) ElemType {
	switch t {
	case stdf.U1, stdf.B1, stdf.N1:
		return Uint8
	case stdf.U2:
		return Uint16
	case stdf.U4:
		return Uint32
	case stdf.I1:
		return Int8
	case stdf.I2:
		return Int16
	case stdf.I4:
		return Int32
	case stdf.R4:
		return Float32
	case stdf.R8:
		return Float64
	}
	return String
}

// Column is an ordered, fixed-type sequence of values
type Column struct {
	Name string
	Type ElemType
	Data any // []uint8, []uint16, []uint32, []int8, []int16, []int32, []int64, []float32, []float64 or []string
}

// NewColumn creates an empty column
func NewColumn(name string, t ElemType) *Column {
	c := &Column{Name: name, Type: t}
	switch t {
	case Uint8:
		c.Data = []uint8{}
	case Uint16:
		c.Data = []uint16{}
	case Uint32:
		c.Data = []uint32{}
	case Int8:
		c.Data = []int8{}
	case Int16:
		c.Data = []int16{}
	case Int32:
		c.Data = []int32{}
	case Int64:
		c.Data = []int64{}
	case Float32:
		c.Data = []float32{}
	case Float64:
		c.Data = []float64{}
	default:
		c.Type = String
		c.Data = []string{}
	}
	return c
}

// Len returns the number of values in the column
func (c *Column) Len() int {
	switch d := c.Data.(type) {
	case []uint8:
		return len(d)
	case []uint16:
		return len(d)
	case []uint32:
		return len(d)
	case []int8:
		return len(d)
	case []int16:
		return len(d)
	case []int32:
		return len(d)
	case []int64:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []string:
		return len(d)
	}
	return 0
}

// Append adds one value, which must have the column's Go type
func (c *Column) Append(v any) error {
	switch d := c.Data.(type) {
	case []uint8:
		return appendAs(c, d, v)
	case []uint16:
		return appendAs(c, d, v)
	case []uint32:
		return appendAs(c, d, v)
	case []int8:
		return appendAs(c, d, v)
	case []int16:
		return appendAs(c, d, v)
	case []int32:
		return appendAs(c, d, v)
	case []int64:
		return appendAs(c, d, v)
	case []float32:
		return appendAs(c, d, v)
	case []float64:
		return appendAs(c, d, v)
	case []string:
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		return appendAs(c, d, v)
	}
	return fmt.Errorf("column %s: unsupported storage %T", c.Name, c.Data)
}

// Extend adds every element of a slice of the column's Go type
func (c *Column) Extend(v any) error {
	switch d := c.Data.(type) {
	case []uint8:
		return extendAs(c, d, v)
	case []uint16:
		return extendAs(c, d, v)
	case []uint32:
		return extendAs(c, d, v)
	case []int8:
		return extendAs(c, d, v)
	case []int16:
		return extendAs(c, d, v)
	case []int32:
		return extendAs(c, d, v)
	case []int64:
		return extendAs(c, d, v)
	case []float32:
		return extendAs(c, d, v)
	case []float64:
		return extendAs(c, d, v)
	case []string:
		return extendAs(c, d, v)
	}
	return fmt.Errorf("column %s: unsupported storage %T", c.Name, c.Data)
}

// At returns the value at row i
func (c *Column) At(i int) any {
	switch d := c.Data.(type) {
	case []uint8:
		return d[i]
	case []uint16:
		return d[i]
	case []uint32:
		return d[i]
	case []int8:
		return d[i]
	case []int16:
		return d[i]
	case []int32:
		return d[i]
	case []int64:
		return d[i]
	case []float32:
		return d[i]
	case []float64:
		return d[i]
	case []string:
		return d[i]
	}
	return nil
}

// Values returns the column storage as a typed slice, or nil when T does not
// match the column type.
func Values[T any](c *Column) []T {
	if c == nil {
		return nil
	}
	v, _ := c.Data.([]T)
	return v
}

func appendAs[T any](c *Column, d []T, v any) error {
	x, ok := v.(T)
	if !ok {
		return fmt.Errorf("column %s: want %T, got %T", c.Name, x, v)
	}
	c.Data = append(d, x)
	return nil
}

func extendAs[T any](c *Column, d []T, v any) error {
	x, ok := v.([]T)
	if !ok {
		return fmt.Errorf("column %s: want %T, got %T", c.Name, x, v)
	}
	c.Data = append(d, x...)
	return nil
}

func pad[T any](s []T, n int) []T {
	if len(s) >= n {
		return s
	}
	out := make([]T, n)
	copy(out, s)
	return out
}

// padArray extends a decoded array with zero values up to n elements
func padArray(v any, n int) any {
	switch a := v.(type) {
	case []uint8:
		return pad(a, n)
	case []uint16:
		return pad(a, n)
	case []uint32:
		return pad(a, n)
	case []int8:
		return pad(a, n)
	case []int16:
		return pad(a, n)
	case []int32:
		return pad(a, n)
	case []int64:
		return pad(a, n)
	case []float32:
		return pad(a, n)
	case []float64:
		return pad(a, n)
	case []string:
		return pad(a, n)
	}
	return v
}
