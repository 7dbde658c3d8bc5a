package stdf

import (
	"fmt"
	"math"
	"reflect"
)

// Bits is a decoded Dn field
type Bits struct {
	Count uint16 // number of valid bits
	Data  []byte // ceil(Count/8) bytes, least significant bit first
}

// Values maps field names to values when building records by hand
type Values map[string]any

// Record is one decoded STDF record. Records are immutable after decoding.
//
// Values holds one entry per schema field in schema order. Go types are
// uint8 (U1, B1, N1), uint16 (U2), uint32 (U4), int8 (I1), int16 (I2),
// int32 (I4), float32 (R4), float64 (R8), string (C1, Cn), []byte (Bn) and
// Bits (Dn). Arrays use the matching slice type, with []uint8 for kxN1.
type Record struct {
	Schema  *Schema
	Values  []any
	Present int   // number of leading fields present in the payload
	Offset  int64 // byte offset of the record header in its source
}

// Name returns the record name, e.g. "PTR"
func (r *Record) Name() string {
	return r.Schema.Name
}

// Kind returns the (REC_TYP, REC_SUB) pair
func (r *Record) Kind() Kind {
	return r.Schema.Kind
}

// Value returns the raw value of the named field, or nil
func (r *Record) Value(name string) any {
	i := r.Schema.FieldIndex(name)
	if i < 0 {
		return nil
	}
	return r.Values[i]
}

// Has reports whether the named field was present in the payload
func (r *Record) Has(name string) bool {
	i := r.Schema.FieldIndex(name)
	return i >= 0 && i < r.Present
}

// Uint returns an unsigned field widened to uint64
func (r *Record) Uint(name string) uint64 {
	switch v := r.Value(name).(type) {
	case uint8:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint32:
		return uint64(v)
	}
	return 0
}

// Int returns a signed field widened to int64
func (r *Record) Int(name string) int64 {
	switch v := r.Value(name).(type) {
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	}
	return int64(r.Uint(name))
}

// Float returns a floating-point field widened to float64
func (r *Record) Float(name string) float64 {
	switch v := r.Value(name).(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return math.NaN()
}

// Text returns a C1 or Cn field
func (r *Record) Text(name string) string {
	s, _ := r.Value(name).(string)
	return s
}

// NewRecord builds a record of the named kind. Fields not listed take their
// zero value. Numeric values are converted to the field's width.
func NewRecord(name string, values Values) (*Record, error) {
	s, ok := SchemaByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown record %q", name)
	}
	for k := range values {
		if s.FieldIndex(k) < 0 {
			return nil, fmt.Errorf("%s has no field %q", name, k)
		}
	}

	r := &Record{Schema: s, Values: make([]any, len(s.Fields)), Present: len(s.Fields)}
	for i, f := range s.Fields {
		v, ok := values[f.Name]
		if !ok {
			r.Values[i] = zeroValue(f)
			continue
		}
		cv, err := convertValue(f, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, f.Name, err)
		}
		r.Values[i] = cv
	}

	// Counts follow the longest array they describe.
	for i, f := range s.Fields {
		if !f.Array {
			continue
		}
		if _, explicit := values[f.CountField]; explicit {
			continue
		}
		ci := s.FieldIndex(f.CountField)
		n := arrayLen(r.Values[i])
		if uint64(n) < r.Uint(f.CountField) {
			continue
		}
		switch s.Fields[ci].Type {
		case U1:
			r.Values[ci] = uint8(n)
		case U2:
			r.Values[ci] = uint16(n)
		}
	}
	return r, nil
}

// MustRecord is NewRecord that panics on error
func MustRecord(name string, values Values) *Record {
	r, err := NewRecord(name, values)
	if err != nil {
		panic(err)
	}
	return r
}

func zeroValue(f Field) any {
	if f.Array {
		switch f.Type {
		case U1, N1, B1:
			return []uint8{}
		case U2:
			return []uint16{}
		case U4:
			return []uint32{}
		case I1:
			return []int8{}
		case I2:
			return []int16{}
		case I4:
			return []int32{}
		case R4:
			return []float32{}
		case R8:
			return []float64{}
		case Cn, C1:
			return []string{}
		}
		return nil
	}
	switch f.Type {
	case U1, B1, N1:
		return uint8(0)
	case U2:
		return uint16(0)
	case U4:
		return uint32(0)
	case I1:
		return int8(0)
	case I2:
		return int16(0)
	case I4:
		return int32(0)
	case R4:
		return float32(0)
	case R8:
		return float64(0)
	case C1, Cn:
		return ""
	case Bn:
		return []byte{}
	case Dn:
		return Bits{}
	}
	return nil
}

func arrayLen(v any) int {
	switch a := v.(type) {
	case []uint8:
		return len(a)
	case []uint16:
		return len(a)
	case []uint32:
		return len(a)
	case []int8:
		return len(a)
	case []int16:
		return len(a)
	case []int32:
		return len(a)
	case []float32:
		return len(a)
	case []float64:
		return len(a)
	case []string:
		return len(a)
	}
	return 0
}

func convertValue(f Field, v any) (any, error) {
	if f.Array {
		z := zeroValue(f)
		if reflect.TypeOf(z) != reflect.TypeOf(v) {
			return nil, fmt.Errorf("want %T, got %T", z, v)
		}
		return v, nil
	}

	switch f.Type {
	case C1, Cn:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		if f.Type == C1 && len(s) > 1 {
			return nil, fmt.Errorf("C1 value %q longer than one byte", s)
		}
		return s, nil
	case Bn:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("want []byte, got %T", v)
		}
		return b, nil
	case Dn:
		b, ok := v.(Bits)
		if !ok {
			return nil, fmt.Errorf("want Bits, got %T", v)
		}
		return b, nil
	case R4, R8:
		var x float64
		switch n := v.(type) {
		case float32:
			x = float64(n)
		case float64:
			x = n
		case int:
			x = float64(n)
		default:
			return nil, fmt.Errorf("want float, got %T", v)
		}
		if f.Type == R4 {
			return float32(x), nil
		}
		return x, nil
	}

	var x int64
	switch n := v.(type) {
	case int:
		x = int64(n)
	case int8:
		x = int64(n)
	case int16:
		x = int64(n)
	case int32:
		x = int64(n)
	case int64:
		x = n
	case uint8:
		x = int64(n)
	case uint16:
		x = int64(n)
	case uint32:
		x = int64(n)
	case uint64:
		x = int64(n)
	default:
		return nil, fmt.Errorf("want integer, got %T", v)
	}

	switch f.Type {
	case U1, B1:
		if x < 0 || x > math.MaxUint8 {
			return nil, fmt.Errorf("value %d out of range", x)
		}
		return uint8(x), nil
	case N1:
		if x < 0 || x > 0x0f {
			return nil, fmt.Errorf("nibble %d out of range", x)
		}
		return uint8(x), nil
	case U2:
		if x < 0 || x > math.MaxUint16 {
			return nil, fmt.Errorf("value %d out of range", x)
		}
		return uint16(x), nil
	case U4:
		if x < 0 || x > math.MaxUint32 {
			return nil, fmt.Errorf("value %d out of range", x)
		}
		return uint32(x), nil
	case I1:
		if x < math.MinInt8 || x > math.MaxInt8 {
			return nil, fmt.Errorf("value %d out of range", x)
		}
		return int8(x), nil
	case I2:
		if x < math.MinInt16 || x > math.MaxInt16 {
			return nil, fmt.Errorf("value %d out of range", x)
		}
		return int16(x), nil
	case I4:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return nil, fmt.Errorf("value %d out of range", x)
		}
		return int32(x), nil
	}
	return nil, fmt.Errorf("unsupported field type %s", f.Type)
}
