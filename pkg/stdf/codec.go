package stdf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// HeaderSize is the size of the REC_LEN/REC_TYP/REC_SUB record header
const HeaderSize = 4

// MaxPayload is the largest payload a REC_LEN can describe
const MaxPayload = math.MaxUint16

// Errors
var (
	ErrTruncated          = &DecodeError{"record truncated"}
	ErrUnknownRecord      = &DecodeError{"unknown record kind"}
	ErrMalformedRecord    = &DecodeError{"malformed record payload"}
	ErrNotSTDF            = &DecodeError{"not an STDF file"}
	ErrUnsupportedVersion = &DecodeError{"unsupported STDF version"}
)

// DecodeError represents an STDF decoding error
type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string {
	return e.Message
}

// Header is a decoded record header
type Header struct {
	Len uint16 // payload length in bytes
	Typ uint8
	Sub uint8
}

// Kind returns the header's record kind
func (h Header) Kind() Kind {
	return Kind{Typ: h.Typ, Sub: h.Sub}
}

// DetectByteOrder infers the file byte order from the header of the first
// record, which must be a FAR with REC_LEN 2.
func DetectByteOrder(header []byte) (binary.ByteOrder, error) {
	if len(header) < HeaderSize {
		return nil, fmt.Errorf("%w: short FAR header", ErrNotSTDF)
	}
	if header[2] != 0 || header[3] != 10 {
		return nil, fmt.Errorf("%w: first record is %d/%d, want FAR", ErrNotSTDF, header[2], header[3])
	}
	switch {
	case binary.LittleEndian.Uint16(header) == 2:
		return binary.LittleEndian, nil
	case binary.BigEndian.Uint16(header) == 2:
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: FAR length %#04x", ErrNotSTDF, binary.LittleEndian.Uint16(header))
}

// ByteOrderForCPU returns the byte order declared by a FAR CPU_TYPE
func ByteOrderForCPU(cpuType uint8) binary.ByteOrder {
	if cpuType == 1 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// CPUTypeFor returns the FAR CPU_TYPE describing a byte order
func CPUTypeFor(order binary.ByteOrder) uint8 {
	if order == binary.BigEndian {
		return 1
	}
	return 2
}

// RecordCodec encodes and decodes record payloads in one byte order
type RecordCodec struct {
	order binary.ByteOrder
}

// NewRecordCodec creates a codec for the given byte order
func NewRecordCodec(order binary.ByteOrder) *RecordCodec {
	if order == nil {
		order = binary.LittleEndian
	}
	return &RecordCodec{order: order}
}

// ByteOrder returns the codec's byte order
func (c *RecordCodec) ByteOrder() binary.ByteOrder {
	return c.order
}

// DecodeHeader decodes a 4-byte record header
func (c *RecordCodec) DecodeHeader(data []byte) Header {
	return Header{
		Len: c.order.Uint16(data[0:2]),
		Typ: data[2],
		Sub: data[3],
	}
}

// EncodeHeader encodes a record header
func (c *RecordCodec) EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	c.order.PutUint16(buf[0:], h.Len)
	buf[2] = h.Typ
	buf[3] = h.Sub
	return buf
}

// Decode decodes a payload with the given schema. Fields missing from the end
// of the payload take their zero value.
func (c *RecordCodec) Decode(s *Schema, payload []byte) (*Record, error) {
	r := &Record{Schema: s, Values: make([]any, len(s.Fields))}
	cur := &cursor{buf: payload, order: c.order}

	for i, f := range s.Fields {
		if cur.remaining() == 0 {
			break
		}
		var (
			v   any
			err error
		)
		if f.Array {
			v, err = cur.readArray(f, int(r.countOf(f)))
		} else {
			v, err = cur.read(f.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s at byte %d: %v", ErrMalformedRecord, s.Name, f.Name, cur.pos, err)
		}
		r.Values[i] = v
		r.Present = i + 1
	}
	if cur.remaining() > 0 && r.Present == len(s.Fields) {
		return nil, fmt.Errorf("%w: %s has %d trailing bytes", ErrMalformedRecord, s.Name, cur.remaining())
	}

	for i := r.Present; i < len(s.Fields); i++ {
		r.Values[i] = zeroValue(s.Fields[i])
	}
	return r, nil
}

// countOf returns the decoded element count for an array field
func (r *Record) countOf(f Field) uint64 {
	i := r.Schema.FieldIndex(f.CountField)
	if i < 0 || i >= r.Present {
		return 0
	}
	return r.Uint(f.CountField)
}

// Encode serializes a complete record, header included
func (c *RecordCodec) Encode(r *Record) ([]byte, error) {
	return c.EncodePrefix(r, len(r.Schema.Fields))
}

// EncodePrefix serializes a record keeping only its first n fields. STDF
// allows trailing fields to be omitted.
func (c *RecordCodec) EncodePrefix(r *Record, n int) ([]byte, error) {
	payload, err := c.EncodePayload(r, n)
	if err != nil {
		return nil, err
	}
	return c.Frame(r.Schema.Kind, payload)
}

// Frame prepends a header to a raw payload
func (c *RecordCodec) Frame(k Kind, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("payload of %d bytes exceeds REC_LEN", len(payload))
	}
	buf := make([]byte, 0, HeaderSize+len(payload))
	buf = append(buf, c.EncodeHeader(Header{Len: uint16(len(payload)), Typ: k.Typ, Sub: k.Sub})...)
	return append(buf, payload...), nil
}

// EncodePayload serializes the first n fields of a record
func (c *RecordCodec) EncodePayload(r *Record, n int) ([]byte, error) {
	if n > len(r.Schema.Fields) {
		n = len(r.Schema.Fields)
	}
	w := &encoder{order: c.order}
	for i := 0; i < n; i++ {
		f := r.Schema.Fields[i]
		var err error
		if f.Array {
			want := r.Uint(f.CountField)
			if got := uint64(arrayLen(r.Values[i])); got != want {
				return nil, fmt.Errorf("%s.%s has %d elements, %s is %d", r.Schema.Name, f.Name, got, f.CountField, want)
			}
			err = w.writeArray(f, r.Values[i])
		} else {
			err = w.write(f.Type, r.Values[i])
		}
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", r.Schema.Name, f.Name, err)
		}
	}
	return w.buf, nil
}

type cursor struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

func (c *cursor) take(n int) ([]byte, error) {
	if n > c.remaining() {
		return nil, fmt.Errorf("need %d bytes, have %d", n, c.remaining())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) read(t FieldType) (any, error) {
	switch t {
	case U1, B1, N1:
		b, err := c.take(1)
		if err != nil {
			return nil, err
		}
		if t == N1 {
			return b[0] & 0x0f, nil
		}
		return b[0], nil
	case I1:
		b, err := c.take(1)
		if err != nil {
			return nil, err
		}
		return int8(b[0]), nil
	case U2, I2:
		b, err := c.take(2)
		if err != nil {
			return nil, err
		}
		if t == I2 {
			return int16(c.order.Uint16(b)), nil
		}
		return c.order.Uint16(b), nil
	case U4, I4, R4:
		b, err := c.take(4)
		if err != nil {
			return nil, err
		}
		v := c.order.Uint32(b)
		switch t {
		case I4:
			return int32(v), nil
		case R4:
			return math.Float32frombits(v), nil
		}
		return v, nil
	case R8:
		b, err := c.take(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(c.order.Uint64(b)), nil
	case C1:
		b, err := c.take(1)
		if err != nil {
			return nil, err
		}
		if b[0] == ' ' || b[0] == 0 {
			return "", nil
		}
		return string(b), nil
	case Cn, Bn:
		n, err := c.take(1)
		if err != nil {
			return nil, err
		}
		b, err := c.take(int(n[0]))
		if err != nil {
			return nil, err
		}
		if t == Cn {
			return string(b), nil
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	case Dn:
		nb, err := c.take(2)
		if err != nil {
			return nil, err
		}
		count := c.order.Uint16(nb)
		b, err := c.take((int(count) + 7) / 8)
		if err != nil {
			return nil, err
		}
		return Bits{Count: count, Data: append([]byte(nil), b...)}, nil
	}
	return nil, fmt.Errorf("unsupported field type %s", t)
}

func (c *cursor) readArray(f Field, n int) (any, error) {
	if f.Type == N1 {
		b, err := c.take((n + 1) / 2)
		if err != nil {
			return nil, err
		}
		out := make([]uint8, n)
		for i := range out {
			v := b[i/2]
			if i%2 == 1 {
				v >>= 4
			}
			out[i] = v & 0x0f
		}
		return out, nil
	}

	out := zeroValue(f)
	for i := 0; i < n; i++ {
		v, err := c.read(f.Type)
		if err != nil {
			return nil, err
		}
		switch a := out.(type) {
		case []uint8:
			out = append(a, v.(uint8))
		case []uint16:
			out = append(a, v.(uint16))
		case []uint32:
			out = append(a, v.(uint32))
		case []int8:
			out = append(a, v.(int8))
		case []int16:
			out = append(a, v.(int16))
		case []int32:
			out = append(a, v.(int32))
		case []float32:
			out = append(a, v.(float32))
		case []float64:
			out = append(a, v.(float64))
		case []string:
			out = append(a, v.(string))
		default:
			return nil, fmt.Errorf("unsupported array type %s", f.Type)
		}
	}
	return out, nil
}

type encoder struct {
	buf   []byte
	order binary.ByteOrder
	tmp   [8]byte
}

func (w *encoder) put16(x uint16) {
	w.order.PutUint16(w.tmp[:2], x)
	w.buf = append(w.buf, w.tmp[:2]...)
}

func (w *encoder) put32(x uint32) {
	w.order.PutUint32(w.tmp[:4], x)
	w.buf = append(w.buf, w.tmp[:4]...)
}

func (w *encoder) put64(x uint64) {
	w.order.PutUint64(w.tmp[:8], x)
	w.buf = append(w.buf, w.tmp[:8]...)
}

func (w *encoder) write(t FieldType, v any) error {
	switch t {
	case U1, B1, N1:
		x, ok := v.(uint8)
		if !ok {
			return fmt.Errorf("want uint8, got %T", v)
		}
		w.buf = append(w.buf, x)
	case I1:
		x, ok := v.(int8)
		if !ok {
			return fmt.Errorf("want int8, got %T", v)
		}
		w.buf = append(w.buf, byte(x))
	case U2:
		x, ok := v.(uint16)
		if !ok {
			return fmt.Errorf("want uint16, got %T", v)
		}
		w.put16(x)
	case I2:
		x, ok := v.(int16)
		if !ok {
			return fmt.Errorf("want int16, got %T", v)
		}
		w.put16(uint16(x))
	case U4:
		x, ok := v.(uint32)
		if !ok {
			return fmt.Errorf("want uint32, got %T", v)
		}
		w.put32(x)
	case I4:
		x, ok := v.(int32)
		if !ok {
			return fmt.Errorf("want int32, got %T", v)
		}
		w.put32(uint32(x))
	case R4:
		x, ok := v.(float32)
		if !ok {
			return fmt.Errorf("want float32, got %T", v)
		}
		w.put32(math.Float32bits(x))
	case R8:
		x, ok := v.(float64)
		if !ok {
			return fmt.Errorf("want float64, got %T", v)
		}
		w.put64(math.Float64bits(x))
	case C1:
		x, ok := v.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", v)
		}
		if x == "" {
			x = " "
		}
		w.buf = append(w.buf, x[0])
	case Cn, Bn:
		var b []byte
		switch x := v.(type) {
		case string:
			b = []byte(x)
		case []byte:
			b = x
		default:
			return fmt.Errorf("want string or []byte, got %T", v)
		}
		if len(b) > math.MaxUint8 {
			return fmt.Errorf("%d bytes exceed the 255 byte limit", len(b))
		}
		w.buf = append(w.buf, byte(len(b)))
		w.buf = append(w.buf, b...)
	case Dn:
		x, ok := v.(Bits)
		if !ok {
			return fmt.Errorf("want Bits, got %T", v)
		}
		if need := (int(x.Count) + 7) / 8; need != len(x.Data) {
			return fmt.Errorf("%d bits need %d bytes, have %d", x.Count, need, len(x.Data))
		}
		w.put16(x.Count)
		w.buf = append(w.buf, x.Data...)
	default:
		return fmt.Errorf("unsupported field type %s", t)
	}
	return nil
}

func (w *encoder) writeArray(f Field, v any) error {
	if f.Type == N1 {
		nibbles, ok := v.([]uint8)
		if !ok {
			return fmt.Errorf("want []uint8, got %T", v)
		}
		packed := make([]byte, (len(nibbles)+1)/2)
		for i, n := range nibbles {
			if i%2 == 1 {
				packed[i/2] |= (n & 0x0f) << 4
			} else {
				packed[i/2] = n & 0x0f
			}
		}
		w.buf = append(w.buf, packed...)
		return nil
	}

	rv := arrayValues(v)
	for _, e := range rv {
		if err := w.write(f.Type, e); err != nil {
			return err
		}
	}
	return nil
}

func arrayValues(v any) []any {
	var out []any
	switch a := v.(type) {
	case []uint8:
		for _, e := range a {
			out = append(out, e)
		}
	case []uint16:
		for _, e := range a {
			out = append(out, e)
		}
	case []uint32:
		for _, e := range a {
			out = append(out, e)
		}
	case []int8:
		for _, e := range a {
			out = append(out, e)
		}
	case []int16:
		for _, e := range a {
			out = append(out, e)
		}
	case []int32:
		for _, e := range a {
			out = append(out, e)
		}
	case []float32:
		for _, e := range a {
			out = append(out, e)
		}
	case []float64:
		for _, e := range a {
			out = append(out, e)
		}
	case []string:
		for _, e := range a {
			out = append(out, e)
		}
	}
	return out
}
