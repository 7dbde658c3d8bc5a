package dataset

import (
	"fmt"

	"github.com/stdf2h5/stdf2h5/pkg/stdf"
)

// Extra record table columns
const (
	BitsSuffix   = "_BITS"      // bit count of a Dn field
	OffsetColumn = "REC_OFFSET" // byte offset of the record in the source file
)

// Builder accumulates decoded records into one table per record kind
type Builder struct {
	ds   *Dataset
	rows int
}

// NewBuilder creates a builder over an empty dataset
func NewBuilder() *Builder {
	return &Builder{ds: New()}
}

// Append adds rec as one row of its kind's table, creating the table from
// the kind's schema on first use. A failed append leaves every column
// untouched.
func (b *Builder) Append(rec *stdf.Record) error {
	t := b.ds.Table(rec.Name())
	if t == nil {
		t = tableFor(rec.Schema)
		if err := b.ds.AddTable(t); err != nil {
			return err
		}
	}

	type cell struct {
		col    *Column
		value  any
		extend bool
	}
	cells := make([]cell, 0, len(rec.Schema.Fields)+1)

	for i, f := range rec.Schema.Fields {
		v := rec.Values[i]
		switch {
		case f.Array:
			n := int(rec.Uint(f.CountField))
			cells = append(cells, cell{col: t.Ragged[f.Name], value: padArray(v, n), extend: true})
		case f.Type == stdf.Dn:
			bits, ok := v.(stdf.Bits)
			if !ok {
				return fmt.Errorf("%s.%s: want stdf.Bits, got %T", rec.Name(), f.Name, v)
			}
			cells = append(cells,
				cell{col: t.Column(f.Name), value: string(bits.Data)},
				cell{col: t.Column(f.Name + BitsSuffix), value: bits.Count})
		case f.Type == stdf.Bn:
			raw, ok := v.([]byte)
			if !ok {
				return fmt.Errorf("%s.%s: want []byte, got %T", rec.Name(), f.Name, v)
			}
			cells = append(cells, cell{col: t.Column(f.Name), value: string(raw)})
		default:
			cells = append(cells, cell{col: t.Column(f.Name), value: v})
		}
	}
	cells = append(cells, cell{col: t.Column(OffsetColumn), value: rec.Offset})

	// Check every cell before touching storage.
	for _, c := range cells {
		probe := NewColumn(c.col.Name, c.col.Type)
		var err error
		if c.extend {
			err = probe.Extend(c.value)
		} else {
			err = probe.Append(c.value)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", rec.Name(), err)
		}
	}

	for _, c := range cells {
		if c.extend {
			_ = c.col.Extend(c.value)
		} else {
			_ = c.col.Append(c.value)
		}
	}
	b.rows++
	return nil
}

// Dataset returns the dataset built so far
func (b *Builder) Dataset() *Dataset {
	return b.ds
}

// Rows returns the total number of rows appended
func (b *Builder) Rows() int {
	return b.rows
}

func tableFor(s *stdf.Schema) *Table {
	t := NewTable(s.Name)
	for _, f := range s.Fields {
		switch {
		case f.Array:
			t.AddRagged(f.Name, ElemTypeFor(f.Type), f.CountField)
		case f.Type == stdf.Dn:
			t.AddColumn(f.Name, String)
			t.AddColumn(f.Name+BitsSuffix, Uint16)
		default:
			t.AddColumn(f.Name, ElemTypeFor(f.Type))
		}
	}
	t.AddColumn(OffsetColumn, Int64)
	return t
}
