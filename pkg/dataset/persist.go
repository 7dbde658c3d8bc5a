package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/robert-malhotra/go-hdf5/hdf5"
)

// PartialSuffix is appended to the output path while it is being written
const PartialSuffix = ".partial"

// Column dataset attributes
const (
	attrRows        = "ROWS"
	attrIndex       = "INDEX"
	attrStringWidth = "STRING_WIDTH"
	attrCountField  = "COUNT_FIELD"
	summaryDataset  = "summary"
)

// go-hdf5 pads group object headers to a minimum chunk with a NIL message and
// overruns the header buffer when the gap left is shorter than that message.
// These mirror its header arithmetic for 8-byte file offsets.
const (
	groupHeaderBase = 28  // link info and group info messages
	linkOverhead    = 15  // message prefix, version, flags, name length, address
	groupChunkMin   = 120 // object.MinGroupChunkSize
	nilMessageSize  = 4
)

// PersistOptions tunes the HDF5 layout
type PersistOptions struct {
	ChunkRows   int // rows per chunk, 0 writes contiguous datasets
	Compression int // deflate level 0-9, only used with chunking
}

// Persist writes ds to path as HDF5. The file is built under a temporary name
// and renamed into place only once it is complete, so a failed call never
// leaves a file at path.
func Persist(ds *Dataset, path string, opts PersistOptions) (err error) {
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("invalid dataset: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	partial := path + PartialSuffix
	_ = os.Remove(partial)

	f, err := hdf5.Create(partial)
	if err != nil {
		return fmt.Errorf("create %s: %w", partial, err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write %s: hdf5 writer panic: %v", partial, r)
		}
		if err != nil {
			discard(f)
			os.Remove(partial)
		}
	}()

	tables := map[string]*Table{}
	var names []string
	for _, t := range ds.Tables {
		if t.Rows() == 0 {
			continue
		}
		name := strings.TrimPrefix(t.Path(), "/")
		tables[name] = t
		names = append(names, name)
	}
	names = append(names, summaryDataset)

	root := f.Root()
	for _, name := range planLinks(names) {
		t, ok := tables[name]
		switch {
		case ok:
			err = writeTable(root, name, t, opts)
		case name == summaryDataset:
			err = writeSummary(root, ds.Attrs)
		default:
			_, err = root.CreateGroup(name)
		}
		if err != nil {
			return err
		}
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", partial, err)
	}
	if err = os.Rename(partial, path); err != nil {
		return fmt.Errorf("rename %s: %w", partial, err)
	}
	return nil
}

// discard closes a file that failed part way. The writer may be in a state
// where Close panics too.
func discard(f *hdf5.File) {
	defer func() { _ = recover() }()
	_ = f.Close()
}

// writeTable writes t as a first-level group. Ragged columns sit next to the
// scalar ones and carry a COUNT_FIELD attribute.
func writeTable(root *hdf5.Group, name string, t *Table, opts PersistOptions) error {
	g, err := root.CreateGroup(name)
	if err != nil {
		return fmt.Errorf("create group %s: %w", t.Path(), err)
	}

	writers := map[string]func() error{}
	var names []string
	for i, c := range t.Columns {
		writers[c.Name] = func() error { return writeColumn(g, c, i, opts) }
		names = append(names, c.Name)
	}
	for i, rname := range t.RaggedNames() {
		c := t.Ragged[rname]
		if c.Len() == 0 {
			continue
		}
		count := t.CountField(rname)
		writers[rname] = func() error {
			return writeColumn(g, c, i, opts, hdf5.WithAttribute(attrCountField, count))
		}
		names = append(names, rname)
	}

	for _, n := range planLinks(names) {
		write, ok := writers[n]
		if !ok {
			if _, err := g.CreateGroup(n); err != nil {
				return fmt.Errorf("create group %s/%s: %w", t.Path(), n, err)
			}
			continue
		}
		if err := write(); err != nil {
			return fmt.Errorf("write %s/%s: %w", t.Path(), n, err)
		}
	}
	return nil
}

// planLinks orders the links of one group so that no intermediate header
// falls short of the padded chunk by less than a NIL message. When every
// remaining link would, an empty spacer group named with underscores is
// inserted to carry the header past the chunk minimum.
func planLinks(names []string) []string {
	rest := append([]string(nil), names...)
	out := make([]string, 0, len(names)+1)
	size := groupHeaderBase
	for len(rest) > 0 {
		pick := -1
		for i, name := range rest {
			if !unsafeHeader(size + linkOverhead + len(name)) {
				pick = i
				break
			}
		}
		if pick < 0 {
			n := max(groupChunkMin-size-linkOverhead, 1)
			out = append(out, strings.Repeat("_", n))
			size += linkOverhead + n
			continue
		}
		out = append(out, rest[pick])
		size += linkOverhead + len(rest[pick])
		rest = append(rest[:pick], rest[pick+1:]...)
	}
	return out
}

func unsafeHeader(size int) bool {
	gap := groupChunkMin - size
	return gap > 0 && gap < nilMessageSize
}

func writeColumn(g *hdf5.Group, c *Column, index int, opts PersistOptions, extra ...hdf5.DatasetOption) error {
	options := []hdf5.DatasetOption{
		hdf5.WithAttribute(attrRows, int64(c.Len())),
		hdf5.WithAttribute(attrIndex, int64(index)),
	}
	options = append(options, extra...)

	data := c.Data
	width := 1
	if strs, ok := c.Data.([]string); ok {
		data, width = flattenStrings(strs)
		options = append(options, hdf5.WithAttribute(attrStringWidth, int64(width)))
	}

	if opts.ChunkRows > 0 {
		chunk := uint64(opts.ChunkRows * width)
		if n := uint64(c.Len() * width); chunk > n {
			chunk = n
		}
		options = append(options, hdf5.WithChunks(chunk))
		if opts.Compression > 0 {
			options = append(options, hdf5.WithCompression(opts.Compression))
		}
	}

	_, err := g.CreateDataset(c.Name, data, options...)
	return err
}

// flattenStrings packs strings into a row-major NUL-padded byte matrix
func flattenStrings(strs []string) ([]uint8, int) {
	width := 1
	for _, s := range strs {
		if len(s) > width {
			width = len(s)
		}
	}
	out := make([]uint8, len(strs)*width)
	for i, s := range strs {
		copy(out[i*width:], s)
	}
	return out, width
}

func writeSummary(root *hdf5.Group, attrs Attrs) error {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	var options []hdf5.DatasetOption
	for _, name := range names {
		switch v := attrs[name].(type) {
		case int64, string:
			options = append(options, hdf5.WithAttribute(name, v))
		default:
			return fmt.Errorf("attribute %s: unsupported type %T", name, v)
		}
	}

	if _, err := root.CreateDataset(summaryDataset, []int64{attrs.Int(AttrFinishT)}, options...); err != nil {
		return fmt.Errorf("write /%s: %w", summaryDataset, err)
	}
	return nil
}

// Load reads a file written by Persist back into memory
func Load(path string) (*Dataset, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ds := New()
	indexes := map[*Column]int64{}
	tables := map[string]*Table{}

	table := func(group, name string) *Table {
		key := group + "/" + name
		t, ok := tables[key]
		if !ok {
			t = NewTable(name)
			t.Group = group
			tables[key] = t
			_ = ds.AddTable(t)
		}
		return t
	}

	walkErr := hdf5.Walk(f.Root(), func(p string, obj interface{}, err error) error {
		if err != nil {
			return err
		}
		d, ok := obj.(*hdf5.Dataset)
		if !ok {
			return nil
		}

		parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
		if len(parts) == 1 && parts[0] == summaryDataset {
			return readSummary(d, ds.Attrs)
		}
		if len(parts) != 2 {
			return fmt.Errorf("unexpected dataset %s", p)
		}

		c, index, err := readColumn(d)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}

		var t *Table
		if name, ok := strings.CutPrefix(parts[0], AnalysisGroup+"_"); ok {
			t = table(AnalysisGroup, name)
		} else {
			t = table("", parts[0])
		}
		if d.HasAttr(attrCountField) {
			t.Ragged[c.Name] = c
			t.countField[c.Name] = attrString(d, attrCountField)
			return nil
		}
		indexes[c] = index
		t.Columns = append(t.Columns, c)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	for _, t := range ds.Tables {
		sort.SliceStable(t.Columns, func(i, j int) bool {
			return indexes[t.Columns[i]] < indexes[t.Columns[j]]
		})
		for i, c := range t.Columns {
			t.index[c.Name] = i
		}
	}
	return ds, ds.Validate()
}

func readColumn(d *hdf5.Dataset) (*Column, int64, error) {
	index := attrInt(d, attrIndex)

	if d.HasAttr(attrStringWidth) {
		width := int(attrInt(d, attrStringWidth))
		rows := int(attrInt(d, attrRows))
		raw, err := d.ReadUint8()
		if err != nil {
			return nil, 0, err
		}
		if width <= 0 || len(raw) != rows*width {
			return nil, 0, fmt.Errorf("string matrix of %d bytes is not %d x %d", len(raw), rows, width)
		}
		strs := make([]string, rows)
		for i := range strs {
			strs[i] = strings.TrimRight(string(raw[i*width:(i+1)*width]), "\x00")
		}
		return &Column{Name: d.Name(), Type: String, Data: strs}, index, nil
	}

	goType, err := d.GoType()
	if err != nil {
		return nil, 0, err
	}

	c := &Column{Name: d.Name()}
	switch goType.Kind() {
	case reflect.Uint8:
		c.Type = Uint8
		c.Data, err = typed(d.ReadUint8())
	case reflect.Uint16:
		c.Type = Uint16
		c.Data, err = typed(d.ReadUint16())
	case reflect.Uint32:
		c.Type = Uint32
		c.Data, err = typed(d.ReadUint32())
	case reflect.Int8:
		c.Type = Int8
		c.Data, err = typed(d.ReadInt8())
	case reflect.Int16:
		c.Type = Int16
		c.Data, err = typed(d.ReadInt16())
	case reflect.Int32:
		c.Type = Int32
		c.Data, err = typed(d.ReadInt32())
	case reflect.Int64:
		c.Type = Int64
		c.Data, err = typed(d.ReadInt64())
	case reflect.Float32:
		c.Type = Float32
		c.Data, err = typed(d.ReadFloat32())
	case reflect.Float64:
		c.Type = Float64
		c.Data, err = typed(d.ReadFloat64())
	default:
		return nil, 0, fmt.Errorf("unsupported element type %s", goType)
	}
	if err != nil {
		return nil, 0, err
	}
	return c, index, nil
}

// typed adapts a typed read to the any-typed column storage
func typed[T any](v []T, err error) (any, error) {
	if v == nil {
		v = []T{}
	}
	return v, err
}

func readSummary(d *hdf5.Dataset, attrs Attrs) error {
	for _, name := range d.Attrs() {
		v, err := d.Attr(name).Value()
		if err != nil {
			return fmt.Errorf("read summary attribute %s: %w", name, err)
		}
		switch x := v.(type) {
		case int64, string:
			attrs[name] = x
		case uint64:
			attrs[name] = int64(x)
		case []string:
			if len(x) > 0 {
				attrs[name] = x[0]
			}
		}
	}
	return nil
}

func attrInt(d *hdf5.Dataset, name string) int64 {
	a := d.Attr(name)
	if a == nil {
		return 0
	}
	v, err := a.ReadScalarInt64()
	if err != nil {
		return 0
	}
	return v
}

func attrString(d *hdf5.Dataset, name string) string {
	a := d.Attr(name)
	if a == nil {
		return ""
	}
	v, err := a.ReadScalarString()
	if err != nil {
		return ""
	}
	return v
}

// Remove deletes a persisted file and any partial file left next to it
func Remove(path string) error {
	err := os.Remove(path)
	if perr := os.Remove(path + PartialSuffix); perr != nil && !errors.Is(perr, os.ErrNotExist) {
		return perr
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
