// Package dataset holds the columnar output of a conversion and persists it
// as HDF5.
package dataset

import (
	"fmt"
	"sort"
)

// AnalysisGroup is the group holding derived tables
const AnalysisGroup = "analysis"

// File-level attributes stored on /summary
const (
	AttrFinishT = "FINISH_T"
	AttrStartT  = "START_T"
	AttrSetupT  = "SETUP_T"
	AttrCPUType = "CPU_TYPE"
	AttrVersion = "STDF_VER"
	AttrRecords = "RECORDS"
	AttrSkipped = "SKIPPED"
	AttrSource  = "SOURCE"
	AttrLotID   = "LOT_ID"
	AttrSblotID = "SBLOT_ID"
	AttrWaferID = "WAFER_ID"
	AttrTestCod = "TEST_COD"
	AttrFlowID  = "FLOW_ID"
)

// Table is one named group of equal-length columns
type Table struct {
	Name    string
	Group   string             // "" for record tables, AnalysisGroup for derived ones
	Columns []*Column          // one value per row
	Ragged  map[string]*Column // flattened kxTYPE arrays, see CountField

	index      map[string]int
	countField map[string]string
}

// NewTable creates an empty table
func NewTable(name string) *Table {
	return &Table{
		Name:       name,
		Ragged:     map[string]*Column{},
		index:      map[string]int{},
		countField: map[string]string{},
	}
}

// Path returns the HDF5 group path of the table. Every table is a first-level
// group; derived tables are prefixed with their group name.
func (t *Table) Path() string {
	return tablePath(t.Group, t.Name)
}

func tablePath(group, name string) string {
	if group == "" {
		return "/" + name
	}
	return "/" + group + "_" + name
}

// AddColumn appends a column, or returns the existing one with that name
func (t *Table) AddColumn(name string, typ ElemType) *Column {
	if c := t.Column(name); c != nil {
		return c
	}
	c := NewColumn(name, typ)
	t.index[name] = len(t.Columns)
	t.Columns = append(t.Columns, c)
	return c
}

// AddRagged adds a flattened array column whose per-row lengths are held in
// the countField column
func (t *Table) AddRagged(name string, typ ElemType, countField string) *Column {
	if c, ok := t.Ragged[name]; ok {
		return c
	}
	c := NewColumn(name, typ)
	t.Ragged[name] = c
	t.countField[name] = countField
	return c
}

// Column returns the named column, or nil
func (t *Table) Column(name string) *Column {
	if i, ok := t.index[name]; ok {
		return t.Columns[i]
	}
	return nil
}

// CountField returns the column holding the row lengths of a ragged column
func (t *Table) CountField(ragged string) string {
	return t.countField[ragged]
}

// RaggedNames returns the ragged column names in sorted order
func (t *Table) RaggedNames() []string {
	names := make([]string, 0, len(t.Ragged))
	for name := range t.Ragged {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rows returns the number of rows
func (t *Table) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// Row returns the ragged values belonging to row i
func (t *Table) Row(ragged string, i int) (start, end int, err error) {
	if _, ok := t.Ragged[ragged]; !ok {
		return 0, 0, fmt.Errorf("table %s has no ragged column %s", t.Name, ragged)
	}
	counts := t.Column(t.countField[ragged])
	if counts == nil {
		return 0, 0, fmt.Errorf("table %s has no count column for %s", t.Name, ragged)
	}
	for r := 0; r <= i; r++ {
		n := countAt(counts, r)
		if r == i {
			return start, start + n, nil
		}
		start += n
	}
	return 0, 0, fmt.Errorf("row %d out of range", i)
}

func countAt(c *Column, i int) int {
	switch v := c.At(i).(type) {
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	}
	return 0
}

// Validate checks that every column has the same length and that each ragged
// column holds exactly the elements its count column describes
func (t *Table) Validate() error {
	rows := t.Rows()
	for _, c := range t.Columns {
		if c.Len() != rows {
			return fmt.Errorf("table %s: column %s has %d rows, want %d", t.Name, c.Name, c.Len(), rows)
		}
	}
	for name, c := range t.Ragged {
		counts := t.Column(t.countField[name])
		if counts == nil {
			return fmt.Errorf("table %s: ragged column %s has no count column %q", t.Name, name, t.countField[name])
		}
		total := 0
		for i := 0; i < rows; i++ {
			total += countAt(counts, i)
		}
		if c.Len() != total {
			return fmt.Errorf("table %s: ragged column %s has %d values, counts sum to %d", t.Name, name, c.Len(), total)
		}
	}
	return nil
}

// Attrs holds file-level scalars. Values are int64 or string.
type Attrs map[string]any

// Int returns an integer attribute, or 0
func (a Attrs) Int(name string) int64 {
	switch v := a[name].(type) {
	case int64:
		return v
	case uint64:
		return int64(v)
	}
	return 0
}

// String returns a string attribute, or ""
func (a Attrs) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Dataset is the grouped, columnar output of one conversion
type Dataset struct {
	Tables []*Table
	Attrs  Attrs

	index map[string]*Table
}

// New creates an empty dataset
func New() *Dataset {
	return &Dataset{Attrs: Attrs{}, index: map[string]*Table{}}
}

// AddTable registers a table. Table paths must be unique.
func (d *Dataset) AddTable(t *Table) error {
	if _, exists := d.index[t.Path()]; exists {
		return fmt.Errorf("table %s already exists", t.Path())
	}
	d.index[t.Path()] = t
	d.Tables = append(d.Tables, t)
	return nil
}

// Table returns the record table with the given name, or nil
func (d *Dataset) Table(name string) *Table {
	return d.index[tablePath("", name)]
}

// Analysis returns the derived table with the given name, or nil
func (d *Dataset) Analysis(name string) *Table {
	return d.index[tablePath(AnalysisGroup, name)]
}

// Validate validates every table
func (d *Dataset) Validate() error {
	for _, t := range d.Tables {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}
