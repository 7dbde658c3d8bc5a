// Package analysis derives per-part and per-test tables from a decoded STDF
// record stream.
package analysis

import (
	"fmt"
	"math"

	"github.com/stdf2h5/stdf2h5/pkg/dataset"
	"github.com/stdf2h5/stdf2h5/pkg/stdf"
)

// Derived table names
const (
	TablePRR  = "prr"
	TableDTP  = "dtp"
	TablePTMD = "ptmd"
)

// DATAT_TYPE values
const (
	TypePTR = "PTR"
	TypeMPR = "MPR"
	TypeFTR = "FTR"
)

// OPT_FLAG bits
const (
	optLoLimitInvalid = 1 << 4
	optHiLimitInvalid = 1 << 5
	optNoLoLimit      = 1 << 6
	optNoHiLimit      = 1 << 7
)

// PART_FLG and TEST_FLG bits
const (
	partRetest = 1 << 1
	partFailed = 1 << 3
	testFailed = 1 << 7
)

type siteKey struct {
	head, site uint8
}

type testKey struct {
	typ string
	num uint32
	txt string
	pin int
}

type numKey struct {
	typ string
	num uint32
	pin int
}

type testDef struct {
	id     uint32
	lo, hi float32
}

type result struct {
	testID  uint32
	value   float32
	testFlg uint8
	parmFlg uint8
	optFlag uint8
	lo, hi  float32
}

// Collector turns records into the prr, dtp and ptmd tables
type Collector struct {
	prr, dtp, ptmd *dataset.Table

	open     map[siteKey][]result
	tests    map[testKey]*testDef
	firstNum map[numKey]*testDef
	nextPart uint32
	orphans  int

	hardBins map[uint16]string
	softBins map[uint16]string
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	c := &Collector{
		prr:      dataset.NewTable(TablePRR),
		dtp:      dataset.NewTable(TableDTP),
		ptmd:     dataset.NewTable(TablePTMD),
		open:     map[siteKey][]result{},
		tests:    map[testKey]*testDef{},
		firstNum: map[numKey]*testDef{},
		hardBins: map[uint16]string{},
		softBins: map[uint16]string{},
	}
	for _, t := range []*dataset.Table{c.prr, c.dtp, c.ptmd} {
		t.Group = dataset.AnalysisGroup
	}

	c.prr.AddColumn("PART_ID", dataset.Uint32)
	c.prr.AddColumn("HEAD_NUM", dataset.Uint8)
	c.prr.AddColumn("SITE_NUM", dataset.Uint8)
	c.prr.AddColumn("X_COORD", dataset.Int16)
	c.prr.AddColumn("Y_COORD", dataset.Int16)
	c.prr.AddColumn("HARD_BIN", dataset.Uint16)
	c.prr.AddColumn("SOFT_BIN", dataset.Uint16)
	c.prr.AddColumn("PART_FLG", dataset.Uint8)
	c.prr.AddColumn("NUM_TEST", dataset.Uint16)
	c.prr.AddColumn("FAIL_FLAG", dataset.Uint8)
	c.prr.AddColumn("TEST_T", dataset.Uint32)

	c.dtp.AddColumn("PART_ID", dataset.Uint32)
	c.dtp.AddColumn("TEST_ID", dataset.Uint32)
	c.dtp.AddColumn("RESULT", dataset.Float32)
	c.dtp.AddColumn("TEST_FLG", dataset.Uint8)
	c.dtp.AddColumn("PARM_FLG", dataset.Uint8)
	c.dtp.AddColumn("OPT_FLAG", dataset.Uint8)
	c.dtp.AddColumn("LO_LIMIT", dataset.Float32)
	c.dtp.AddColumn("HI_LIMIT", dataset.Float32)

	c.ptmd.AddColumn("TEST_ID", dataset.Uint32)
	c.ptmd.AddColumn("DATAT_TYPE", dataset.String)
	c.ptmd.AddColumn("TEST_NUM", dataset.Uint32)
	c.ptmd.AddColumn("TEST_TXT", dataset.String)
	c.ptmd.AddColumn("PARM_FLG", dataset.Uint8)
	c.ptmd.AddColumn("OPT_FLAG", dataset.Uint8)
	c.ptmd.AddColumn("RES_SCAL", dataset.Int8)
	c.ptmd.AddColumn("LLM_SCAL", dataset.Int8)
	c.ptmd.AddColumn("HLM_SCAL", dataset.Int8)
	c.ptmd.AddColumn("LO_LIMIT", dataset.Float32)
	c.ptmd.AddColumn("HI_LIMIT", dataset.Float32)
	c.ptmd.AddColumn("UNITS", dataset.String)
	return c
}

// Add consumes one record. Records that carry no analysis data are ignored.
func (c *Collector) Add(rec *stdf.Record) error {
	switch rec.Name() {
	case "PIR":
		key := siteOf(rec)
		if pending, ok := c.open[key]; ok {
			c.orphans += len(pending)
		}
		c.open[key] = []result{}
	case "PTR":
		c.addParametric(rec, TypePTR, rec.Float("RESULT"), -1, "")
	case "MPR":
		c.addMultiPin(rec)
	case "FTR":
		c.addFunctional(rec)
	case "PRR":
		return c.closePart(rec)
	case "HBR":
		setBinName(c.hardBins, uint16(rec.Uint("HBIN_NUM")), rec.Text("HBIN_NAM"))
	case "SBR":
		setBinName(c.softBins, uint16(rec.Uint("SBIN_NUM")), rec.Text("SBIN_NAM"))
	}
	return nil
}

func setBinName(names map[uint16]string, bin uint16, name string) {
	if name != "" && names[bin] == "" {
		names[bin] = name
	}
}

func siteOf(rec *stdf.Record) siteKey {
	return siteKey{head: uint8(rec.Uint("HEAD_NUM")), site: uint8(rec.Uint("SITE_NUM"))}
}

func (c *Collector) addParametric(rec *stdf.Record, typ string, value float64, pin int, suffix string) {
	key := siteOf(rec)
	pending, ok := c.open[key]
	if !ok {
		c.orphans++
		return
	}

	def := c.testFor(rec, typ, pin, suffix)
	lo, hi := limits(rec, def)
	c.open[key] = append(pending, result{
		testID:  def.id,
		value:   float32(value),
		testFlg: uint8(rec.Uint("TEST_FLG")),
		parmFlg: uint8(rec.Uint("PARM_FLG")),
		optFlag: uint8(rec.Uint("OPT_FLAG")),
		lo:      lo,
		hi:      hi,
	})
}

func (c *Collector) addMultiPin(rec *stdf.Record) {
	results, _ := rec.Value("RTN_RSLT").([]float32)
	indexes, _ := rec.Value("RTN_INDX").([]uint16)
	for i, v := range results {
		pin := i
		if i < len(indexes) {
			pin = int(indexes[i])
		}
		c.addParametric(rec, TypeMPR, float64(v), i, fmt.Sprintf("[%d]", pin))
	}
}

func (c *Collector) addFunctional(rec *stdf.Record) {
	key := siteOf(rec)
	pending, ok := c.open[key]
	if !ok {
		c.orphans++
		return
	}

	def := c.testFor(rec, TypeFTR, -1, "")
	flg := uint8(rec.Uint("TEST_FLG"))
	pass := float32(1)
	if flg&testFailed != 0 {
		pass = 0
	}
	nan := float32(math.NaN())
	c.open[key] = append(pending, result{
		testID:  def.id,
		value:   pass,
		testFlg: flg,
		optFlag: uint8(rec.Uint("OPT_FLAG")),
		lo:      nan,
		hi:      nan,
	})
}

// testFor returns the test definition for a record, registering a ptmd row
// the first time a test is seen. Later records usually leave TEST_TXT empty
// and then resolve to the first test with the same number.
func (c *Collector) testFor(rec *stdf.Record, typ string, pin int, suffix string) *testDef {
	num := uint32(rec.Uint("TEST_NUM"))
	txt := rec.Text("TEST_TXT")

	if txt == "" {
		if def, ok := c.firstNum[numKey{typ, num, pin}]; ok {
			return def
		}
	}
	key := testKey{typ: typ, num: num, txt: txt, pin: pin}
	if def, ok := c.tests[key]; ok {
		return def
	}

	nan := float32(math.NaN())
	def := &testDef{id: uint32(c.ptmd.Rows() + 1), lo: nan, hi: nan}
	if typ != TypeFTR {
		def.lo, def.hi = limits(rec, def)
	}
	c.tests[key] = def
	if _, ok := c.firstNum[numKey{typ, num, pin}]; !ok {
		c.firstNum[numKey{typ, num, pin}] = def
	}

	appendRow(c.ptmd,
		def.id, typ, num, txt+suffix,
		uint8(rec.Uint("PARM_FLG")), uint8(rec.Uint("OPT_FLAG")),
		int8(rec.Int("RES_SCAL")), int8(rec.Int("LLM_SCAL")), int8(rec.Int("HLM_SCAL")),
		def.lo, def.hi, rec.Text("UNITS"),
	)
	return def
}

// limits resolves a record's limits against the test defaults. OPT_FLAG bits
// 4 and 5 select the default, bits 6 and 7 mean there is no limit.
func limits(rec *stdf.Record, def *testDef) (lo, hi float32) {
	if !rec.Has("OPT_FLAG") {
		return def.lo, def.hi
	}
	opt := rec.Uint("OPT_FLAG")
	nan := float32(math.NaN())

	switch {
	case opt&optNoLoLimit != 0:
		lo = nan
	case opt&optLoLimitInvalid != 0 || !rec.Has("LO_LIMIT"):
		lo = def.lo
	default:
		lo = float32(rec.Float("LO_LIMIT"))
	}

	switch {
	case opt&optNoHiLimit != 0:
		hi = nan
	case opt&optHiLimitInvalid != 0 || !rec.Has("HI_LIMIT"):
		hi = def.hi
	default:
		hi = float32(rec.Float("HI_LIMIT"))
	}
	return lo, hi
}

func (c *Collector) closePart(rec *stdf.Record) error {
	key := siteOf(rec)
	pending := c.open[key]
	delete(c.open, key)

	c.nextPart++
	id := c.nextPart

	flg := uint8(rec.Uint("PART_FLG"))
	failFlag := uint8(1)
	if flg&partFailed != 0 {
		failFlag = 0
	}

	appendRow(c.prr,
		id, key.head, key.site,
		int16(rec.Int("X_COORD")), int16(rec.Int("Y_COORD")),
		uint16(rec.Uint("HARD_BIN")), uint16(rec.Uint("SOFT_BIN")),
		flg, uint16(rec.Uint("NUM_TEST")), failFlag, uint32(rec.Uint("TEST_T")),
	)

	for _, r := range pending {
		appendRow(c.dtp, id, r.testID, r.value, r.testFlg, r.parmFlg, r.optFlag, r.lo, r.hi)
	}
	return c.prr.Validate()
}

// appendRow appends one value per column in column order. The values are
// built by this package with the exact column types, so a mismatch is a bug.
func appendRow(t *dataset.Table, values ...any) {
	if len(values) != len(t.Columns) {
		panic(fmt.Sprintf("analysis: %s row has %d values for %d columns", t.Name, len(values), len(t.Columns)))
	}
	for i, v := range values {
		if err := t.Columns[i].Append(v); err != nil {
			panic(fmt.Sprintf("analysis: %s: %v", t.Name, err))
		}
	}
}

// Tables returns the prr, dtp and ptmd tables
func (c *Collector) Tables() []*dataset.Table {
	return []*dataset.Table{c.prr, c.dtp, c.ptmd}
}

// PRR returns the per-part table
func (c *Collector) PRR() *dataset.Table {
	return c.prr
}

// Orphans returns the number of test results dropped because no part was open
// on their head and site
func (c *Collector) Orphans() int {
	n := c.orphans
	for _, pending := range c.open {
		n += len(pending)
	}
	return n
}

// Summary computes yield and capability statistics over the parts seen so far
func (c *Collector) Summary() Summary {
	s := Summarize(c.prr, c.hardBins, c.softBins)
	s.Capability = Capability(c.prr, c.dtp, c.ptmd)
	if len(s.Capability) > 0 {
		st := GradeCapability(s.Capability)
		s.CapabilityStats = &st
	}
	return s
}
