package analysis

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/stdf2h5/stdf2h5/pkg/dataset"
)

// PARM_FLG bits
const (
	parmEqualLo = 1 << 6
	parmEqualHi = 1 << 7
)

// Limit comparison types
const (
	LimitNone    = "NA"
	LimitGreater = "GT"
	LimitEqualLo = "GE"
	LimitLess    = "LT"
	LimitEqualHi = "LE"
)

// Cpk grading thresholds
const (
	CpkCapable  = 1.0
	CpkAdequate = 1.33
)

// zeroStd replaces a zero deviation so a constant result still grades
const zeroStd = 1e-5

// Index is a capability figure. NaN marks a figure that cannot be computed
// and is encoded as JSON null.
type Index float64

// MarshalJSON implements json.Marshaler
func (x Index) MarshalJSON() ([]byte, error) {
	f := float64(x)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler
func (x *Index) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*x = Index(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*x = Index(f)
	return nil
}

// Valid reports whether the figure was computed
func (x Index) Valid() bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}

// Text renders the figure with prec decimals, or "-" when it is not valid
func (x Index) Text(prec int) string {
	if !x.Valid() {
		return "-"
	}
	return strconv.FormatFloat(float64(x), 'f', prec, 64)
}

func nan() Index {
	return Index(math.NaN())
}

// TestCapability is the process capability of one test. Mean, Std, Median,
// Min and Max cover the passing results only.
type TestCapability struct {
	TestID  uint32 `json:"test_id"`
	Type    string `json:"type"`
	TestNum uint32 `json:"test_num"`
	TestTxt string `json:"test_txt"`
	Units   string `json:"units"`

	LoLimit     Index  `json:"lo_limit"`
	HiLimit     Index  `json:"hi_limit"`
	LoLimitType string `json:"lo_limit_type"`
	HiLimitType string `json:"hi_limit_type"`

	Mean   Index `json:"mean"`
	Std    Index `json:"std"`
	Median Index `json:"median"`
	Min    Index `json:"min"`
	Max    Index `json:"max"`
	AllMin Index `json:"all_min"`
	AllMax Index `json:"all_max"`

	Cp         Index `json:"cp"`
	Cpk        Index `json:"cpk"`
	Pp         Index `json:"pp"`
	Ppk        Index `json:"ppk"`
	SigmaLevel Index `json:"sigma_level"`

	Qty       int `json:"qty"`
	FailQty   int `json:"fail_qty"`   // parts whose first failing test this is
	RejectQty int `json:"reject_qty"` // results failing this test
}

// FailRate returns the top fail percentage over the tested results
func (c TestCapability) FailRate() float64 {
	return percent(c.FailQty, c.Qty)
}

// RejectRate returns the percentage of failing results
func (c TestCapability) RejectRate() float64 {
	return percent(c.RejectQty, c.Qty)
}

// HasLimit reports whether the test carries a nonzero limit
func (c TestCapability) HasLimit() bool {
	return (c.LoLimit.Valid() && c.LoLimit != 0) || (c.HiLimit.Valid() && c.HiLimit != 0)
}

// CapabilityStats grades the tests that have limits and a Cpk
type CapabilityStats struct {
	Items      int   `json:"items"`
	CpkAvg     Index `json:"cpk_avg"`
	CpkMin     Index `json:"cpk_min"`
	CpkMax     Index `json:"cpk_max"`
	Below      int   `json:"cpk_lt_1"`
	Marginal   int   `json:"cpk_1_to_1_33"`
	Capable    int   `json:"cpk_ge_1_33"`
	SigmaAvg   Index `json:"sigma_avg"`
	TotalTests int   `json:"total_tests"`
}

// Capability computes per-test capability from the prr, dtp and ptmd tables,
// in ptmd order. Top fails are attributed in test order: a part counts once,
// against the first test it fails.
func Capability(prr, dtp, ptmd *dataset.Table) []TestCapability {
	if ptmd == nil || dtp == nil || ptmd.Rows() == 0 {
		return nil
	}

	ids := dataset.Values[uint32](ptmd.Column("TEST_ID"))
	types := dataset.Values[string](ptmd.Column("DATAT_TYPE"))
	nums := dataset.Values[uint32](ptmd.Column("TEST_NUM"))
	txts := dataset.Values[string](ptmd.Column("TEST_TXT"))
	parms := dataset.Values[uint8](ptmd.Column("PARM_FLG"))
	opts := dataset.Values[uint8](ptmd.Column("OPT_FLAG"))
	los := dataset.Values[float32](ptmd.Column("LO_LIMIT"))
	his := dataset.Values[float32](ptmd.Column("HI_LIMIT"))
	units := dataset.Values[string](ptmd.Column("UNITS"))

	parts := dataset.Values[uint32](dtp.Column("PART_ID"))
	tests := dataset.Values[uint32](dtp.Column("TEST_ID"))
	results := dataset.Values[float32](dtp.Column("RESULT"))
	flags := dataset.Values[uint8](dtp.Column("TEST_FLG"))

	if len(parts) != len(tests) || len(results) != len(tests) || len(flags) != len(tests) {
		return nil
	}

	rows := make(map[uint32][]int, len(ids))
	for i, id := range tests {
		rows[id] = append(rows[id], i)
	}

	remaining := map[uint32]bool{}
	if prr != nil {
		for _, id := range dataset.Values[uint32](prr.Column("PART_ID")) {
			remaining[id] = true
		}
	}

	out := make([]TestCapability, 0, len(ids))
	for i, id := range ids {
		c := TestCapability{
			TestID:  id,
			Type:    at(types, i),
			TestNum: at(nums, i),
			TestTxt: at(txts, i),
			Units:   at(units, i),
			LoLimit: nan(),
			HiLimit: nan(),
		}
		if i < len(los) && i < len(his) {
			c.LoLimit, c.HiLimit = Index(los[i]), Index(his[i])
		}
		for _, x := range []*Index{&c.Mean, &c.Std, &c.Median, &c.Min, &c.Max, &c.AllMin, &c.AllMax,
			&c.Cp, &c.Cpk, &c.Pp, &c.Ppk, &c.SigmaLevel} {
			*x = nan()
		}

		var failedParts []uint32
		var pass, all []float64
		for _, r := range rows[id] {
			c.Qty++
			failed := flags[r]&testFailed != 0
			if failed {
				c.RejectQty++
				if remaining[parts[r]] {
					c.FailQty++
					failedParts = append(failedParts, parts[r])
				}
			}
			v := float64(results[r])
			if math.IsNaN(v) {
				continue
			}
			all = append(all, v)
			if !failed {
				pass = append(pass, v)
			}
		}
		for _, p := range failedParts {
			delete(remaining, p)
		}

		if c.Type == TypeFTR {
			c.LoLimitType, c.HiLimitType = LimitGreater, LimitEqualHi
		} else {
			opt := at(opts, i)
			c.LoLimitType, c.HiLimitType = limitTypes(at(parms, i), opt)
			parametric(&c, pass, all, opt)
		}
		out = append(out, c)
	}
	return out
}

// at returns s[i], or the zero value when the column is short or missing
func at[T any](s []T, i int) T {
	var zero T
	if i >= len(s) {
		return zero
	}
	return s[i]
}

func limitTypes(parm, opt uint8) (lo, hi string) {
	lo, hi = LimitGreater, LimitLess
	if opt&optNoLoLimit != 0 {
		lo = LimitNone
	}
	if parm&parmEqualLo != 0 {
		lo = LimitEqualLo
	}
	if opt&optNoHiLimit != 0 {
		hi = LimitNone
	}
	if parm&parmEqualHi != 0 {
		hi = LimitEqualHi
	}
	return lo, hi
}

// parametric fills the distribution and capability figures of a PTR or MPR
// test. Cp and Cpk use the sample deviation, Pp and Ppk the population one.
func parametric(c *TestCapability, pass, all []float64, opt uint8) {
	if len(all) > 0 {
		lo, hi := minMax(all)
		c.AllMin, c.AllMax = Index(lo), Index(hi)
	}
	if len(pass) == 0 {
		return
	}

	avg := mean(pass)
	lo, hi := minMax(pass)
	c.Mean, c.Min, c.Max = Index(avg), Index(lo), Index(hi)
	c.Median = Index(median(pass))

	std := stddev(pass, avg, 1)
	if std == 0 {
		std = zeroStd
	}
	c.Std = Index(std)

	total := stddev(pass, avg, 0)
	if total == 0 {
		total = zeroStd
	}

	hasLo := opt&optNoLoLimit == 0 && c.LoLimit.Valid()
	hasHi := opt&optNoHiLimit == 0 && c.HiLimit.Valid()
	usl, lsl := float64(c.HiLimit), float64(c.LoLimit)

	c.Cpk = Index(math.Abs(float64(oneSided(avg, lsl, usl, std, hasLo, hasHi))))
	c.Ppk = Index(math.Abs(float64(oneSided(avg, lsl, usl, total, hasLo, hasHi))))
	if hasLo && hasHi {
		c.Cp = Index((usl - lsl) / (6 * std))
		c.Pp = Index((usl - lsl) / (6 * total))
	}
	if c.Cpk.Valid() && c.Cpk > 0 {
		c.SigmaLevel = c.Cpk*3 + 1.5
	}
}

// oneSided returns the smaller of the upper and lower indices for the limits
// present, NaN when there are none
func oneSided(avg, lsl, usl, std float64, hasLo, hasHi bool) Index {
	k := math.Inf(1)
	if hasHi {
		k = math.Min(k, (usl-avg)/(3*std))
	}
	if hasLo {
		k = math.Min(k, (avg-lsl)/(3*std))
	}
	if math.IsInf(k, 1) {
		return nan()
	}
	return Index(k)
}

func mean(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// stddev returns the deviation with ddof degrees of freedom removed, NaN when
// there are too few values
func stddev(v []float64, avg float64, ddof int) float64 {
	n := len(v) - ddof
	if n <= 0 {
		return math.NaN()
	}
	var ss float64
	for _, x := range v {
		d := x - avg
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func minMax(v []float64) (lo, hi float64) {
	lo, hi = v[0], v[0]
	for _, x := range v[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

// GradeCapability summarizes the tests that have a limit and a Cpk
func GradeCapability(caps []TestCapability) CapabilityStats {
	st := CapabilityStats{CpkAvg: nan(), CpkMin: nan(), CpkMax: nan(), SigmaAvg: nan(), TotalTests: len(caps)}

	var cpkSum, sigmaSum float64
	var sigmas int
	for _, c := range Rated(caps) {
		cpk := float64(c.Cpk)
		if st.Items == 0 {
			st.CpkMin, st.CpkMax = c.Cpk, c.Cpk
		}
		st.Items++
		cpkSum += cpk
		st.CpkMin = Index(math.Min(float64(st.CpkMin), cpk))
		st.CpkMax = Index(math.Max(float64(st.CpkMax), cpk))

		switch {
		case cpk < CpkCapable:
			st.Below++
		case cpk < CpkAdequate:
			st.Marginal++
		default:
			st.Capable++
		}
		if c.SigmaLevel.Valid() {
			sigmaSum += float64(c.SigmaLevel)
			sigmas++
		}
	}
	if st.Items > 0 {
		st.CpkAvg = Index(cpkSum / float64(st.Items))
	}
	if sigmas > 0 {
		st.SigmaAvg = Index(sigmaSum / float64(sigmas))
	}
	return st
}

// Rated returns the tests that have a limit and a Cpk, lowest Cpk first
func Rated(caps []TestCapability) []TestCapability {
	var out []TestCapability
	for _, c := range caps {
		if c.Cpk.Valid() && c.HasLimit() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Cpk < out[j].Cpk })
	return out
}

// TopFails returns up to n tests with top fails, most fails first. n <= 0
// returns them all.
func TopFails(caps []TestCapability, n int) []TestCapability {
	var out []TestCapability
	for _, c := range caps {
		if c.FailQty > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FailQty > out[j].FailQty })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
