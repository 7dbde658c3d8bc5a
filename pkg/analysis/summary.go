package analysis

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stdf2h5/stdf2h5/pkg/dataset"
)

// Counts is a pass/fail tally
type Counts struct {
	Total int `json:"total"`
	Pass  int `json:"pass"`
	Fail  int `json:"fail"`
}

// PassRate returns the pass percentage, 0 when there are no parts
func (c Counts) PassRate() float64 {
	return percent(c.Pass, c.Total)
}

// FailRate returns the fail percentage, 0 when there are no parts
func (c Counts) FailRate() float64 {
	return percent(c.Fail, c.Total)
}

// SiteStats is the tally of one test site
type SiteStats struct {
	Site uint8 `json:"site"`
	Counts
}

// BinStats is the tally of one hard or soft bin
type BinStats struct {
	Bin     uint16        `json:"bin"`
	Name    string        `json:"name"`
	Type    string        `json:"type"` // "P" for bin 1, "F" otherwise
	Qty     int           `json:"qty"`
	Percent float64       `json:"percent"`
	Sites   map[uint8]int `json:"sites"`
}

// Summary holds yield statistics over the parts of one file
type Summary struct {
	All          Counts      `json:"all"`
	Sites        []SiteStats `json:"sites"`
	HardBins     []BinStats  `json:"hard_bins"`
	SoftBins     []BinStats  `json:"soft_bins"`
	TestTime     int64       `json:"test_time_ms"`
	PassTestTime int64       `json:"pass_test_time_ms"`
	Fresh        int         `json:"fresh"`
	Retest       int         `json:"retest"`

	Capability      []TestCapability `json:"capability,omitempty"`
	CapabilityStats *CapabilityStats `json:"capability_stats,omitempty"`
}

// Report sizes of the capability section
const (
	reportWorstCpk = 20
	reportTopFails = 10
)

// Yield returns the pass percentage over all parts
func (s Summary) Yield() float64 {
	return s.All.PassRate()
}

// Summarize computes statistics from a prr table. Bin names come from the
// HBR and SBR records and may be nil.
func Summarize(prr *dataset.Table, hardNames, softNames map[uint16]string) Summary {
	var s Summary
	if prr == nil || prr.Rows() == 0 {
		return s
	}

	sites := dataset.Values[uint8](prr.Column("SITE_NUM"))
	hard := dataset.Values[uint16](prr.Column("HARD_BIN"))
	soft := dataset.Values[uint16](prr.Column("SOFT_BIN"))
	flags := dataset.Values[uint8](prr.Column("PART_FLG"))
	pass := dataset.Values[uint8](prr.Column("FAIL_FLAG"))
	times := dataset.Values[uint32](prr.Column("TEST_T"))

	bySite := map[uint8]*SiteStats{}
	var allTime, passTime int64

	for i := range pass {
		site := sites[i]
		st, ok := bySite[site]
		if !ok {
			st = &SiteStats{Site: site}
			bySite[site] = st
		}

		s.All.Total++
		st.Total++
		allTime += int64(times[i])
		if pass[i] == 1 {
			s.All.Pass++
			st.Pass++
			passTime += int64(times[i])
		} else {
			s.All.Fail++
			st.Fail++
		}
		if flags[i]&partRetest != 0 {
			s.Retest++
		}
	}
	s.Fresh = s.All.Total - s.Retest
	s.TestTime = allTime / int64(s.All.Total)
	if s.All.Pass > 0 {
		s.PassTestTime = passTime / int64(s.All.Pass)
	}

	for _, st := range bySite {
		s.Sites = append(s.Sites, *st)
	}
	sort.Slice(s.Sites, func(i, j int) bool { return s.Sites[i].Site < s.Sites[j].Site })

	s.HardBins = binStats(hard, sites, s.All.Total, hardNames)
	s.SoftBins = binStats(soft, sites, s.All.Total, softNames)
	return s
}

func binStats(bins []uint16, sites []uint8, total int, names map[uint16]string) []BinStats {
	byBin := map[uint16]*BinStats{}
	for i, bin := range bins {
		b, ok := byBin[bin]
		if !ok {
			b = &BinStats{Bin: bin, Name: names[bin], Type: "F", Sites: map[uint8]int{}}
			if bin == 1 {
				b.Type = "P"
			}
			byBin[bin] = b
		}
		b.Qty++
		b.Sites[sites[i]]++
	}

	out := make([]BinStats, 0, len(byBin))
	for _, b := range byBin {
		b.Percent = percent(b.Qty, total)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bin < out[j].Bin })
	return out
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// FormatTime renders an STDF timestamp as YYYY/MM/DD HH:MM:SS in UTC, or
// dashes when it is unset
func FormatTime(ts uint32) string {
	if ts == 0 {
		return "--------"
	}
	return time.Unix(int64(ts), 0).UTC().Format("2006/01/02 15:04:05")
}

func formatTemp(temp string) string {
	var v float64
	if _, err := fmt.Sscanf(strings.TrimSpace(temp), "%g", &v); err != nil || v == 0 {
		return "--------"
	}
	return fmt.Sprintf("%04d", int(v))
}

func orDashes(s string) string {
	if s == "" {
		return "--------"
	}
	return s
}

// WriteText renders the plain text summary report for the file at path
func (s Summary) WriteText(w io.Writer, path string, info *LotInfo) error {
	if info == nil {
		info = &LotInfo{}
	}
	var b strings.Builder

	b.WriteString("Basic Info\n")
	fmt.Fprintf(&b, "File Path:      %s\n", orDashes(filepath.Dir(path)))
	fmt.Fprintf(&b, "File Name:      %s\n", orDashes(filepath.Base(path)))
	fmt.Fprintf(&b, "Lot Number:     %-16s\n", orDashes(info.LotID))
	fmt.Fprintf(&b, "Sub Lot:        %s\n", orDashes(info.SublotID))
	fmt.Fprintf(&b, "Wafer ID:       %s\n", orDashes(info.WaferID))
	fmt.Fprintf(&b, "Setup Time:     %s\n", FormatTime(info.SetupT))
	fmt.Fprintf(&b, "Start Time:     %s\n", FormatTime(info.StartT))
	fmt.Fprintf(&b, "Finish Time:    %s\n", FormatTime(info.FinishT))
	fmt.Fprintf(&b, "Temperature:    %s\n", formatTemp(info.TestTemp))
	fmt.Fprintf(&b, "Node Name:      %s\n", orDashes(info.NodeName))
	fmt.Fprintf(&b, "Tester Type:    %s\n", orDashes(info.TesterType))
	fmt.Fprintf(&b, "Part Type:      %s\n", orDashes(info.PartType))
	fmt.Fprintf(&b, "Job Name:       %s\n", orDashes(info.JobName))
	fmt.Fprintf(&b, "Exec Type:      %s\n", orDashes(info.ExecType))
	fmt.Fprintf(&b, "Exec Ver:       %s\n", orDashes(info.ExecVer))
	fmt.Fprintf(&b, "Test Mode:      %s\n", orDashes(info.ModeCode))
	fmt.Fprintf(&b, "Station ID:     %d\n", info.StationNum)
	fmt.Fprintf(&b, "Operator:       %s\n", orDashes(info.Operator))
	fmt.Fprintf(&b, "Burn-In:        %d\n", info.BurnTime)
	b.WriteString("\n")

	b.WriteString("Qty Statistic\n")
	fmt.Fprintf(&b, "Test Time:      %d ms\n", s.TestTime)
	fmt.Fprintf(&b, "Test Time(Pass Only):%d ms\n", s.PassTestTime)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Site NO:                    %-16s", "All")
	for _, st := range s.Sites {
		fmt.Fprintf(&b, " %-16s", fmt.Sprintf("%d(S%03d)", st.Site, st.Site))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Total QTY:                 %5d", s.All.Total)
	for _, st := range s.Sites {
		fmt.Fprintf(&b, "          %5d", st.Total)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Pass QTY:          %5d|%6.2f%%", s.All.Pass, s.All.PassRate())
	for _, st := range s.Sites {
		fmt.Fprintf(&b, "   %5d|%6.2f%%", st.Pass, st.PassRate())
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Fail QTY:          %5d|%6.2f%%", s.All.Fail, s.All.FailRate())
	for _, st := range s.Sites {
		fmt.Fprintf(&b, "   %5d|%6.2f%%", st.Fail, st.FailRate())
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Fresh QTY:         %5d|%6.2f%%\n", s.Fresh, percent(s.Fresh, s.All.Total))
	fmt.Fprintf(&b, "Retest QTY:        %5d|%6.2f%%\n", s.Retest, percent(s.Retest, s.All.Total))
	b.WriteString("\n")

	s.writeBins(&b, "Soft Bin Statistic", s.SoftBins)
	s.writeBins(&b, "Hard Bin Statistic", s.HardBins)
	s.writeCapability(&b)

	_, err := io.WriteString(w, b.String())
	return err
}

func (s Summary) writeBins(b *strings.Builder, title string, bins []BinStats) {
	b.WriteString(title + "\n")
	fmt.Fprintf(b, "BIN:   Bin Name                       %-16s", "All")
	for _, st := range s.Sites {
		fmt.Fprintf(b, " %-14d", st.Site)
	}
	b.WriteString("\n")

	for _, bin := range bins {
		fmt.Fprintf(b, "%-6d %s:%-20s%5d|%6.2f%%", bin.Bin, bin.Type, bin.Name, bin.Qty, bin.Percent)
		for _, st := range s.Sites {
			n := bin.Sites[st.Site]
			fmt.Fprintf(b, "   %5d|%6.2f%%", n, percent(n, st.Total))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func (s Summary) writeCapability(b *strings.Builder) {
	if s.CapabilityStats == nil || len(s.Capability) == 0 {
		return
	}
	st := s.CapabilityStats

	b.WriteString("Capability Statistic\n")
	fmt.Fprintf(b, "Tests:          %d\n", st.TotalTests)
	fmt.Fprintf(b, "Rated Tests:    %d\n", st.Items)
	fmt.Fprintf(b, "CPK Avg:        %s\n", st.CpkAvg.Text(3))
	fmt.Fprintf(b, "CPK Min:        %s\n", st.CpkMin.Text(3))
	fmt.Fprintf(b, "CPK Max:        %s\n", st.CpkMax.Text(3))
	fmt.Fprintf(b, "Sigma Avg:      %s\n", st.SigmaAvg.Text(2))
	fmt.Fprintf(b, "CPK < 1.0:      %5d|%6.2f%%\n", st.Below, percent(st.Below, st.Items))
	fmt.Fprintf(b, "1.0 <= CPK < 1.33:%3d|%6.2f%%\n", st.Marginal, percent(st.Marginal, st.Items))
	fmt.Fprintf(b, "CPK >= 1.33:    %5d|%6.2f%%\n", st.Capable, percent(st.Capable, st.Items))
	b.WriteString("\n")

	rated := Rated(s.Capability)
	if len(rated) > reportWorstCpk {
		rated = rated[:reportWorstCpk]
	}
	if len(rated) > 0 {
		b.WriteString("Lowest CPK\n")
		fmt.Fprintf(b, "%-10s %-24s %12s %12s %12s %12s %8s %8s %8s %8s %6s\n",
			"TEST_NUM", "TEST_TXT", "LO_LIMIT", "HI_LIMIT", "MEAN", "STD", "CP", "CPK", "PPK", "SIGMA", "QTY")
		for _, c := range rated {
			fmt.Fprintf(b, "%-10d %-24s %12s %12s %12s %12s %8s %8s %8s %8s %6d\n",
				c.TestNum, truncateName(c.TestTxt, 24),
				c.LoLimit.Text(6), c.HiLimit.Text(6),
				c.Mean.Text(6), c.Std.Text(6),
				c.Cp.Text(3), c.Cpk.Text(3), c.Ppk.Text(3),
				c.SigmaLevel.Text(2), c.Qty)
		}
		b.WriteString("\n")
	}

	fails := TopFails(s.Capability, reportTopFails)
	if len(fails) > 0 {
		b.WriteString("Top Fail\n")
		for _, c := range fails {
			fmt.Fprintf(b, "%-10d %-24s %5d|%6.2f%%\n", c.TestNum, truncateName(c.TestTxt, 24), c.FailQty, percent(c.FailQty, s.All.Total))
		}
		b.WriteString("\n")
	}
}

func truncateName(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
