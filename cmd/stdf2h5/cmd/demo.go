/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/stdf2h5/stdf2h5/pkg/recordio"
	"github.com/stdf2h5/stdf2h5/pkg/stdf"
)

const demoStartT = 1700000000

// demoLot describes a synthetic lot
type demoLot struct {
	Parts int
	Sites int
	Seed  int64
	MIR   map[string]string // extra MIR Cn fields
}

type demoTest struct {
	num    uint32
	txt    string
	lo, hi float32
	mean   float64
	sigma  float64
	units  string
}

var demoTests = []demoTest{
	{1000, "continuity", -0.9, -0.2, -0.55, 0.05, "V"},
	{1100, "idd_static", 0, 2e-3, 1.2e-3, 0.3e-3, "A"},
	{1200, "vout_1v8", 1.71, 1.89, 1.8, 0.035, "V"},
}

// demoCmd represents the demo command
var demoCmd = &cobra.Command{
	Use:   "demo <out.stdf>",
	Short: "Write a synthetic STDF file",
	Long: `Write a synthetic but well-formed STDF V4 lot: a header, a wafer with
parametric, multi-pin and functional tests for every part, bin summaries and
an MRR. Useful for trying out convert, info and serve.

Examples:
  stdf2h5 demo lot.stdf
  stdf2h5 demo --parts 500 --sites 4 --mir LOT_ID=DEMO7 lot.stdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parts, _ := cmd.Flags().GetInt("parts")
		sites, _ := cmd.Flags().GetInt("sites")
		seed, _ := cmd.Flags().GetInt64("seed")
		pairs, _ := cmd.Flags().GetStringSlice("mir")

		mir, err := splitKV(pairs)
		if err != nil {
			return err
		}
		lot := demoLot{Parts: parts, Sites: sites, Seed: seed, MIR: mir}
		size, err := writeDemoLot(args[0], lot)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Wrote %d parts on %d sites to %s (%d bytes)\n", parts, sites, args[0], size)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().Int("parts", 20, "Number of parts")
	demoCmd.Flags().Int("sites", 2, "Number of test sites")
	demoCmd.Flags().Int64("seed", 1, "Random seed")
	demoCmd.Flags().StringSlice("mir", nil, "MIR field overrides as NAME=VALUE")
}

// writeDemoLot writes lot to path and returns the file size
func writeDemoLot(path string, lot demoLot) (int64, error) {
	if lot.Parts < 0 || lot.Sites < 1 || lot.Sites > 255 {
		return 0, fmt.Errorf("invalid demo lot: %d parts on %d sites", lot.Parts, lot.Sites)
	}
	rng := rand.New(rand.NewSource(lot.Seed)) //nolint:gosec

	w, err := recordio.NewRecordWriter(recordio.RecordWriterConfig{FilePath: path, ByteOrder: binary.LittleEndian})
	if err != nil {
		return 0, err
	}
	closed := false
	defer func() {
		if !closed {
			w.Close()
		}
	}()

	mir := stdf.Values{
		"SETUP_T": demoStartT - 600, "START_T": demoStartT, "STAT_NUM": 1,
		"MODE_COD": "P", "LOT_ID": "DEMO", "SBLOT_ID": "S01", "PART_TYP": "DEMO-1",
		"NODE_NAM": "node1", "TSTR_TYP": "demo", "JOB_NAM": "demo_prog", "TEST_COD": "CP1",
		"TST_TEMP": "25", "FLOW_ID": "P1",
	}
	for k, v := range lot.MIR {
		mir[k] = v
	}
	siteNums := make([]uint8, lot.Sites)
	for i := range siteNums {
		siteNums[i] = uint8(i)
	}

	header := []*stdf.Record{}
	for _, r := range []struct {
		name   string
		values stdf.Values
	}{
		{"FAR", stdf.Values{"CPU_TYPE": 2, "STDF_VER": 4}},
		{"MIR", mir},
		{"SDR", stdf.Values{"HEAD_NUM": 1, "SITE_NUM": siteNums}},
		{"WIR", stdf.Values{"HEAD_NUM": 1, "START_T": demoStartT, "WAFER_ID": "W01"}},
	} {
		rec, err := stdf.NewRecord(r.name, r.values)
		if err != nil {
			return 0, err
		}
		header = append(header, rec)
	}
	if err := writeAll(w, header...); err != nil {
		return 0, err
	}

	hardCounts := map[uint16]uint32{}
	softCounts := map[uint16]uint32{}
	good := uint32(0)
	for p := 0; p < lot.Parts; p++ {
		site := uint8(p % lot.Sites)
		recs, hard, soft := demoPart(rng, p, site)
		if err := writeAll(w, recs...); err != nil {
			return 0, err
		}
		hardCounts[hard]++
		softCounts[soft]++
		if hard == 1 {
			good++
		}
	}

	var trailer []*stdf.Record
	trailer = append(trailer, stdf.MustRecord("WRR", stdf.Values{
		"HEAD_NUM": 1, "FINISH_T": demoStartT + uint32(lot.Parts), "PART_CNT": uint32(lot.Parts),
		"GOOD_CNT": good, "WAFER_ID": "W01",
	}))
	for _, bin := range []struct {
		num      uint16
		pf, name string
	}{{1, "P", "PASS"}, {5, "F", "PARAMETRIC"}, {7, "F", "FUNCTIONAL"}} {
		if n := hardCounts[bin.num]; n > 0 {
			trailer = append(trailer, stdf.MustRecord("HBR", stdf.Values{
				"HEAD_NUM": 255, "HBIN_NUM": bin.num, "HBIN_CNT": n, "HBIN_PF": bin.pf, "HBIN_NAM": bin.name,
			}))
		}
	}
	for _, bin := range []struct {
		num      uint16
		pf, name string
	}{{1, "P", "PASS"}, {50, "F", "CONT"}, {51, "F", "IDD"}, {52, "F", "VOUT"}, {70, "F", "FUNC"}} {
		if n := softCounts[bin.num]; n > 0 {
			trailer = append(trailer, stdf.MustRecord("SBR", stdf.Values{
				"HEAD_NUM": 255, "SBIN_NUM": bin.num, "SBIN_CNT": n, "SBIN_PF": bin.pf, "SBIN_NAM": bin.name,
			}))
		}
	}
	trailer = append(trailer,
		stdf.MustRecord("PCR", stdf.Values{"HEAD_NUM": 255, "PART_CNT": uint32(lot.Parts), "GOOD_CNT": good}),
		stdf.MustRecord("MRR", stdf.Values{"FINISH_T": demoStartT + uint32(lot.Parts) + 60, "DISP_COD": " "}),
	)
	if err := writeAll(w, trailer...); err != nil {
		return 0, err
	}

	closed = true
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Size(), nil
}

// demoPart builds the PIR, test results and PRR of part p
func demoPart(rng *rand.Rand, p int, site uint8) (recs []*stdf.Record, hard, soft uint16) {
	hard, soft = 1, 1
	recs = append(recs, stdf.MustRecord("PIR", stdf.Values{"HEAD_NUM": 1, "SITE_NUM": site}))

	for i, t := range demoTests {
		v := float32(t.mean + rng.NormFloat64()*t.sigma)
		flg := uint8(0)
		if v < t.lo || v > t.hi {
			flg = 0x80
			if hard == 1 {
				hard, soft = 5, uint16(50+i)
			}
		}
		values := stdf.Values{
			"TEST_NUM": t.num, "HEAD_NUM": 1, "SITE_NUM": site, "TEST_FLG": flg, "RESULT": v,
			"TEST_TXT": t.txt,
		}
		// Limits and units only accompany the first occurrence of a test
		if p == 0 {
			values["LO_LIMIT"] = t.lo
			values["HI_LIMIT"] = t.hi
			values["UNITS"] = t.units
		} else {
			values["OPT_FLAG"] = uint8(0x30)
		}
		recs = append(recs, stdf.MustRecord("PTR", values))
	}

	leak := []float32{float32(rng.Float64() * 1e-6), float32(rng.Float64() * 1e-6)}
	recs = append(recs, stdf.MustRecord("MPR", stdf.Values{
		"TEST_NUM": 2000, "HEAD_NUM": 1, "SITE_NUM": site, "RTN_STAT": []uint8{0, 0},
		"RTN_RSLT": leak, "RTN_INDX": []uint16{1, 2}, "TEST_TXT": "leakage", "LO_LIMIT": float32(0),
		"HI_LIMIT": float32(1e-6), "UNITS": "A",
	}))

	ftrFlg := uint8(0)
	if rng.Float64() < 0.05 {
		ftrFlg = 0x80
		if hard == 1 {
			hard, soft = 7, 70
		}
	}
	recs = append(recs, stdf.MustRecord("FTR", stdf.Values{
		"TEST_NUM": 3000, "HEAD_NUM": 1, "SITE_NUM": site, "TEST_FLG": ftrFlg, "TEST_TXT": "func_main",
	}))

	partFlg := uint8(0)
	if hard != 1 {
		partFlg = 0x08
	}
	recs = append(recs, stdf.MustRecord("PRR", stdf.Values{
		"HEAD_NUM": 1, "SITE_NUM": site, "PART_FLG": partFlg, "NUM_TEST": uint16(len(demoTests) + 2),
		"HARD_BIN": hard, "SOFT_BIN": soft, "X_COORD": int16(p % 10), "Y_COORD": int16(p / 10),
		"TEST_T": uint32(80 + rng.Intn(40)), "PART_ID": fmt.Sprint(p + 1),
	}))
	return recs, hard, soft
}

func writeAll(w *recordio.RecordWriter, recs ...*stdf.Record) error {
	for _, rec := range recs {
		if _, err := w.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", rec.Name(), err)
		}
	}
	return nil
}
