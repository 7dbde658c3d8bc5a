package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/stdf2h5/stdf2h5/pkg/analysis"
	"github.com/stdf2h5/stdf2h5/pkg/catalog"
	"github.com/stdf2h5/stdf2h5/pkg/dataset"
)

// outputJSON writes v as indented JSON
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputLotInfo displays lot information in table format
func outputLotInfo(w io.Writer, info *analysis.LotInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Lot ID:\t%s\n", info.LotID)
	fmt.Fprintf(tw, "Sublot ID:\t%s\n", info.SublotID)
	fmt.Fprintf(tw, "Wafer ID:\t%s\n", info.WaferID)
	if info.BlueFilmID != "" {
		fmt.Fprintf(tw, "Blue Film ID:\t%s\n", info.BlueFilmID)
	}
	fmt.Fprintf(tw, "Part Type:\t%s\n", info.PartType)
	fmt.Fprintf(tw, "Test Code:\t%s\n", info.TestCode)
	fmt.Fprintf(tw, "Flow ID:\t%s\n", info.FlowID)
	fmt.Fprintf(tw, "Job Name:\t%s\n", info.JobName)
	fmt.Fprintf(tw, "Test Temp:\t%s\n", info.TestTemp)
	fmt.Fprintf(tw, "Node Name:\t%s\n", info.NodeName)
	fmt.Fprintf(tw, "Tester Type:\t%s\n", info.TesterType)
	fmt.Fprintf(tw, "Operator:\t%s\n", info.Operator)
	fmt.Fprintf(tw, "Site Count:\t%d\n", info.SiteCount)
	fmt.Fprintf(tw, "Setup Time:\t%s\n", analysis.FormatTime(info.SetupT))
	fmt.Fprintf(tw, "Start Time:\t%s\n", analysis.FormatTime(info.StartT))
	fmt.Fprintf(tw, "Finish Time:\t%s\n", analysis.FormatTime(info.FinishT))

	return tw.Flush()
}

// outputDataset displays the tables and attributes of a converted file
func outputDataset(w io.Writer, ds *dataset.Dataset, columns bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	names := make([]string, 0, len(ds.Attrs))
	for name := range ds.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(tw, "%s:\t%v\n", name, ds.Attrs[name])
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "TABLE\tROWS\tCOLUMNS")
	for _, t := range ds.Tables {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", t.Path(), t.Rows(), len(t.Columns)+len(t.Ragged))
		if !columns {
			continue
		}
		for _, c := range t.Columns {
			fmt.Fprintf(tw, "  %s\t%s\t\n", c.Name, c.Type)
		}
		for _, name := range t.RaggedNames() {
			fmt.Fprintf(tw, "  %s\t%s[]\t(count %s)\n", name, t.Ragged[name].Type, t.CountField(name))
		}
	}

	return tw.Flush()
}

// outputCapability displays per-test capability in table format
func outputCapability(w io.Writer, caps []analysis.TestCapability) error {
	if len(caps) == 0 {
		fmt.Fprintln(w, "No tests found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TEST_NUM\tTEST_TXT\tTYPE\tUNITS\tLO_LIMIT\tHI_LIMIT\tMEAN\tSTD\tCP\tCPK\tPP\tPPK\tSIGMA\tQTY\tFAIL\tREJECT")
	for _, c := range caps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			c.TestNum, c.TestTxt, c.Type, c.Units,
			c.LoLimit.Text(6), c.HiLimit.Text(6), c.Mean.Text(6), c.Std.Text(6),
			c.Cp.Text(3), c.Cpk.Text(3), c.Pp.Text(3), c.Ppk.Text(3), c.SigmaLevel.Text(2),
			c.Qty, c.FailQty, c.RejectQty)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	st := analysis.GradeCapability(caps)
	fmt.Fprintf(w, "\nRated %d of %d tests: Cpk avg %s, min %s, %d below 1.0, %d below 1.33\n",
		st.Items, st.TotalTests, st.CpkAvg.Text(3), st.CpkMin.Text(3), st.Below, st.Below+st.Marginal)
	return nil
}

// outputEntries displays catalog entries in table format
func outputEntries(w io.Writer, entries []*catalog.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No conversions found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLOT\tSOURCE\tRECORDS\tYIELD\tCREATED")
	for _, e := range entries {
		lot := ""
		if e.Lot != nil {
			lot = e.Lot.LotID
		}
		yield := "-"
		if e.Summary != nil {
			yield = fmt.Sprintf("%.2f%%", e.Summary.Yield())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.ID, lot, truncate(e.Source, 50), e.Records, yield, e.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// outputEntry displays one catalog entry, followed by its yield summary
func outputEntry(w io.Writer, e *catalog.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", e.ID)
	fmt.Fprintf(tw, "Source:\t%s\n", e.Source)
	fmt.Fprintf(tw, "Output:\t%s\n", e.Output)
	fmt.Fprintf(tw, "Created:\t%s\n", e.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "Finish Time:\t%s\n", analysis.FormatTime(e.FinishT))
	fmt.Fprintf(tw, "Records:\t%d\n", e.Records)
	fmt.Fprintf(tw, "Skipped:\t%d\n", e.Skipped)
	if e.Orphans > 0 {
		fmt.Fprintf(tw, "Orphans:\t%d\n", e.Orphans)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if e.Summary != nil {
		fmt.Fprintln(w)
		return e.Summary.WriteText(w, e.Source, e.Lot)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-(n-3):]
}

// splitKV parses "a=b" pairs
func splitKV(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", p)
		}
		out[k] = v
	}
	return out, nil
}
