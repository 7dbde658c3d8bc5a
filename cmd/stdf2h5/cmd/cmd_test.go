package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdf2h5/stdf2h5/pkg/analysis"
	"github.com/stdf2h5/stdf2h5/pkg/api"
	"github.com/stdf2h5/stdf2h5/pkg/catalog"
	"github.com/stdf2h5/stdf2h5/pkg/config"
	"github.com/stdf2h5/stdf2h5/pkg/di"
)

// resetFlags restores every flag in the tree to its default so commands can
// run more than once per process
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// writeTestConfig saves a config under dir and returns its path
func writeTestConfig(t *testing.T, dir string, edit func(c *config.Config)) string {
	t.Helper()
	c := config.DefaultConfig()
	c.OutputDir = filepath.Join(dir, "h5")
	c.CatalogDir = filepath.Join(dir, "catalog")
	c.Logging.Level = "error"
	if edit != nil {
		edit(c)
	}
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.SaveConfig(c, path))
	return path
}

func TestDemoConvertAndCatalog(t *testing.T) {
	SetContainer(di.NewContainer())
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, nil)
	input := filepath.Join(dir, "lot.stdf")

	out, err := run(t, "demo", "--config", configPath, "--parts", "20", "--mir", "LOT_ID=DEMO7", input)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Wrote 20 parts on 2 sites")

	out, err = run(t, "info", "--config", configPath, "--json", input)
	require.NoError(t, err, out)
	var info analysis.LotInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "DEMO7", info.LotID)
	assert.Equal(t, "W01", info.WaferID)
	assert.Equal(t, uint32(0), info.FinishT, "header scan stops at the first part")

	out, err = run(t, "convert", "--config", configPath, "--summary", input)
	require.NoError(t, err, out)
	output := filepath.Join(dir, "h5", "lot.h5")
	assert.Contains(t, out, "✅ "+input+" -> "+output)
	assert.Contains(t, out, "Qty Statistic")
	assert.Contains(t, out, "Lot Number:     DEMO7")
	assert.Contains(t, out, "Capability Statistic")

	out, err = run(t, "inspect", "--config", configPath, "--columns", output)
	require.NoError(t, err, out)
	assert.Contains(t, out, "/PRR")
	assert.Contains(t, out, "/analysis_prr")
	assert.Contains(t, out, "LOT_ID:")
	assert.Contains(t, out, "RTN_RSLT")

	out, err = run(t, "inspect", "--config", configPath, "--capability", output)
	require.NoError(t, err, out)
	assert.Contains(t, out, "CPK")
	assert.Contains(t, out, "func_main")
	assert.Contains(t, out, "Rated ")

	out, err = run(t, "inspect", "--config", configPath, "--capability", "--json", output)
	require.NoError(t, err, out)
	var caps []analysis.TestCapability
	require.NoError(t, json.Unmarshal([]byte(out), &caps))
	require.NotEmpty(t, caps)
	assert.Equal(t, 20, caps[0].Qty)

	out, err = run(t, "catalog", "list", "--config", configPath, "--json")
	require.NoError(t, err, out)
	var entries []catalog.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, output, entries[0].Output)
	require.NotNil(t, entries[0].Summary)
	assert.Equal(t, 20, entries[0].Summary.All.Total)
	id := entries[0].ID.String()

	out, err = run(t, "catalog", "show", "--config", configPath, id)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Source:")
	assert.Contains(t, out, "Hard Bin Statistic")

	out, err = run(t, "catalog", "delete", "--config", configPath, id)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Deleted "+id)

	out, err = run(t, "catalog", "list", "--config", configPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "No conversions found")

	_, err = run(t, "catalog", "show", "--config", configPath, id)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestConvert_ReportsFailures(t *testing.T) {
	SetContainer(di.NewContainer())
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, func(c *config.Config) { c.CatalogDir = "" })

	good := filepath.Join(dir, "good.stdf")
	_, err := writeDemoLot(good, demoLot{Parts: 3, Sites: 1, Seed: 7})
	require.NoError(t, err)
	bad := filepath.Join(dir, "bad.stdf")
	require.NoError(t, os.WriteFile(bad, []byte("not an stdf file"), 0600))

	out, err := run(t, "convert", "--config", configPath, "--no-analysis", good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 conversions failed")
	assert.Contains(t, out, "✅ "+good)
	assert.Contains(t, out, "❌ "+bad)
	assert.Contains(t, out, "(format)")
	assert.FileExists(t, filepath.Join(dir, "h5", "good.h5"))
	assert.NoFileExists(t, filepath.Join(dir, "h5", "bad.h5"))

	_, err = run(t, "catalog", "list", "--config", configPath)
	assert.ErrorContains(t, err, "no catalog configured")
}

func TestConvert_NoInputs(t *testing.T) {
	SetContainer(di.NewContainer())
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, nil)

	_, err := run(t, "convert", "--config", configPath, dir)
	assert.ErrorContains(t, err, "no STDF files found")
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.stdf", "b.STD", "c.txt", filepath.Join("sub", "d.std_temp")} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
		require.NoError(t, os.WriteFile(path, nil, 0600))
	}

	inputs, err := collectInputs([]string{dir}, analysis.DefaultSuffixes)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.stdf"),
		filepath.Join(dir, "b.STD"),
		filepath.Join(dir, "sub", "d.std_temp"),
	}, inputs)

	inputs, err = collectInputs([]string{filepath.Join(dir, "c.txt")}, analysis.DefaultSuffixes)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "c.txt")}, inputs, "named files are kept")

	_, err = collectInputs([]string{filepath.Join(dir, "missing")}, nil)
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	SetContainer(di.NewContainer())
	dir := t.TempDir()
	configPath := filepath.Join(dir, "stdf2h5.yaml")

	out, err := run(t, "init", "--config", configPath, "--catalog-dir", filepath.Join(dir, "cat"), "--print-key")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Configuration created at "+configPath)

	c, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Len(t, c.Server.APIKey, 64)
	assert.Equal(t, filepath.Join(dir, "cat"), c.CatalogDir)
	assert.Contains(t, out, "API Key: "+c.Server.APIKey)

	out, err = run(t, "init", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = run(t, "init", "--config", configPath, "--force")
	require.NoError(t, err, out)
	again, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.NotEqual(t, c.Server.APIKey, again.Server.APIKey)
}

type fakeStarter struct {
	config  api.ServerConfig
	catalog api.ICatalog
	started bool
}

func (f *fakeStarter) StartServer(ctx context.Context, registry api.IConverterRegistry, catalog api.ICatalog,
	config api.ServerConfig, reg *prometheus.Registry) error {
	f.started = true
	f.config = config
	f.catalog = catalog
	return nil
}

type fakeFactory struct{ starter *fakeStarter }

func (f fakeFactory) CreateServerStarter() api.ServerStarter { return f.starter }

func TestServeCommand(t *testing.T) {
	dir := t.TempDir()
	starter := &fakeStarter{}
	container := di.NewContainer()
	container.SetServerFactory(fakeFactory{starter})
	SetContainer(container)

	configPath := writeTestConfig(t, dir, nil)
	_, err := run(t, "serve", "--config", configPath)
	assert.ErrorContains(t, err, "API key is required")
	assert.False(t, starter.started)

	out, err := run(t, "serve", "--config", configPath, "--api-key", "k", "--port", "9100",
		"--input-dir", dir)
	require.NoError(t, err, out)
	require.True(t, starter.started)
	assert.Equal(t, api.ServerConfig{Port: 9100, Bind: "127.0.0.1", APIKey: "k", InputDir: dir}, starter.config)
	assert.NotNil(t, starter.catalog)

	_, err = run(t, "serve", "--config", configPath, "--api-key", "k", "--port", "70000")
	assert.ErrorContains(t, err, "port")
}

func TestRoot_ConfigErrors(t *testing.T) {
	SetContainer(di.NewContainer())
	dir := t.TempDir()

	_, err := run(t, "info", "--config", filepath.Join(dir, "missing.yaml"), "x.stdf")
	assert.ErrorContains(t, err, "not found")

	configPath := writeTestConfig(t, dir, nil)
	_, err = run(t, "info", "--config", configPath, "--log-format", "xml", "x.stdf")
	assert.ErrorContains(t, err, "invalid flags")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, config.Logging{Level: "warn", Format: "json"})
	l.Info("hidden")
	l.Warn("shown", "k", 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, float64(1), entry["k"])

	buf.Reset()
	newLogger(&buf, config.Logging{Level: "debug", Format: "text"}).Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestSplitKV(t *testing.T) {
	kv, err := splitKV([]string{"LOT_ID=A", "USER_TXT=x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"LOT_ID": "A", "USER_TXT": "x=y"}, kv)

	_, err = splitKV([]string{"nokey"})
	assert.Error(t, err)
	_, err = splitKV([]string{"=v"})
	assert.Error(t, err)
}

func TestWriteDemoLot_Invalid(t *testing.T) {
	_, err := writeDemoLot(filepath.Join(t.TempDir(), "x.stdf"), demoLot{Parts: 1, Sites: 0})
	assert.Error(t, err)
}
