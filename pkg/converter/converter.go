// Package converter turns STDF files into HDF5 datasets.
//
// A [Converter] runs one conversion at a time. Each conversion is a
// [Session] that decodes every record of the input, accumulates them in a
// columnar dataset and persists the dataset atomically: either the complete
// output file exists afterwards or nothing does.
package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/stdf2h5/stdf2h5/pkg/analysis"
	"github.com/stdf2h5/stdf2h5/pkg/catalog"
	"github.com/stdf2h5/stdf2h5/pkg/dataset"
	"github.com/stdf2h5/stdf2h5/pkg/recordio"
)

// OutputExt is the extension of converted files
const OutputExt = ".h5"

// CatalogWriter records completed conversions
type CatalogWriter interface {
	Put(e *catalog.Entry) (ksuid.KSUID, error)
}

// Options configures a Converter
type Options struct {
	OutputDir string                 // empty writes next to the input
	Analysis  bool                   // add the prr, dtp and ptmd tables
	Persist   dataset.PersistOptions // HDF5 layout
	Catalog   CatalogWriter          // optional
	Logger    SLogger                // defaults to DefaultSLogger
	Metrics   *Metrics               // optional
}

// Report describes a finished conversion
type Report struct {
	SpanID    string
	Source    string
	Output    string
	State     State
	Header    recordio.FileHeader
	Stats     recordio.Stats
	FinishT   uint32
	Orphans   int
	Lot       *analysis.LotInfo
	Summary   *analysis.Summary
	CatalogID string
	Duration  time.Duration
}

// Result is the outcome of a boundary call
type Result struct {
	Success    bool   `json:"success"`
	Diagnostic string `json:"diagnostic,omitempty"`
	Class      string `json:"class,omitempty"`
	Output     string `json:"output,omitempty"`
}

// Converter converts STDF files to HDF5. Only one conversion may run on a
// Converter at a time; callers must serialize Convert calls.
type Converter struct {
	opts Options

	mu      sync.Mutex
	finishT uint32
	last    *Report
}

// New creates a converter with empty state
func New(opts Options) *Converter {
	if opts.Logger == nil {
		opts.Logger = DefaultSLogger()
	}
	return &Converter{opts: opts}
}

// OutputPath returns where the dataset for input is written
func (c *Converter) OutputPath(input string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + OutputExt
	if c.opts.OutputDir != "" {
		return filepath.Join(c.opts.OutputDir, base)
	}
	return filepath.Join(filepath.Dir(input), base)
}

// Convert runs one conversion of the STDF file at path. State from any
// previous conversion is discarded first. Cancellation is checked between
// records.
func (c *Converter) Convert(ctx context.Context, path string) (*Report, error) {
	c.Clear()

	logger := c.opts.Logger
	s := newSession(path, logger)
	t0 := time.Now()
	report := &Report{SpanID: s.ID, Source: path}

	logger.Info("convertStart", slog.String("span_id", s.ID), slog.String("path", path))
	s.transition(Decoding)

	ds, err := c.decode(ctx, s, report)
	if err != nil {
		return c.fail(s, report, t0, err)
	}

	s.transition(Finalizing)
	report.Output = c.OutputPath(path)
	if err := dataset.Persist(ds, report.Output, c.opts.Persist); err != nil {
		report.Output = ""
		return c.fail(s, report, t0, fmt.Errorf("%w: %w", ErrOutput, err))
	}
	s.transition(Done)

	report.State = s.State()
	report.Duration = time.Since(t0)
	c.record(report)

	c.mu.Lock()
	c.finishT = report.FinishT
	c.last = report
	c.mu.Unlock()

	c.opts.Metrics.RecordConversion(nil, report.Duration)
	c.opts.Metrics.RecordStats(report.Stats)
	logger.Info("convertDone",
		slog.String("span_id", s.ID),
		slog.String("output", report.Output),
		slog.Int("records", report.Stats.Decoded),
		slog.Int("skipped", report.Stats.Skipped),
		slog.Int64("finish_t", int64(report.FinishT)),
		slog.Duration("elapsed", report.Duration),
	)
	return report, nil
}

// decode reads every record of the session's file into a dataset
func (c *Converter) decode(ctx context.Context, s *Session, report *Report) (*dataset.Dataset, error) {
	if s.Path == "" {
		return nil, ErrNoPath
	}

	reader, err := recordio.NewRecordReader(recordio.RecordReaderConfig{
		FilePath: s.Path,
		OnSkip: func(info recordio.SkipInfo) {
			c.opts.Metrics.RecordSkip(info.Reason)
			c.opts.Logger.Debug("recordSkipped",
				slog.String("span_id", s.ID),
				slog.Int64("offset", info.Offset),
				slog.String("kind", info.Kind.String()),
				slog.String("name", info.Name),
				slog.String("reason", info.Reason),
				slog.Any("err", info.Err),
			)
		},
	})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	report.Header = reader.Header()
	if report.Header.CPUMismatch {
		c.opts.Logger.Info("cpuTypeMismatch",
			slog.String("span_id", s.ID),
			slog.Int("cpu_type", int(report.Header.CPUType)),
			slog.String("byte_order", report.Header.ByteOrder.String()),
		)
	}

	builder := dataset.NewBuilder()
	lot := &analysis.LotInfo{}
	var collector *analysis.Collector
	if c.opts.Analysis {
		collector = analysis.NewCollector()
	}

	for {
		if err := ctx.Err(); err != nil {
			report.Stats = reader.Stats()
			return nil, err
		}

		rec, err := reader.ReadNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			report.Stats = reader.Stats()
			return nil, err
		}

		if err := builder.Append(rec); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInternal, err)
		}
		lot.Update(rec)
		if collector != nil {
			if err := collector.Add(rec); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInternal, err)
			}
		}
	}

	report.Stats = reader.Stats()
	report.FinishT = lot.FinishT
	report.Lot = lot

	ds := builder.Dataset()
	if collector != nil {
		for _, t := range collector.Tables() {
			if err := ds.AddTable(t); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInternal, err)
			}
		}
		summary := collector.Summary()
		report.Summary = &summary
		report.Orphans = collector.Orphans()
	}

	setAttrs(ds.Attrs, report, lot)
	return ds, nil
}

func setAttrs(attrs dataset.Attrs, report *Report, lot *analysis.LotInfo) {
	attrs[dataset.AttrFinishT] = int64(lot.FinishT)
	attrs[dataset.AttrStartT] = int64(lot.StartT)
	attrs[dataset.AttrSetupT] = int64(lot.SetupT)
	attrs[dataset.AttrCPUType] = int64(report.Header.CPUType)
	attrs[dataset.AttrVersion] = int64(report.Header.Version)
	attrs[dataset.AttrRecords] = int64(report.Stats.Decoded)
	attrs[dataset.AttrSkipped] = int64(report.Stats.Skipped)
	attrs[dataset.AttrSource] = filepath.Base(report.Source)
	attrs[dataset.AttrLotID] = lot.LotID
	attrs[dataset.AttrSblotID] = lot.SublotID
	attrs[dataset.AttrWaferID] = lot.WaferID
	attrs[dataset.AttrTestCod] = lot.TestCode
	attrs[dataset.AttrFlowID] = lot.FlowID
}

// record adds a catalog entry. A catalog failure does not fail the conversion.
func (c *Converter) record(report *Report) {
	if c.opts.Catalog == nil {
		return
	}
	id, err := c.opts.Catalog.Put(&catalog.Entry{
		Source:  report.Source,
		Output:  report.Output,
		FinishT: report.FinishT,
		Records: report.Stats.Decoded,
		Skipped: report.Stats.Skipped,
		Orphans: report.Orphans,
		Lot:     report.Lot,
		Summary: report.Summary,
	})
	if err != nil {
		c.opts.Logger.Info("catalogPutFailed", slog.String("span_id", report.SpanID), slog.Any("err", err))
		return
	}
	report.CatalogID = id.String()
}

func (c *Converter) fail(s *Session, report *Report, t0 time.Time, err error) (*Report, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.transition(Aborted)
	} else {
		s.transition(Failed)
	}
	report.State = s.State()
	report.Duration = time.Since(t0)

	c.opts.Metrics.RecordConversion(err, report.Duration)
	c.opts.Logger.Info("convertFailed",
		slog.String("span_id", s.ID),
		slog.String("state", s.State().String()),
		slog.Any("err", err),
		slog.String("errClass", Classify(err)),
		slog.Duration("elapsed", report.Duration),
	)
	return report, err
}

// ParserStdfToHdf5 converts the file at path and reports the outcome by
// value. It never panics: a panic during conversion is recovered and
// reported as an internal failure.
func (c *Converter) ParserStdfToHdf5(path string) Result {
	return c.ConvertResult(context.Background(), path)
}

// ConvertResult is ParserStdfToHdf5 with cancellation
func (c *Converter) ConvertResult(ctx context.Context, path string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			c.Clear()
			res = Result{
				Success:    false,
				Diagnostic: fmt.Sprintf("%v: %v", ErrInternal, r),
				Class:      ClassInternal,
			}
			c.opts.Logger.Info("convertPanic", slog.String("path", path), slog.Any("panic", r))
		}
	}()

	report, err := c.Convert(ctx, path)
	if err != nil {
		return Result{Success: false, Diagnostic: err.Error(), Class: Classify(err)}
	}
	return Result{Success: true, Output: report.Output}
}

// GetFinishT returns the MRR finish time of the last successful conversion.
// It returns 0 before any conversion and after a failed one. Times past 2038
// wrap like the C int they are returned as.
func (c *Converter) GetFinishT() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int32(c.finishT)
}

// LastReport returns the report of the last successful conversion, or nil
func (c *Converter) LastReport() *Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Clear discards the state of the last conversion
func (c *Converter) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishT = 0
	c.last = nil
}
