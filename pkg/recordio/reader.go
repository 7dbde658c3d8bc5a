package recordio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/stdf2h5/stdf2h5/pkg/stdf"
)

// RecordReader provides sequential access to the records of an STDF file
type RecordReader struct {
	file   *os.File // nil when reading a caller-owned Source
	src    io.ReadSeeker
	reader *bufio.Reader
	codec  *stdf.RecordCodec
	header FileHeader
	offset int64
	stats  Stats
	config RecordReaderConfig
}

// NewRecordReader opens an STDF source and validates its FAR
func NewRecordReader(config RecordReaderConfig) (*RecordReader, error) {
	src := config.Source
	var file *os.File
	if src == nil {
		f, err := os.Open(config.FilePath)
		if err != nil {
			return nil, err
		}
		file, src = f, f
	}

	r := &RecordReader{
		file:   file,
		src:    src,
		config: config,
		stats:  Stats{Kinds: map[string]int{}},
	}

	if err := r.readFileHeader(); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.SeekTo(config.StartOffset); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// readFileHeader decodes the FAR at offset 0
func (r *RecordReader) readFileHeader() error {
	if _, err := r.src.Seek(0, io.SeekStart); err != nil {
		return err
	}

	var head [stdf.HeaderSize]byte
	if _, err := io.ReadFull(r.src, head[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: file shorter than a record header", stdf.ErrNotSTDF)
		}
		return err
	}

	order, err := stdf.DetectByteOrder(head[:])
	if err != nil {
		return err
	}
	r.codec = stdf.NewRecordCodec(order)

	payload := make([]byte, r.codec.DecodeHeader(head[:]).Len)
	if _, err := io.ReadFull(r.src, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: FAR at offset 0", stdf.ErrTruncated)
		}
		return err
	}

	schema, _ := stdf.SchemaByName("FAR")
	far, err := r.codec.Decode(schema, payload)
	if err != nil || !far.Has("STDF_VER") {
		return fmt.Errorf("%w: incomplete FAR", stdf.ErrNotSTDF)
	}

	r.header = FileHeader{
		ByteOrder: order,
		CPUType:   uint8(far.Uint("CPU_TYPE")),
		Version:   uint8(far.Uint("STDF_VER")),
	}
	if r.header.Version != 4 {
		return fmt.Errorf("%w: STDF_VER %d", stdf.ErrUnsupportedVersion, r.header.Version)
	}
	if cpu := r.header.CPUType; cpu != 0 && stdf.ByteOrderForCPU(cpu) != order {
		r.header.CPUMismatch = true
	}
	return nil
}

// ReadNext returns the next decodable record, stepping over unknown and
// malformed ones. It returns io.EOF at a clean end of stream.
func (r *RecordReader) ReadNext() (*stdf.Record, error) {
	for {
		start := r.offset

		var head [stdf.HeaderSize]byte
		n, err := io.ReadFull(r.reader, head[:])
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: %d byte header at offset %d", stdf.ErrTruncated, n, start)
			}
			return nil, fmt.Errorf("read header at offset %d: %w", start, err)
		}
		h := r.codec.DecodeHeader(head[:])

		payload := make([]byte, h.Len)
		if _, err := io.ReadFull(r.reader, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: %s record at offset %d declares %d bytes", stdf.ErrTruncated, h.Kind(), start, h.Len)
			}
			return nil, fmt.Errorf("read payload at offset %d: %w", start, err)
		}
		r.offset += int64(stdf.HeaderSize) + int64(h.Len)
		r.stats.Bytes = r.offset

		schema, ok := stdf.Lookup(h.Typ, h.Sub)
		if !ok {
			if name, unsupported := stdf.Unsupported(h.Typ, h.Sub); unsupported {
				r.stats.Unsupported++
				r.skip(SkipInfo{Offset: start, Kind: h.Kind(), Name: name, Reason: SkipUnsupported, Err: stdf.ErrUnknownRecord})
			} else {
				r.stats.Unknown++
				r.skip(SkipInfo{Offset: start, Kind: h.Kind(), Reason: SkipUnknown, Err: stdf.ErrUnknownRecord})
			}
			continue
		}

		rec, err := r.codec.Decode(schema, payload)
		if err != nil {
			r.stats.Malformed++
			r.skip(SkipInfo{Offset: start, Kind: h.Kind(), Name: schema.Name, Reason: SkipMalformed, Err: err})
			continue
		}
		rec.Offset = start

		r.stats.Decoded++
		r.stats.Kinds[schema.Name]++
		return rec, nil
	}
}

func (r *RecordReader) skip(info SkipInfo) {
	r.stats.Skipped++
	if r.config.OnSkip != nil {
		r.config.OnSkip(info)
	}
}

// SeekTo sets the read offset. The offset must be a record boundary.
func (r *RecordReader) SeekTo(offset int64) error {
	if _, err := r.src.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	r.reader = bufio.NewReader(r.src) // Recreate reader to clear buffer
	r.offset = offset
	return nil
}

// Rewind restarts the stream from the first record and resets the stats
func (r *RecordReader) Rewind() error {
	if err := r.SeekTo(0); err != nil {
		return err
	}
	r.stats = Stats{Kinds: map[string]int{}}
	return nil
}

// Offset returns the current read offset
func (r *RecordReader) Offset() int64 {
	return r.offset
}

// Header returns what was learned from the FAR
func (r *RecordReader) Header() FileHeader {
	return r.header
}

// Stats returns a snapshot of the reader counters
func (r *RecordReader) Stats() Stats {
	return r.stats.clone()
}

// Iterator returns a streaming iterator for records
func (r *RecordReader) Iterator() RecordIterator {
	return &recordIterator{reader: r}
}

// Close closes the underlying file. A caller-owned Source is left open.
func (r *RecordReader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// recordIterator implements RecordIterator for streaming access
type recordIterator struct {
	reader *RecordReader
	record *stdf.Record
	err    error
}

func (it *recordIterator) Next() bool {
	if it.err != nil {
		return false
	}
	rec, err := it.reader.ReadNext()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			it.err = err
		}
		it.record = nil
		return false
	}
	it.record = rec
	return true
}

func (it *recordIterator) Record() *stdf.Record {
	return it.record
}

func (it *recordIterator) Err() error {
	return it.err
}

func (it *recordIterator) Close() error {
	// Don't close the underlying reader as it's owned by the caller
	return nil
}
