package recordio

import (
	"encoding/binary"
	"io"
	"maps"

	"github.com/stdf2h5/stdf2h5/pkg/stdf"
)

// RecordReaderConfig holds configuration for the record reader
type RecordReaderConfig struct {
	FilePath    string         // Path to the STDF file, ignored when Source is set
	Source      io.ReadSeeker  // Optional in-memory or caller-owned source
	StartOffset int64          // Offset of the first record to return
	OnSkip      func(SkipInfo) // Called for every skipped record
}

// RecordWriterConfig holds configuration for the record writer
type RecordWriterConfig struct {
	FilePath   string           // Path of the STDF file to create
	ByteOrder  binary.ByteOrder // Defaults to little-endian
	BufferSize int              // Write buffer size
}

// RecordIterator provides streaming access to records
type RecordIterator interface {
	Next() bool
	Record() *stdf.Record
	Err() error
	Close() error
}

// Skip reasons
const (
	SkipUnknown     = "unknown"
	SkipUnsupported = "unsupported"
	SkipMalformed   = "malformed"
)

// SkipInfo describes a record the reader stepped over
type SkipInfo struct {
	Offset int64
	Kind   stdf.Kind
	Name   string // record name when the kind is known
	Reason string
	Err    error
}

// FileHeader holds what the reader learned from the FAR
type FileHeader struct {
	ByteOrder   binary.ByteOrder
	CPUType     uint8
	Version     uint8
	CPUMismatch bool // CPU_TYPE disagrees with the header byte order
}

// Stats counts what a reader has seen since it was opened or rewound
type Stats struct {
	Decoded     int
	Skipped     int
	Unknown     int
	Unsupported int
	Malformed   int
	Bytes       int64
	Kinds       map[string]int // decoded records per record name
}

func (s Stats) clone() Stats {
	s.Kinds = maps.Clone(s.Kinds)
	if s.Kinds == nil {
		s.Kinds = map[string]int{}
	}
	return s
}
