package recordio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"github.com/stdf2h5/stdf2h5/pkg/stdf"
)

const defaultBufferSize = 64 * 1024

// RecordWriter writes an STDF file record by record
type RecordWriter struct {
	file   *os.File
	writer *bufio.Writer
	codec  *stdf.RecordCodec
	config RecordWriterConfig
	mutex  sync.Mutex
	offset int64 // Current write offset
}

// NewRecordWriter creates the file named in config, truncating it
func NewRecordWriter(config RecordWriterConfig) (*RecordWriter, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}

	size := config.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	return &RecordWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, size),
		codec:  stdf.NewRecordCodec(config.ByteOrder),
		config: config,
	}, nil
}

// Write appends a complete record and returns its offset
func (w *RecordWriter) Write(rec *stdf.Record) (int64, error) {
	return w.WritePrefix(rec, len(rec.Schema.Fields))
}

// WritePrefix appends a record truncated to its first n fields
func (w *RecordWriter) WritePrefix(rec *stdf.Record, n int) (int64, error) {
	data, err := w.codec.EncodePrefix(rec, n)
	if err != nil {
		return 0, err
	}
	return w.write(data)
}

// WriteRaw appends an arbitrary payload under the given kind
func (w *RecordWriter) WriteRaw(typ, sub uint8, payload []byte) (int64, error) {
	data, err := w.codec.Frame(stdf.Kind{Typ: typ, Sub: sub}, payload)
	if err != nil {
		return 0, err
	}
	return w.write(data)
}

func (w *RecordWriter) write(data []byte) (int64, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	n, err := w.writer.Write(data)
	if err != nil {
		return 0, err
	}

	recordOffset := w.offset
	w.offset += int64(n)
	return recordOffset, nil
}

// Sync forces a fsync to disk
func (w *RecordWriter) Sync() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.sync()
}

func (w *RecordWriter) sync() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close flushes and closes the file
func (w *RecordWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if err := w.sync(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// Size returns the number of bytes written so far
func (w *RecordWriter) Size() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.offset
}

// Path returns the file path
func (w *RecordWriter) Path() string {
	return w.config.FilePath
}

// Marshal encodes records into an in-memory STDF stream
func Marshal(order binary.ByteOrder, records ...*stdf.Record) ([]byte, error) {
	codec := stdf.NewRecordCodec(order)
	var buf bytes.Buffer
	for _, rec := range records {
		data, err := codec.Encode(rec)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}
