package recordio

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdf2h5/stdf2h5/pkg/stdf"
)

func far() *stdf.Record {
	return stdf.MustRecord("FAR", stdf.Values{"CPU_TYPE": 2, "STDF_VER": 4})
}

func writeTestFile(t *testing.T, order binary.ByteOrder, write func(w *RecordWriter)) string {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "record_reader_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	filePath := filepath.Join(tmpDir, "test.stdf")
	w, err := NewRecordWriter(RecordWriterConfig{FilePath: filePath, ByteOrder: order})
	require.NoError(t, err)
	write(w)
	require.NoError(t, w.Close())
	return filePath
}

func readNames(t *testing.T, r *RecordReader) []string {
	t.Helper()

	var names []string
	it := r.Iterator()
	for it.Next() {
		names = append(names, it.Record().Name())
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	return names
}

func TestNewRecordReader_NonExistentFile(t *testing.T) {
	reader, err := NewRecordReader(RecordReaderConfig{FilePath: "/non/existent/file.stdf"})
	assert.Error(t, err)
	assert.Nil(t, reader)
}

func TestRecordReader_ReadsAllRecords(t *testing.T) {
	filePath := writeTestFile(t, binary.LittleEndian, func(w *RecordWriter) {
		for _, rec := range []*stdf.Record{
			far(),
			stdf.MustRecord("MIR", stdf.Values{"LOT_ID": "LOT1", "START_T": 1699999000}),
			stdf.MustRecord("PIR", stdf.Values{"HEAD_NUM": 1}),
			stdf.MustRecord("PTR", stdf.Values{"TEST_NUM": 10, "HEAD_NUM": 1, "RESULT": 0.5}),
			stdf.MustRecord("PRR", stdf.Values{"HEAD_NUM": 1, "HARD_BIN": 1}),
			stdf.MustRecord("MRR", stdf.Values{"FINISH_T": 1700000000}),
		} {
			_, err := w.Write(rec)
			require.NoError(t, err)
		}
	})

	reader, err := NewRecordReader(RecordReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, []string{"FAR", "MIR", "PIR", "PTR", "PRR", "MRR"}, readNames(t, reader))

	stats := reader.Stats()
	assert.Equal(t, 6, stats.Decoded)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 1, stats.Kinds["PTR"])

	info, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), reader.Offset())
	assert.Equal(t, info.Size(), stats.Bytes)
}

func TestRecordReader_FortyByteFile(t *testing.T) {
	filePath := writeTestFile(t, binary.LittleEndian, func(w *RecordWriter) {
		_, err := w.Write(far())
		require.NoError(t, err)
		off, err := w.Write(stdf.MustRecord("PRR", nil))
		require.NoError(t, err)
		assert.Equal(t, int64(6), off)
		off, err = w.WritePrefix(stdf.MustRecord("MRR", stdf.Values{"FINISH_T": 1700000000}), 3)
		require.NoError(t, err)
		assert.Equal(t, int64(30), off)
		assert.Equal(t, int64(40), w.Size())
	})

	reader, err := NewRecordReader(RecordReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	var last *stdf.Record
	for {
		rec, err := reader.ReadNext()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		last = rec
	}

	require.NotNil(t, last)
	assert.Equal(t, "MRR", last.Name())
	assert.Equal(t, int64(30), last.Offset)
	assert.Equal(t, 3, last.Present)
	assert.Equal(t, uint64(1700000000), last.Uint("FINISH_T"))
	assert.Equal(t, int64(40), reader.Offset())
}

func TestRecordReader_Truncated(t *testing.T) {
	data, err := Marshal(binary.LittleEndian, far(), stdf.MustRecord("PRR", nil))
	require.NoError(t, err)

	testCases := []struct {
		name string
		data []byte
	}{
		{"payload overruns stream", data[:len(data)-5]},
		{"partial header", append(append([]byte(nil), data...), 0x02, 0x00)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reader, err := NewRecordReader(RecordReaderConfig{Source: bytes.NewReader(tc.data)})
			require.NoError(t, err)

			it := reader.Iterator()
			var names []string
			for it.Next() {
				names = append(names, it.Record().Name())
			}
			assert.ErrorIs(t, it.Err(), stdf.ErrTruncated)
			assert.NotContains(t, names, "MRR")
			assert.False(t, it.Next(), "iterator stays stopped after an error")
		})
	}
}

func TestRecordReader_SkipsUnknownAndMalformed(t *testing.T) {
	filePath := writeTestFile(t, binary.LittleEndian, func(w *RecordWriter) {
		_, err := w.Write(far())
		require.NoError(t, err)
		_, err = w.WriteRaw(99, 1, []byte{1, 2, 3, 4})
		require.NoError(t, err)
		_, err = w.WriteRaw(1, 63, []byte{0, 0})
		require.NoError(t, err)
		_, err = w.WriteRaw(5, 10, []byte{1, 2, 3})
		require.NoError(t, err)
		_, err = w.Write(stdf.MustRecord("PIR", stdf.Values{"HEAD_NUM": 1, "SITE_NUM": 2}))
		require.NoError(t, err)
	})

	var skipped []SkipInfo
	reader, err := NewRecordReader(RecordReaderConfig{
		FilePath: filePath,
		OnSkip:   func(info SkipInfo) { skipped = append(skipped, info) },
	})
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, []string{"FAR", "PIR"}, readNames(t, reader))

	stats := reader.Stats()
	assert.Equal(t, 2, stats.Decoded)
	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, 1, stats.Unknown)
	assert.Equal(t, 1, stats.Unsupported)
	assert.Equal(t, 1, stats.Malformed)

	require.Len(t, skipped, 3)
	assert.Equal(t, SkipUnknown, skipped[0].Reason)
	assert.Equal(t, int64(6), skipped[0].Offset)
	assert.ErrorIs(t, skipped[0].Err, stdf.ErrUnknownRecord)
	assert.Equal(t, SkipUnsupported, skipped[1].Reason)
	assert.Equal(t, "PLR", skipped[1].Name)
	assert.Equal(t, SkipMalformed, skipped[2].Reason)
	assert.ErrorIs(t, skipped[2].Err, stdf.ErrMalformedRecord)
}

func TestRecordReader_RejectsBadHeader(t *testing.T) {
	pir, err := Marshal(binary.LittleEndian, stdf.MustRecord("PIR", nil))
	require.NoError(t, err)
	v3, err := Marshal(binary.LittleEndian, stdf.MustRecord("FAR", stdf.Values{"CPU_TYPE": 2, "STDF_VER": 3}))
	require.NoError(t, err)

	testCases := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, stdf.ErrNotSTDF},
		{"first record not FAR", pir, stdf.ErrNotSTDF},
		{"FAR without version", []byte{0x02, 0x00, 0x00, 0x0a, 0x02}, stdf.ErrTruncated},
		{"version 3", v3, stdf.ErrUnsupportedVersion},
		{"text file", []byte("hello world"), stdf.ErrNotSTDF},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reader, err := NewRecordReader(RecordReaderConfig{Source: bytes.NewReader(tc.data)})
			assert.ErrorIs(t, err, tc.err)
			assert.Nil(t, reader)
		})
	}
}

func TestRecordReader_BigEndian(t *testing.T) {
	filePath := writeTestFile(t, binary.BigEndian, func(w *RecordWriter) {
		_, err := w.Write(stdf.MustRecord("FAR", stdf.Values{"CPU_TYPE": 1, "STDF_VER": 4}))
		require.NoError(t, err)
		_, err = w.Write(stdf.MustRecord("PTR", stdf.Values{"TEST_NUM": 0x01020304, "RESULT": 2.5}))
		require.NoError(t, err)
	})

	reader, err := NewRecordReader(RecordReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	header := reader.Header()
	assert.Equal(t, binary.BigEndian, header.ByteOrder)
	assert.Equal(t, uint8(1), header.CPUType)
	assert.False(t, header.CPUMismatch)

	_, err = reader.ReadNext()
	require.NoError(t, err)
	ptr, err := reader.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x01020304), ptr.Uint("TEST_NUM"))
	assert.Equal(t, 2.5, ptr.Float("RESULT"))
}

func TestRecordReader_CPUTypeMismatch(t *testing.T) {
	data, err := Marshal(binary.BigEndian, far())
	require.NoError(t, err)

	reader, err := NewRecordReader(RecordReaderConfig{Source: bytes.NewReader(data)})
	require.NoError(t, err)

	assert.Equal(t, binary.BigEndian, reader.Header().ByteOrder)
	assert.True(t, reader.Header().CPUMismatch)
}

func TestRecordReader_RewindAndStartOffset(t *testing.T) {
	data, err := Marshal(binary.LittleEndian,
		far(),
		stdf.MustRecord("PIR", nil),
		stdf.MustRecord("PRR", nil),
	)
	require.NoError(t, err)

	reader, err := NewRecordReader(RecordReaderConfig{Source: bytes.NewReader(data)})
	require.NoError(t, err)

	first := readNames(t, reader)
	require.NoError(t, reader.Rewind())
	assert.Equal(t, int64(0), reader.Offset())
	assert.Equal(t, 0, reader.Stats().Decoded)
	assert.Equal(t, first, readNames(t, reader))

	offsetReader, err := NewRecordReader(RecordReaderConfig{Source: bytes.NewReader(data), StartOffset: 6})
	require.NoError(t, err)
	assert.Equal(t, []string{"PIR", "PRR"}, readNames(t, offsetReader))

	require.NoError(t, reader.SeekTo(6))
	assert.Equal(t, int64(6), reader.Offset())
	assert.Equal(t, []string{"PIR", "PRR"}, readNames(t, reader))
}

func TestRecordReader_OptionalFields(t *testing.T) {
	filePath := writeTestFile(t, binary.LittleEndian, func(w *RecordWriter) {
		_, err := w.Write(far())
		require.NoError(t, err)
		_, err = w.WritePrefix(stdf.MustRecord("PTR", stdf.Values{"TEST_NUM": 5, "RESULT": 1.0, "UNITS": "V"}), 6)
		require.NoError(t, err)
	})

	reader, err := NewRecordReader(RecordReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.ReadNext()
	require.NoError(t, err)
	ptr, err := reader.ReadNext()
	require.NoError(t, err)

	assert.Equal(t, 6, ptr.Present)
	assert.Equal(t, 1.0, ptr.Float("RESULT"))
	assert.Equal(t, "", ptr.Text("UNITS"))

	_, err = reader.ReadNext()
	assert.Equal(t, io.EOF, err)
}
