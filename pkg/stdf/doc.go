// Package stdf provides the record catalog and binary codec for STDF V4
// (Standard Test Data Format) files.
//
// An STDF file is a flat sequence of variable-length records. Each record
// starts with a 4-byte header followed by REC_LEN bytes of payload:
//
//	[REC_LEN(2)][REC_TYP(1)][REC_SUB(1)][payload...]
//
// The pair (REC_TYP, REC_SUB) selects a Schema, the fixed ordered list of
// fields making up the payload. Schemas for every supported record kind are
// registered at init time and can be found with Lookup or SchemaByName.
//
// # Byte Order
//
// Multi-byte integers and floats use the byte order of the machine that
// wrote the file. The first record is always a FAR whose REC_LEN is 2, so
// DetectByteOrder reads the order straight from the first two header bytes.
// The FAR CPU_TYPE field declares the same thing and is kept for reporting
// only; when the two disagree the header wins.
//
// # Field Encodings
//
//   - U1, U2, U4: unsigned integers
//   - I1, I2, I4: signed integers
//   - R4, R8: IEEE floats
//   - C1: one character, a space means empty
//   - Cn: 1-byte length followed by that many characters
//   - B1: one flag byte
//   - Bn: 1-byte length followed by that many bytes
//   - Dn: 2-byte bit count followed by ceil(count/8) bytes
//   - N1: nibble, kxN1 arrays pack two per byte, low nibble first
//
// Array fields (kxTYPE) take their element count from an earlier field of the
// same record.
//
// # Optional Fields
//
// A writer may stop a record early. Fields past the end of the payload are
// not an error: Decode fills them with their zero value and Record.Present
// tells how many leading fields were actually read.
//
// # Usage
//
//	codec := stdf.NewRecordCodec(binary.LittleEndian)
//
//	prr := stdf.MustRecord("PRR", stdf.Values{"HARD_BIN": 1, "SOFT_BIN": 1})
//	encoded, err := codec.Encode(prr)
//	if err != nil {
//	    return err
//	}
//
//	h := codec.DecodeHeader(encoded)
//	schema, _ := stdf.Lookup(h.Typ, h.Sub)
//	record, err := codec.Decode(schema, encoded[stdf.HeaderSize:])
//
// # Error Handling
//
// Decode reports ErrMalformedRecord when a field runs past the payload or
// bytes are left over after the last field. Framing errors (ErrTruncated,
// ErrNotSTDF, ErrUnsupportedVersion, ErrUnknownRecord) are raised by the
// record reader built on top of this package.
//
// # Thread Safety
//
// RecordCodec instances and schemas are safe for concurrent use. Records are
// immutable after decoding.
package stdf
