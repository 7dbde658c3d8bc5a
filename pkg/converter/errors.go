package converter

import (
	"context"
	"errors"
	"io/fs"

	"github.com/stdf2h5/stdf2h5/pkg/stdf"
)

// Error classes reported in logs, metrics and Result.Class
const (
	ClassIO       = "io"
	ClassCorrupt  = "corrupt"
	ClassFormat   = "format"
	ClassOutput   = "output"
	ClassCanceled = "canceled"
	ClassInternal = "internal"
)

// Errors
var (
	ErrOutput   = &ConvertError{"output write failed"}
	ErrInternal = &ConvertError{"internal error"}
	ErrNoPath   = &ConvertError{"empty input path"}
)

// ConvertError represents a conversion error
type ConvertError struct {
	Message string
}

func (e *ConvertError) Error() string {
	return e.Message
}

// Classify maps an error returned by Convert to its class. It returns an
// empty string for nil.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	case errors.Is(err, ErrOutput):
		return ClassOutput
	case errors.Is(err, stdf.ErrTruncated), errors.Is(err, stdf.ErrMalformedRecord):
		return ClassCorrupt
	case errors.Is(err, stdf.ErrNotSTDF), errors.Is(err, stdf.ErrUnsupportedVersion):
		return ClassFormat
	case errors.Is(err, ErrNoPath):
		return ClassIO
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return ClassIO
	}
	return ClassInternal
}
