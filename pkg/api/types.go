package api

import (
	"github.com/segmentio/ksuid"

	"github.com/stdf2h5/stdf2h5/pkg/catalog"
	"github.com/stdf2h5/stdf2h5/pkg/converter"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ConvertRequest names the STDF file a converter should read
type ConvertRequest struct {
	Path string `json:"path"`
}

// HandleResponse carries a newly created converter handle
type HandleResponse struct {
	Handle string `json:"handle"`
}

// FinishTResponse carries the MRR finish time of a converter's last run
type FinishTResponse struct {
	FinishT int32 `json:"finish_t"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	Bind   string
	APIKey string
	// InputDir, when set, restricts convert requests to files beneath it
	InputDir string
}

// IConverterRegistry hands out converters behind opaque handles
type IConverterRegistry interface {
	Create() ksuid.KSUID
	Get(id ksuid.KSUID) (*converter.Converter, bool)
	Delete(id ksuid.KSUID) bool
	Len() int
}

// ICatalog reads conversion summaries
type ICatalog interface {
	Get(id ksuid.KSUID) (*catalog.Entry, error)
	List() ([]*catalog.Entry, error)
}

var (
	_ IConverterRegistry = (*converter.Registry)(nil)
	_ ICatalog           = (*catalog.Store)(nil)
)
