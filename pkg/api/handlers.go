package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"

	"github.com/stdf2h5/stdf2h5/pkg/catalog"
	"github.com/stdf2h5/stdf2h5/pkg/converter"
)

// Server holds the API server state
type Server struct {
	registry IConverterRegistry
	catalog  ICatalog
	config   ServerConfig
	metrics  *Metrics

	// handles with a conversion in flight
	busy sync.Map
}

// NewServer creates a new API server. catalog and metrics may be nil.
func NewServer(registry IConverterRegistry, catalog ICatalog, config ServerConfig, metrics *Metrics) *Server {
	return &Server{
		registry: registry,
		catalog:  catalog,
		config:   config,
		metrics:  metrics,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]interface{}{
		"status":  "healthy",
		"handles": s.registry.Len(),
		"catalog": s.catalog != nil,
	})
}

func (s *Server) handleCreateConverter(w http.ResponseWriter, r *http.Request) {
	id := s.registry.Create()
	s.metrics.RecordHandleOperation("create", true, s.registry.Len())
	sendSuccess(w, HandleResponse{Handle: id.String()})
}

func (s *Server) handleDeleteConverter(w http.ResponseWriter, r *http.Request) {
	id, ok := handleParam(w, r)
	if !ok {
		return
	}
	// Hold the slot so no conversion starts while the converter goes away
	if _, busy := s.busy.LoadOrStore(id, struct{}{}); busy {
		sendError(w, "Converter is busy", http.StatusConflict)
		return
	}
	defer s.busy.Delete(id)

	if !s.registry.Delete(id) {
		s.metrics.RecordHandleOperation("delete", false, s.registry.Len())
		sendError(w, "Converter not found", http.StatusNotFound)
		return
	}
	s.metrics.RecordHandleOperation("delete", true, s.registry.Len())
	sendSuccess(w, HandleResponse{Handle: id.String()})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	id, ok := handleParam(w, r)
	if !ok {
		return
	}
	c, found := s.registry.Get(id)
	if !found {
		sendError(w, "Converter not found", http.StatusNotFound)
		return
	}

	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		sendError(w, "Path is required", http.StatusBadRequest)
		return
	}
	if s.config.InputDir != "" && !withinDir(s.config.InputDir, req.Path) {
		sendError(w, "Path is outside the input directory", http.StatusForbidden)
		return
	}

	// One conversion per converter at a time
	if _, loaded := s.busy.LoadOrStore(id, struct{}{}); loaded {
		sendError(w, "Converter is busy", http.StatusConflict)
		return
	}
	defer s.busy.Delete(id)
	if _, found := s.registry.Get(id); !found {
		sendError(w, "Converter not found", http.StatusNotFound)
		return
	}

	res := c.ConvertResult(r.Context(), req.Path)
	s.metrics.RecordHandleOperation("convert", res.Success, s.registry.Len())
	if !res.Success {
		sendJSON(w, convertStatus(res.Class), APIResponse{Success: false, Data: res, Error: res.Diagnostic})
		return
	}
	sendSuccess(w, res)
}

func (s *Server) handleFinishT(w http.ResponseWriter, r *http.Request) {
	id, ok := handleParam(w, r)
	if !ok {
		return
	}
	c, found := s.registry.Get(id)
	if !found {
		sendError(w, "Converter not found", http.StatusNotFound)
		return
	}
	sendSuccess(w, FinishTResponse{FinishT: c.GetFinishT()})
}

func (s *Server) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		sendError(w, "Catalog is not configured", http.StatusServiceUnavailable)
		return
	}
	entries, err := s.catalog.List()
	if err != nil {
		sendError(w, "Failed to list catalog: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*catalog.Entry{}
	}
	sendSuccess(w, entries)
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		sendError(w, "Catalog is not configured", http.StatusServiceUnavailable)
		return
	}
	id, err := ksuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, "Invalid catalog id", http.StatusBadRequest)
		return
	}
	entry, err := s.catalog.Get(id)
	if errors.Is(err, catalog.ErrNotFound) {
		sendError(w, "Catalog entry not found", http.StatusNotFound)
		return
	}
	if err != nil {
		sendError(w, "Failed to get catalog entry: "+err.Error(), http.StatusInternalServerError)
		return
	}
	sendSuccess(w, entry)
}

// handleParam parses the {handle} URL parameter, answering 400 when it is
// not a handle
func handleParam(w http.ResponseWriter, r *http.Request) (ksuid.KSUID, bool) {
	id, err := ksuid.Parse(chi.URLParam(r, "handle"))
	if err != nil {
		sendError(w, "Invalid converter handle", http.StatusBadRequest)
		return ksuid.Nil, false
	}
	return id, true
}

func convertStatus(class string) int {
	switch class {
	case converter.ClassIO:
		return http.StatusNotFound
	case converter.ClassCorrupt, converter.ClassFormat:
		return http.StatusUnprocessableEntity
	case converter.ClassCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func withinDir(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
