package api

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdf2h5/stdf2h5/pkg/catalog"
	"github.com/stdf2h5/stdf2h5/pkg/converter"
	"github.com/stdf2h5/stdf2h5/pkg/recordio"
	"github.com/stdf2h5/stdf2h5/pkg/stdf"
)

const (
	testKey     = "test-key"
	testFinishT = 1700000000
)

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testEnv struct {
	dir      string
	server   *Server
	handler  http.Handler
	registry *converter.Registry
	catalog  *catalog.Store
}

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "api_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// setupTestServer wires a registry, a catalog and fresh metrics behind the
// router
func setupTestServer(t *testing.T, config ServerConfig) *testEnv {
	t.Helper()
	dir := tempDir(t)

	store, err := catalog.Open(filepath.Join(dir, "catalog"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := converter.NewRegistry(converter.Options{
		OutputDir: filepath.Join(dir, "out"),
		Catalog:   store,
	})

	if config.APIKey == "" {
		config.APIKey = testKey
	}
	reg := prometheus.NewRegistry()
	server := NewServer(registry, store, config, NewMetrics(reg))
	return &testEnv{
		dir:      dir,
		server:   server,
		handler:  NewRouter(server, reg),
		registry: registry,
		catalog:  store,
	}
}

func writeSTDF(t *testing.T, path string) {
	t.Helper()
	w, err := recordio.NewRecordWriter(recordio.RecordWriterConfig{FilePath: path, ByteOrder: binary.LittleEndian})
	require.NoError(t, err)
	_, err = w.Write(stdf.MustRecord("FAR", stdf.Values{"CPU_TYPE": 2, "STDF_VER": 4}))
	require.NoError(t, err)
	_, err = w.Write(stdf.MustRecord("MIR", stdf.Values{"LOT_ID": "LOT9", "SETUP_T": 1699999000}))
	require.NoError(t, err)
	_, err = w.Write(stdf.MustRecord("PRR", stdf.Values{"HEAD_NUM": 1, "HARD_BIN": 1, "SOFT_BIN": 1}))
	require.NoError(t, err)
	_, err = w.Write(stdf.MustRecord("MRR", stdf.Values{"FINISH_T": testFinishT}))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-API-Key", testKey)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var resp testResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (e *testEnv) createHandle(t *testing.T) string {
	t.Helper()
	w, resp := e.do(t, http.MethodPost, "/api/v1/converters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var h HandleResponse
	require.NoError(t, json.Unmarshal(resp.Data, &h))
	_, err := ksuid.Parse(h.Handle)
	require.NoError(t, err)
	return h.Handle
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t, ServerConfig{})

	w, resp := env.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"status":"healthy","handles":0,"catalog":true}`, string(resp.Data))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConverterLifecycle(t *testing.T) {
	env := setupTestServer(t, ServerConfig{})
	input := filepath.Join(env.dir, "lot9.stdf")
	writeSTDF(t, input)

	handle := env.createHandle(t)
	assert.Equal(t, 1, env.registry.Len())

	w, resp := env.do(t, http.MethodGet, "/api/v1/converters/"+handle+"/finish_t", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"finish_t":0}`, string(resp.Data))

	w, resp = env.do(t, http.MethodPost, "/api/v1/converters/"+handle+"/convert", ConvertRequest{Path: input})
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	var res converter.Result
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.True(t, res.Success)
	assert.Equal(t, filepath.Join(env.dir, "out", "lot9.h5"), res.Output)
	_, err := os.Stat(res.Output)
	require.NoError(t, err)

	w, resp = env.do(t, http.MethodGet, "/api/v1/converters/"+handle+"/finish_t", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"finish_t":1700000000}`, string(resp.Data))

	// The conversion landed in the catalog
	w, resp = env.do(t, http.MethodGet, "/api/v1/catalog", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []catalog.Entry
	require.NoError(t, json.Unmarshal(resp.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, input, entries[0].Source)
	assert.Equal(t, uint32(testFinishT), entries[0].FinishT)
	require.NotNil(t, entries[0].Lot)
	assert.Equal(t, "LOT9", entries[0].Lot.LotID)

	w, resp = env.do(t, http.MethodGet, "/api/v1/catalog/"+entries[0].ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entry catalog.Entry
	require.NoError(t, json.Unmarshal(resp.Data, &entry))
	assert.Equal(t, entries[0].ID, entry.ID)

	w, _ = env.do(t, http.MethodDelete, "/api/v1/converters/"+handle, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.registry.Len())

	w, _ = env.do(t, http.MethodDelete, "/api/v1/converters/"+handle, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = env.do(t, http.MethodGet, "/api/v1/converters/"+handle+"/finish_t", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConvert_Errors(t *testing.T) {
	env := setupTestServer(t, ServerConfig{})
	handle := env.createHandle(t)

	notSTDF := filepath.Join(env.dir, "notes.stdf")
	require.NoError(t, os.WriteFile(notSTDF, []byte("hello, world"), 0600))

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
		class  string
	}{
		{"invalid handle", "/api/v1/converters/nope/convert", ConvertRequest{Path: notSTDF}, http.StatusBadRequest, ""},
		{"unknown handle", "/api/v1/converters/" + ksuid.New().String() + "/convert", ConvertRequest{Path: notSTDF}, http.StatusNotFound, ""},
		{"invalid json", "/api/v1/converters/" + handle + "/convert", "{", http.StatusBadRequest, ""},
		{"empty path", "/api/v1/converters/" + handle + "/convert", ConvertRequest{}, http.StatusBadRequest, ""},
		{"missing file", "/api/v1/converters/" + handle + "/convert", ConvertRequest{Path: filepath.Join(env.dir, "gone.stdf")}, http.StatusNotFound, converter.ClassIO},
		{"not stdf", "/api/v1/converters/" + handle + "/convert", ConvertRequest{Path: notSTDF}, http.StatusUnprocessableEntity, converter.ClassFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
			if tt.class != "" {
				var res converter.Result
				require.NoError(t, json.Unmarshal(resp.Data, &res))
				assert.Equal(t, tt.class, res.Class)
			}
		})
	}

	w, resp := env.do(t, http.MethodGet, "/api/v1/converters/"+handle+"/finish_t", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"finish_t":0}`, string(resp.Data), "failed conversions leave no finish time")
}

func TestConvert_InputDir(t *testing.T) {
	env := setupTestServer(t, ServerConfig{})
	env.server.config.InputDir = filepath.Join(env.dir, "in")
	input := filepath.Join(env.dir, "in", "lot.stdf")
	writeSTDF(t, input)
	handle := env.createHandle(t)

	w, _ := env.do(t, http.MethodPost, "/api/v1/converters/"+handle+"/convert",
		ConvertRequest{Path: filepath.Join(env.dir, "in", "..", "elsewhere.stdf")})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/v1/converters/"+handle+"/convert", ConvertRequest{Path: input})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConvert_Busy(t *testing.T) {
	env := setupTestServer(t, ServerConfig{})
	handle := env.createHandle(t)
	id, err := ksuid.Parse(handle)
	require.NoError(t, err)

	env.server.busy.Store(id, struct{}{})
	w, _ := env.do(t, http.MethodPost, "/api/v1/converters/"+handle+"/convert", ConvertRequest{Path: "x.stdf"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w, _ = env.do(t, http.MethodDelete, "/api/v1/converters/"+handle, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	env.server.busy.Delete(id)
	w, _ = env.do(t, http.MethodDelete, "/api/v1/converters/"+handle, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteConverter_RacesConvert(t *testing.T) {
	env := setupTestServer(t, ServerConfig{})
	input := filepath.Join(env.dir, "lot.stdf")
	writeSTDF(t, input)
	handle := env.createHandle(t)
	body, err := json.Marshal(ConvertRequest{Path: input})
	require.NoError(t, err)

	serve := func(method, path string, body []byte) int {
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("X-API-Key", testKey)
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		return w.Code
	}

	const n = 8
	deletes := make(chan int, n)
	converts := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			deletes <- serve(http.MethodDelete, "/api/v1/converters/"+handle, nil)
		}()
		go func() {
			defer wg.Done()
			converts <- serve(http.MethodPost, "/api/v1/converters/"+handle+"/convert", body)
		}()
	}
	wg.Wait()
	close(deletes)
	close(converts)

	deleted := 0
	for code := range deletes {
		if code == http.StatusOK {
			deleted++
			continue
		}
		assert.Contains(t, []int{http.StatusNotFound, http.StatusConflict}, code)
	}
	assert.LessOrEqual(t, deleted, 1)
	for code := range converts {
		assert.Contains(t, []int{http.StatusOK, http.StatusNotFound, http.StatusConflict}, code)
	}
	if deleted == 0 {
		// every delete met a running conversion
		assert.Equal(t, http.StatusOK, serve(http.MethodDelete, "/api/v1/converters/"+handle, nil))
	}

	id, err := ksuid.Parse(handle)
	require.NoError(t, err)
	_, busy := env.server.busy.Load(id)
	assert.False(t, busy, "slots are released")
	assert.Equal(t, 0, env.registry.Len())
}

func TestCatalog_Errors(t *testing.T) {
	env := setupTestServer(t, ServerConfig{})

	w, resp := env.do(t, http.MethodGet, "/api/v1/catalog", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))

	w, _ = env.do(t, http.MethodGet, "/api/v1/catalog/not-a-ksuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodGet, "/api/v1/catalog/"+ksuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalog_NotConfigured(t *testing.T) {
	registry := converter.NewRegistry(converter.Options{})
	server := NewServer(registry, nil, ServerConfig{APIKey: testKey}, nil)
	env := &testEnv{server: server, handler: NewRouter(server, nil), registry: registry}

	w, _ := env.do(t, http.MethodGet, "/api/v1/catalog", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w, _ = env.do(t, http.MethodGet, "/api/v1/catalog/"+ksuid.New().String(), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, resp := env.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","handles":0,"catalog":false}`, string(resp.Data))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestServer(t, ServerConfig{})
	env.createHandle(t)
	env.do(t, http.MethodGet, "/api/v1/health", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `stdf2h5_http_requests_total{endpoint="/api/v1/converters",method="POST",status_code="200"} 1`)
	assert.Contains(t, body, `stdf2h5_handle_operations_total{operation="create",status="success"} 1`)
	assert.Contains(t, body, `stdf2h5_handles_live 1`)
	assert.Contains(t, body, `stdf2h5_health_checks_total{status="success"} 1`)
	assert.Contains(t, body, `stdf2h5_auth_requests_total{status="success"} 2`)
}

func TestWithinDir(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/data/in/lot.stdf", true},
		{"/data/in/sub/lot.stdf", true},
		{"/data/in", true},
		{"/data/in/../out/lot.stdf", false},
		{"/data/inbox/lot.stdf", false},
		{"/etc/passwd", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, withinDir("/data/in", tt.path), tt.path)
	}
}
