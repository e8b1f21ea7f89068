package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibre-cost/adapters/storage"
	"fibre-cost/core/catalog"
	"fibre-cost/core/engine"
	"fibre-cost/core/geo"
	"fibre-cost/core/history"
	"fibre-cost/core/oracle"
	"fibre-cost/core/types"
)

const referenceSite = `{"distance": 500, "premises": 68, "build_type": "Urban", "terrain": "Normal", "site_ref": "SITE-1"}`

type fixture struct {
	server  *Server
	audit   *storage.MemoryStore
	history *history.MemoryStore
}

func newFixture(t *testing.T, withAudit bool) *fixture {
	t.Helper()

	dir := t.TempDir()
	catalogs := catalog.NewFileStore(filepath.Join(dir, "cost_catalog.json"), filepath.Join(dir, "versions"))
	_, err := catalogs.Save(context.Background(), catalog.Default())
	require.NoError(t, err)

	hist := history.NewMemoryStore(10)
	f := &fixture{history: hist}

	deps := engine.Dependencies{
		Catalogs: catalogs,
		Oracle:   oracle.Offline(),
		History:  hist,
		Locator:  geo.NewStaticLocator(geo.ReferenceProviders()),
	}
	opts := Options{
		History:  hist,
		Catalogs: catalogs,
		Version:  "test",
	}
	if withAudit {
		f.audit = storage.NewMemoryStore()
		deps.Audit = f.audit
		opts.Audit = f.audit
	}
	opts.Engine = engine.NewEngine(deps, engine.DefaultEngineConfig())

	f.server = NewServer(opts)
	return f
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthAndVersion(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = f.do(http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"api_version":"v1"`)

	rec = f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEstimate(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodPost, "/api/v1/estimate", referenceSite)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EstimateResponse
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.Result)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, resp.Result.RequestID)
	assert.Equal(t, "204750", resp.Result.FinalCost.String())
	assert.Equal(t, "default-1", resp.Metadata.CatalogVersion)
	assert.Len(t, resp.Metadata.InputHash, 64)
	assert.Equal(t, "test", resp.Metadata.EngineVersion)

	saved, err := f.audit.Get(context.Background(), resp.RequestID)
	require.NoError(t, err)
	assert.Equal(t, types.AuditDraft, saved.Status)
	assert.Equal(t, "SITE-1", saved.SiteRef)

	rec = f.do(http.MethodGet, "/api/v1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist HistoryResponse
	decodeBody(t, rec, &hist)
	assert.Equal(t, 1, hist.Count)
	assert.Equal(t, resp.RequestID, hist.Records[0].RequestID)
}

func TestEstimateRejectsBadInput(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"distance":`},
		{"zero distance", `{"distance": 0, "premises": 10, "build_type": "urban"}`},
		{"unknown location", `{"distance": 10, "premises": 10, "build_type": "moon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/v1/estimate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, "INPUT_ERROR", resp.Error.Code)
		})
	}
}

func TestScenarios(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPost, "/api/v1/scenarios", referenceSite)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ScenariosResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Scenarios, 3)
	assert.Equal(t, types.BuildUnderground, resp.Scenarios[0].Method)
	require.NotNil(t, resp.Recommended)
	assert.Equal(t, types.BuildOverhead, resp.Recommended.Method)

	// comparisons are never committed
	records, err := f.history.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAuditWorkflow(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodPost, "/api/v1/estimate", referenceSite)
	require.Equal(t, http.StatusOK, rec.Code)
	var est EstimateResponse
	decodeBody(t, rec, &est)
	id := est.RequestID

	rec = f.do(http.MethodGet, "/api/v1/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list AuditListResponse
	decodeBody(t, rec, &list)
	assert.Equal(t, 1, list.Count)

	rec = f.do(http.MethodPatch, "/api/v1/audit/"+id+"/status", `{"status": "approved", "actor": "bob", "notes": "ok"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated types.AuditRecord
	decodeBody(t, rec, &updated)
	assert.Equal(t, types.AuditApproved, updated.Status)
	assert.Equal(t, "bob", updated.ApprovedBy)
	assert.NotNil(t, updated.ApprovedAt)

	rec = f.do(http.MethodGet, "/api/v1/audit?status=approved", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &list)
	assert.Equal(t, 1, list.Count)

	rec = f.do(http.MethodGet, "/api/v1/audit?status=draft", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &list)
	assert.Zero(t, list.Count)

	rec = f.do(http.MethodGet, "/api/v1/audit/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/audit/analytics?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats types.AuditAnalytics
	decodeBody(t, rec, &stats)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, 7, stats.WindowDays)
	assert.NotNil(t, stats.AvgApprovalTurnaround)
}

func TestAuditErrors(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodGet, "/api/v1/audit/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPatch, "/api/v1/audit/missing/status", `{"status": "APPROVED"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPatch, "/api/v1/audit/missing/status", `{"actor": "bob"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/audit?status=shipped", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/audit?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditDisabled(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/api/v1/audit", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "AUDIT_DISABLED", resp.Error.Code)
}

func TestCatalogRoundTrip(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/api/v1/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Catalog-Fingerprint"))

	upload := catalog.Default()
	upload.Version = "2026-q1"
	upload.UnitCosts[catalog.KeyFibrePerMeter] = 9
	body, err := json.Marshal(upload)
	require.NoError(t, err)

	rec = f.do(http.MethodPut, "/api/v1/catalog", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CatalogUpdateResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "2026-q1", resp.Version)
	assert.NotEmpty(t, resp.Backup)

	rec = f.do(http.MethodGet, "/api/v1/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got catalog.Catalog
	decodeBody(t, rec, &got)
	assert.Equal(t, "2026-q1", got.Version)
	assert.Equal(t, 9.0, got.UnitCosts[catalog.KeyFibrePerMeter])
}

func TestCatalogRejectsInvalidUpload(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPut, "/api/v1/catalog", `{"version": "", "unit_costs": {"fibre_material_per_m": -1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/api/v1/catalog", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/api/v1/catalog", `version = "h1"
unit_costs = { fibre_material_per_m = 8 }`, "Content-Type", "application/hcl")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
