// Package api - HTTP handlers
// Handlers wrap the engine and stores - they contain NO estimation logic.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"fibre-cost/api/envelope"
	"fibre-cost/core/catalog"
	"fibre-cost/core/engine"
	"fibre-cost/core/types"
	ferrors "fibre-cost/internal/errors"
)

// handleEstimate handles POST /api/v1/estimate
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var params types.SiteParams
	if err := s.decode(w, r, &params); err != nil {
		s.writeError(w, r, err)
		return
	}

	env := envelope.New(r, "estimate", params)
	entry := env.Entry()

	result, err := s.engine.Run(r.Context(), params)
	entry.SetDuration(time.Since(start))
	if err != nil {
		entry.MarkFailed(err)
		s.auditLog.Log(entry)
		s.writeError(w, r, err)
		return
	}
	entry.RequestID = result.RequestID
	s.auditLog.Log(entry)

	s.writeJSON(w, r, EstimateResponse{
		RequestID: result.RequestID,
		Result:    result,
		Metadata: ResponseMetadata{
			InputHash:      env.InputHash,
			EngineVersion:  s.version,
			CatalogVersion: result.CatalogVersion,
			DurationMs:     entry.DurationMs,
		},
	}, http.StatusOK)
}

// handleScenarios handles POST /api/v1/scenarios
func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var params types.SiteParams
	if err := s.decode(w, r, &params); err != nil {
		s.writeError(w, r, err)
		return
	}

	env := envelope.New(r, "scenarios", params)
	entry := env.Entry()

	rows, err := s.engine.CompareScenarios(r.Context(), params)
	entry.SetDuration(time.Since(start))
	if err != nil {
		entry.MarkFailed(err)
		s.auditLog.Log(entry)
		s.writeError(w, r, err)
		return
	}
	s.auditLog.Log(entry)

	resp := ScenariosResponse{
		Scenarios: rows,
		Metadata: ResponseMetadata{
			InputHash:     env.InputHash,
			EngineVersion: s.version,
			DurationMs:    entry.DurationMs,
		},
	}
	if best, ok := engine.Recommend(rows, s.engine.Config().GovernanceRiskThreshold); ok {
		resp.Recommended = &best
	}
	s.writeJSON(w, r, resp, http.StatusOK)
}

// handleHistory handles GET /api/v1/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeErrorCode(w, r, "HISTORY_DISABLED", "history store is not configured", http.StatusServiceUnavailable)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	records, err := s.history.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	if records == nil {
		records = []types.HistoricalRecord{}
	}
	s.writeJSON(w, r, HistoryResponse{Records: records, Count: len(records)}, http.StatusOK)
}

// handleAuditList handles GET /api/v1/audit
func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w, r) {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var records []*types.AuditRecord
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := types.ParseAuditStatus(raw)
		if !ok {
			s.writeError(w, r, ferrors.Input("unknown audit status "+strconv.Quote(raw)))
			return
		}
		records, err = s.audit.ListByStatus(r.Context(), status, limit)
	} else {
		records, err = s.audit.List(r.Context(), limit)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []*types.AuditRecord{}
	}
	s.writeJSON(w, r, AuditListResponse{Records: records, Count: len(records)}, http.StatusOK)
}

// handleAuditGet handles GET /api/v1/audit/{id}
func (s *Server) handleAuditGet(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w, r) {
		return
	}
	rec, err := s.audit.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, rec, http.StatusOK)
}

// handleAuditStatus handles PATCH /api/v1/audit/{id}/status
func (s *Server) handleAuditStatus(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w, r) {
		return
	}

	var req StatusUpdateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validator.Struct(req); err != nil {
		s.writeError(w, r, validationError(err))
		return
	}

	rec, err := s.audit.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Actor, req.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, rec, http.StatusOK)
}

// handleAuditAnalytics handles GET /api/v1/audit/analytics
func (s *Server) handleAuditAnalytics(w http.ResponseWriter, r *http.Request) {
	if !s.auditEnabled(w, r) {
		return
	}
	days, err := queryInt(r, "days")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	stats, err := s.audit.Analytics(r.Context(), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, stats, http.StatusOK)
}

// handleCatalogGet handles GET /api/v1/catalog
func (s *Server) handleCatalogGet(w http.ResponseWriter, r *http.Request) {
	if s.catalogs == nil {
		s.writeErrorCode(w, r, "CATALOG_DISABLED", "catalog store is not configured", http.StatusServiceUnavailable)
		return
	}
	c, err := s.catalogs.Load(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("X-Catalog-Fingerprint", c.Fingerprint().Short())
	s.writeJSON(w, r, c, http.StatusOK)
}

// handleCatalogPut handles PUT /api/v1/catalog. The body is JSON, or HCL
// when the content type says so.
func (s *Server) handleCatalogPut(w http.ResponseWriter, r *http.Request) {
	if s.catalogs == nil {
		s.writeErrorCode(w, r, "CATALOG_DISABLED", "catalog store is not configured", http.StatusServiceUnavailable)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		s.writeError(w, r, ferrors.Wrap(ferrors.TypeInput, "read catalog body", err))
		return
	}

	filename := "upload.json"
	if strings.Contains(r.Header.Get("Content-Type"), "hcl") {
		filename = "upload.hcl"
	}
	c, err := catalog.Decode(data, filename)
	if err != nil {
		s.writeError(w, r, ferrors.Wrap(ferrors.TypeInput, "malformed cost catalog", err))
		return
	}

	backup, err := s.catalogs.Save(r.Context(), c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, CatalogUpdateResponse{
		Version:     c.VersionOrUnknown(),
		Fingerprint: c.Fingerprint().Short(),
		Backup:      backup,
	}, http.StatusOK)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, map[string]interface{}{
		"status":  "healthy",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// handleVersion handles GET /version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, map[string]string{
		"version":     s.version,
		"engine":      "fibre-cost",
		"api_version": "v1",
	}, http.StatusOK)
}

func (s *Server) auditEnabled(w http.ResponseWriter, r *http.Request) bool {
	if s.audit == nil {
		s.writeErrorCode(w, r, "AUDIT_DISABLED", "audit store is not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return ferrors.Wrap(ferrors.TypeInput, "invalid JSON body", err)
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, ferrors.Input(key + " must be a non-negative integer")
	}
	return n, nil
}

func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ferrors.Wrap(ferrors.TypeInput, "invalid request", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return ferrors.Input("invalid request: " + strings.Join(fields, "; "))
}
