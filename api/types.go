// Package api - API types for deployment estimation
// These types define the contract of the /api/v1 endpoints.
package api

import (
	"fibre-cost/core/types"
)

// ResponseMetadata contains audit/reproducibility metadata
type ResponseMetadata struct {
	InputHash      string `json:"input_hash"`
	EngineVersion  string `json:"engine_version"`
	CatalogVersion string `json:"catalog_version,omitempty"`
	DurationMs     int64  `json:"duration_ms"`
}

// EstimateResponse is the response for POST /api/v1/estimate
type EstimateResponse struct {
	RequestID string                   `json:"request_id"`
	Result    *types.EstimationRequest `json:"result"`
	Metadata  ResponseMetadata         `json:"metadata"`
}

// ScenariosResponse is the response for POST /api/v1/scenarios
type ScenariosResponse struct {
	Scenarios   []types.ScenarioRow `json:"scenarios"`
	Recommended *types.ScenarioRow  `json:"recommended,omitempty"`
	Metadata    ResponseMetadata    `json:"metadata"`
}

// HistoryResponse is the response for GET /api/v1/history
type HistoryResponse struct {
	Records []types.HistoricalRecord `json:"records"`
	Count   int                      `json:"count"`
}

// AuditListResponse is the response for GET /api/v1/audit
type AuditListResponse struct {
	Records []*types.AuditRecord `json:"records"`
	Count   int                  `json:"count"`
}

// StatusUpdateRequest is the body of PATCH /api/v1/audit/{id}/status
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
	Actor  string `json:"actor" validate:"max=255"`
	Notes  string `json:"notes" validate:"max=4096"`
}

// CatalogUpdateResponse is the response for PUT /api/v1/catalog
type CatalogUpdateResponse struct {
	Version     string `json:"version"`
	Fingerprint string `json:"fingerprint"`
	Backup      string `json:"backup,omitempty"`
}

// ErrorBody is the error payload
type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ErrorResponse wraps every non-2xx reply
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
