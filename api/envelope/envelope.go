// Package envelope - Request envelopes for the HTTP API
// Every estimation call is wrapped with a deterministic input hash and the
// caller's transport metadata so runs can be audited and replayed.
package envelope

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"fibre-cost/core/determinism"
	"fibre-cost/core/input"
	"fibre-cost/core/types"
)

// Envelope is the transport context of one API call
type Envelope struct {
	// Operation is the API operation (estimate, scenarios)
	Operation string `json:"operation"`

	// InputHash identifies the site parameters, independent of spelling
	InputHash string `json:"input_hash"`

	// HTTPRequestID is the router-assigned request id
	HTTPRequestID string `json:"http_request_id,omitempty"`

	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// New creates an envelope for r
func New(r *http.Request, operation string, params types.SiteParams) *Envelope {
	return &Envelope{
		Operation:     operation,
		InputHash:     InputHash(params),
		HTTPRequestID: middleware.GetReqID(r.Context()),
		ClientIP:      clientIP(r),
		UserAgent:     r.UserAgent(),
		ReceivedAt:    time.Now().UTC(),
	}
}

// InputHash hashes the fields that affect estimation. Classifications are
// canonicalized first, so "Semi_Urban" and "semi-urban" hash alike.
func InputHash(p types.SiteParams) string {
	canonical := p
	canonical.SiteRef = strings.TrimSpace(p.SiteRef)
	canonical.BuildType = input.LocationKey(p.BuildType)
	canonical.Terrain = input.TerrainKey(p.Terrain)
	canonical.Traffic = input.TrafficKey(p.Traffic)
	canonical.Contractor = strings.ToLower(strings.TrimSpace(p.Contractor))
	canonical.Priority = strings.ToLower(strings.TrimSpace(p.Priority))

	data, _ := json.Marshal(canonical)
	return determinism.ComputeHash(data).Hex()
}

// ShortHash returns first 12 characters of hash
func (e *Envelope) ShortHash() string {
	if len(e.InputHash) >= 12 {
		return e.InputHash[:12]
	}
	return e.InputHash
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
