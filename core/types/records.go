// Package types - Persisted record types
package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel buckets a risk multiplier for reporting
type RiskLevel string

const (
	RiskHigh   RiskLevel = "High"
	RiskMedium RiskLevel = "Medium"
	RiskLow    RiskLevel = "Low"
)

// HistoricalRecord is the rolling-window summary of one completed run
type HistoricalRecord struct {
	Timestamp       time.Time       `json:"timestamp"`
	RequestID       string          `json:"request_id"`
	Distance        float64         `json:"distance"`
	Premises        int             `json:"premises"`
	Cost            decimal.Decimal `json:"cost"`
	CostTrench      decimal.Decimal `json:"cost_trench"`
	CostFibre       decimal.Decimal `json:"cost_fibre"`
	CostLabour      decimal.Decimal `json:"cost_labour"`
	CostEquipment   decimal.Decimal `json:"cost_equipment"`
	CostOverhead    decimal.Decimal `json:"cost_overhead"`
	CostContingency decimal.Decimal `json:"cost_contingency"`
	Risk            float64         `json:"risk"`
	RiskLevel       RiskLevel       `json:"risk_level"`
}

// AuditStatus is the review workflow state of an audit record
type AuditStatus string

const (
	AuditDraft         AuditStatus = "DRAFT"
	AuditPendingReview AuditStatus = "PENDING_REVIEW"
	AuditReviewed      AuditStatus = "REVIEWED"
	AuditApproved      AuditStatus = "APPROVED"
	AuditRejected      AuditStatus = "REJECTED"
)

// ParseAuditStatus upper-cases and checks a status value
func ParseAuditStatus(s string) (AuditStatus, bool) {
	status := AuditStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case AuditDraft, AuditPendingReview, AuditReviewed, AuditApproved, AuditRejected:
		return status, true
	default:
		return status, false
	}
}

// AuditRecord is the persisted result of one run, keyed by request id
type AuditRecord struct {
	RequestID  string             `json:"request_id"`
	SiteRef    string             `json:"site_ref,omitempty"`
	Status     AuditStatus        `json:"status"`
	Reviewer   string             `json:"reviewer,omitempty"`
	ApprovedBy string             `json:"approved_by,omitempty"`
	Notes      string             `json:"notes,omitempty"`
	Inputs     SiteParams         `json:"inputs"`
	Result     *EstimationRequest `json:"result"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	ReviewedAt *time.Time         `json:"reviewed_at,omitempty"`
	ApprovedAt *time.Time         `json:"approved_at,omitempty"`
}

// AuditAnalytics summarises audit activity over a window
type AuditAnalytics struct {
	WindowDays            int                   `json:"window_days"`
	Total                 int64                 `json:"total"`
	ByStatus              map[AuditStatus]int64 `json:"by_status"`
	AvgApprovalTurnaround *float64              `json:"avg_approval_turnaround_hours"`
}
