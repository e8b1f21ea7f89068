// Package storage provides persistence for audit records.
// Records are keyed by request id and move through a review workflow:
// DRAFT -> PENDING_REVIEW -> REVIEWED -> APPROVED | REJECTED.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fibre-cost/core/types"
	ferrors "fibre-cost/internal/errors"
)

// Default limits and analytics window
const (
	DefaultListLimit       = 50
	DefaultStatusListLimit = 200
	DefaultAnalyticsDays   = 30
)

// Store is the audit record collaborator
type Store interface {
	// Save inserts or replaces a record, preserving the original created_at
	Save(ctx context.Context, rec *types.AuditRecord) error

	// Get retrieves a record by request id
	Get(ctx context.Context, requestID string) (*types.AuditRecord, error)

	// UpdateStatus moves a record through the review workflow
	UpdateStatus(ctx context.Context, requestID, status, actor, notes string) (*types.AuditRecord, error)

	// List returns the most recent records, newest first
	List(ctx context.Context, limit int) ([]*types.AuditRecord, error)

	// ListByStatus returns the most recent records with a status, newest first
	ListByStatus(ctx context.Context, status types.AuditStatus, limit int) ([]*types.AuditRecord, error)

	// Analytics summarises records created in the last days
	Analytics(ctx context.Context, days int) (*types.AuditAnalytics, error)

	// Close closes the store
	Close() error
}

// Backend represents a storage backend type
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
	BackendNone     Backend = "none"
)

// Option configures a store
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open creates a store for the given backend. BackendNone returns nil.
func Open(backend Backend, dsn string, opts ...Option) (Store, error) {
	switch backend {
	case BackendSQLite, BackendPostgres:
		return NewGormStore(backend, dsn, opts...)
	case BackendMemory:
		return NewMemoryStore(opts...), nil
	case BackendNone, "":
		return nil, nil
	default:
		return nil, ferrors.Config(fmt.Sprintf("unknown audit backend %q", backend))
	}
}

// applyStatus applies a workflow transition to rec
func applyStatus(rec *types.AuditRecord, status, actor, notes string, now time.Time) error {
	next, ok := types.ParseAuditStatus(status)
	if !ok {
		return ferrors.Input(fmt.Sprintf("unknown audit status %q", status))
	}

	rec.Status = next
	rec.UpdatedAt = now

	switch next {
	case types.AuditReviewed, types.AuditPendingReview:
		rec.Reviewer = actor
		rec.ReviewedAt = &now
	case types.AuditApproved:
		rec.ApprovedBy = actor
		rec.ApprovedAt = &now
	}

	if notes != "" {
		rec.Notes = strings.TrimSpace(rec.Notes + "\n" + notes)
	}
	return nil
}

// mergeExisting carries created_at and the review trail of a stored record
// into a record about to replace it
func mergeExisting(rec, existing *types.AuditRecord) {
	rec.CreatedAt = existing.CreatedAt
	if rec.Reviewer == "" {
		rec.Reviewer = existing.Reviewer
	}
	if rec.ApprovedBy == "" {
		rec.ApprovedBy = existing.ApprovedBy
	}
	if rec.Notes == "" {
		rec.Notes = existing.Notes
	}
	if rec.ReviewedAt == nil {
		rec.ReviewedAt = existing.ReviewedAt
	}
	if rec.ApprovedAt == nil {
		rec.ApprovedAt = existing.ApprovedAt
	}
}

func prepare(rec *types.AuditRecord, now time.Time) error {
	if rec == nil || strings.TrimSpace(rec.RequestID) == "" {
		return ferrors.Input("audit record requires a request id")
	}
	if rec.Status == "" {
		rec.Status = types.AuditDraft
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return nil
}

func summarize(records []*types.AuditRecord, days int) *types.AuditAnalytics {
	out := &types.AuditAnalytics{
		WindowDays: days,
		ByStatus:   make(map[types.AuditStatus]int64),
	}

	var hours float64
	var approved int
	for _, rec := range records {
		out.Total++
		out.ByStatus[rec.Status]++
		if rec.ApprovedAt != nil {
			hours += rec.ApprovedAt.Sub(rec.CreatedAt).Hours()
			approved++
		}
	}
	if approved > 0 {
		avg := hours / float64(approved)
		out.AvgApprovalTurnaround = &avg
	}
	return out
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}

func normalizeDays(days int) int {
	if days <= 0 {
		return DefaultAnalyticsDays
	}
	return days
}

// MemoryStore is an in-memory storage backend (for testing)
type MemoryStore struct {
	records map[string]*types.AuditRecord
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryStore creates a memory store
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		records: make(map[string]*types.AuditRecord),
		now:     o.now,
	}
}

func (s *MemoryStore) Save(ctx context.Context, rec *types.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := prepare(rec, s.now().UTC()); err != nil {
		return err
	}
	if existing, ok := s.records[rec.RequestID]; ok {
		mergeExisting(rec, existing)
	}

	stored := *rec
	s.records[rec.RequestID] = &stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, requestID string) (*types.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[requestID]
	if !ok {
		return nil, ferrors.NotFound("audit record", requestID)
	}
	out := *rec
	return &out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, requestID, status, actor, notes string) (*types.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[requestID]
	if !ok {
		return nil, ferrors.NotFound("audit record", requestID)
	}
	updated := *rec
	if err := applyStatus(&updated, status, actor, notes, s.now().UTC()); err != nil {
		return nil, err
	}
	s.records[requestID] = &updated

	out := updated
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]*types.AuditRecord, error) {
	return s.list(func(*types.AuditRecord) bool { return true }, normalizeLimit(limit, DefaultListLimit)), nil
}

func (s *MemoryStore) ListByStatus(ctx context.Context, status types.AuditStatus, limit int) ([]*types.AuditRecord, error) {
	return s.list(func(rec *types.AuditRecord) bool { return rec.Status == status }, normalizeLimit(limit, DefaultStatusListLimit)), nil
}

func (s *MemoryStore) list(keep func(*types.AuditRecord) bool, limit int) []*types.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*types.AuditRecord, 0, len(s.records))
	for _, rec := range s.records {
		if keep(rec) {
			out := *rec
			results = append(results, &out)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].RequestID < results[j].RequestID
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (s *MemoryStore) Analytics(ctx context.Context, days int) (*types.AuditAnalytics, error) {
	days = normalizeDays(days)
	since := s.now().UTC().AddDate(0, 0, -days)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var window []*types.AuditRecord
	for _, rec := range s.records {
		if !rec.CreatedAt.Before(since) {
			window = append(window, rec)
		}
	}
	return summarize(window, days), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
