// Package history keeps a rolling window of completed estimation runs.
//
// Appends are a single read-modify-write under a mutex: concurrent commits
// never both observe the pre-trim length, so the store never exceeds its
// capacity.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"fibre-cost/core/determinism"
	"fibre-cost/core/risk"
	"fibre-cost/core/types"
	ferrors "fibre-cost/internal/errors"
	"fibre-cost/internal/logging"
)

// DefaultCapacity is the documented rolling-window size
const DefaultCapacity = 100

// Overhead and contingency allowances reported alongside each record
const (
	OverheadPercent    = 0.10
	ContingencyPercent = 0.08
)

// Store is the historical record collaborator
type Store interface {
	// Append adds a record, evicting the oldest beyond capacity, and returns the window
	Append(ctx context.Context, rec types.HistoricalRecord) ([]types.HistoricalRecord, error)

	// List returns the window, oldest first
	List(ctx context.Context) ([]types.HistoricalRecord, error)
}

// NewRecord derives a historical record from a completed request
func NewRecord(req *types.EstimationRequest, now time.Time) types.HistoricalRecord {
	return types.HistoricalRecord{
		Timestamp:       now.UTC(),
		RequestID:       req.RequestID,
		Distance:        req.DistanceMeters,
		Premises:        req.PremisesCount,
		Cost:            req.FinalCost,
		CostTrench:      req.CostBreakdown.Get(types.LineCivils),
		CostFibre:       req.CostBreakdown.Get(types.LineFibre),
		CostLabour:      req.CostBreakdown.Get(types.LineLabour),
		CostEquipment:   req.CostBreakdown.Get(types.LineEquipment),
		CostOverhead:    req.BaseCost.Mul(determinism.Dec(OverheadPercent)),
		CostContingency: req.BaseCost.Mul(determinism.Dec(ContingencyPercent)),
		Risk:            req.RiskMultiplier,
		RiskLevel:       risk.Level(req.RiskMultiplier),
	}
}

func trim(records []types.HistoricalRecord, capacity int) []types.HistoricalRecord {
	if len(records) <= capacity {
		return records
	}
	return append([]types.HistoricalRecord(nil), records[len(records)-capacity:]...)
}

func normalizeCapacity(capacity int) int {
	if capacity <= 0 {
		return DefaultCapacity
	}
	return capacity
}

// MemoryStore is an in-memory rolling window
type MemoryStore struct {
	capacity int
	records  []types.HistoricalRecord
	mu       sync.Mutex
}

// NewMemoryStore creates a memory store; a non-positive capacity uses DefaultCapacity
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{capacity: normalizeCapacity(capacity)}
}

// Append adds a record
func (s *MemoryStore) Append(ctx context.Context, rec types.HistoricalRecord) ([]types.HistoricalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = trim(append(s.records, rec), s.capacity)
	return append([]types.HistoricalRecord(nil), s.records...), nil
}

// List returns a copy of the window
func (s *MemoryStore) List(ctx context.Context) ([]types.HistoricalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.HistoricalRecord(nil), s.records...), nil
}

// FileStore keeps the window in a JSON file, rewritten atomically on append.
// A file that no longer decodes is moved aside as <path>.corrupt-<unix> on
// the next append rather than overwritten.
type FileStore struct {
	path     string
	capacity int
	mu       sync.Mutex
	log      *zap.Logger
	now      func() time.Time
}

// NewFileStore creates a file-backed store
func NewFileStore(path string, capacity int) *FileStore {
	return &FileStore{
		path:     path,
		capacity: normalizeCapacity(capacity),
		log:      logging.Named("history"),
		now:      time.Now,
	}
}

// Append adds a record
func (s *FileStore) Append(ctx context.Context, rec types.HistoricalRecord) ([]types.HistoricalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		var corrupt *corruptFileError
		if !errors.As(err, &corrupt) {
			return nil, err
		}
		if err := s.quarantine(corrupt); err != nil {
			return nil, err
		}
		records = nil
	}
	records = trim(append(records, rec), s.capacity)

	if err := s.write(records); err != nil {
		return nil, err
	}
	return records, nil
}

// List returns the window. A corrupt file reads as an empty window.
func (s *FileStore) List(ctx context.Context) ([]types.HistoricalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	var corrupt *corruptFileError
	if errors.As(err, &corrupt) {
		s.log.Warn("history file is corrupt, reading as empty",
			zap.String("path", s.path),
			zap.Error(corrupt.cause))
		return nil, nil
	}
	return records, err
}

type corruptFileError struct {
	cause error
}

func (e *corruptFileError) Error() string {
	return "corrupt history file: " + e.cause.Error()
}

func (e *corruptFileError) Unwrap() error {
	return e.cause
}

// read treats a missing file as an empty window
func (s *FileStore) read() ([]types.HistoricalRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ferrors.Store("read history", err)
	}

	var records []types.HistoricalRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &corruptFileError{cause: err}
	}
	return records, nil
}

// quarantine moves an undecodable history file out of the way so the next
// write starts a fresh window without losing the old bytes.
func (s *FileStore) quarantine(corrupt *corruptFileError) error {
	backup := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := os.Rename(s.path, backup); err != nil {
		return ferrors.Store("move corrupt history aside", err)
	}
	s.log.Warn("history file is corrupt, starting a new window",
		zap.String("path", s.path),
		zap.String("backup", backup),
		zap.Error(corrupt.cause))
	return nil
}

func (s *FileStore) write(records []types.HistoricalRecord) error {
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return ferrors.Store("encode history", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ferrors.Store("create history directory", err)
	}
	tmp, err := os.CreateTemp(dir, ".history.*.tmp")
	if err != nil {
		return ferrors.Store("write history", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ferrors.Store("write history", err)
	}
	if err := tmp.Close(); err != nil {
		return ferrors.Store("write history", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return ferrors.Store("replace history", err)
	}
	return nil
}
