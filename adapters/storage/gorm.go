package storage

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fibre-cost/core/types"
	ferrors "fibre-cost/internal/errors"
	"fibre-cost/internal/logging"
)

// auditRow is the database shape of an audit record
type auditRow struct {
	ID         uint                     `gorm:"primaryKey;autoIncrement"`
	RequestID  string                   `gorm:"not null;uniqueIndex;type:VARCHAR(64)"`
	SiteRef    string                   `gorm:"type:VARCHAR(255)"`
	Status     string                   `gorm:"not null;index;type:VARCHAR(32)"`
	Reviewer   string                   `gorm:"type:VARCHAR(255)"`
	ApprovedBy string                   `gorm:"type:VARCHAR(255)"`
	Notes      string                   `gorm:"type:TEXT"`
	Inputs     types.SiteParams         `gorm:"serializer:json;type:TEXT"`
	Result     *types.EstimationRequest `gorm:"serializer:json;type:TEXT"`
	CreatedAt  time.Time                `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt  time.Time                `gorm:"autoUpdateTime:false"`
	ReviewedAt *time.Time
	ApprovedAt *time.Time
}

func (auditRow) TableName() string {
	return "audit_requests"
}

func toRow(rec *types.AuditRecord) *auditRow {
	return &auditRow{
		RequestID:  rec.RequestID,
		SiteRef:    rec.SiteRef,
		Status:     string(rec.Status),
		Reviewer:   rec.Reviewer,
		ApprovedBy: rec.ApprovedBy,
		Notes:      rec.Notes,
		Inputs:     rec.Inputs,
		Result:     rec.Result,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
		ReviewedAt: rec.ReviewedAt,
		ApprovedAt: rec.ApprovedAt,
	}
}

func (r *auditRow) record() *types.AuditRecord {
	return &types.AuditRecord{
		RequestID:  r.RequestID,
		SiteRef:    r.SiteRef,
		Status:     types.AuditStatus(r.Status),
		Reviewer:   r.Reviewer,
		ApprovedBy: r.ApprovedBy,
		Notes:      r.Notes,
		Inputs:     r.Inputs,
		Result:     r.Result,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
		ReviewedAt: utcPtr(r.ReviewedAt),
		ApprovedAt: utcPtr(r.ApprovedAt),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// gormWriter routes gorm's own logging through zap
type gormWriter struct {
	log *zap.SugaredLogger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warnf(format, args...)
}

// GormStore is a relational audit store (sqlite or postgres)
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// NewGormStore opens the database and migrates the audit table
func NewGormStore(backend Backend, dsn string, opts ...Option) (*GormStore, error) {
	o := buildOptions(opts)
	log := logging.Named("audit")

	var dia gorm.Dialector
	switch backend {
	case BackendPostgres:
		dia = postgres.Open(dsn)
	case BackendSQLite:
		dia = sqlite.Open(dsn)
	default:
		return nil, ferrors.Config("gorm store supports sqlite and postgres, got " + string(backend))
	}

	newLogger := logger.New(
		gormWriter{log: log.Sugar()},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dia, &gorm.Config{Logger: newLogger, TranslateError: true})
	if err != nil {
		return nil, ferrors.Store("failed to connect audit database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, ferrors.Store("failed to configure audit connections", err)
	}
	if backend == BackendSQLite {
		// sqlite allows one writer; an in-memory database exists per connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}

	if err := db.AutoMigrate(&auditRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, ferrors.Store("failed to migrate audit table", err)
	}

	log.Info("audit store ready", zap.String("backend", string(backend)))
	return &GormStore{db: db, now: o.now, log: log}, nil
}

func (s *GormStore) getDB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) Save(ctx context.Context, rec *types.AuditRecord) error {
	if err := prepare(rec, s.now().UTC()); err != nil {
		return err
	}

	err := s.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		var existing auditRow
		err := tx.Where("request_id = ?", rec.RequestID).Take(&existing).Error
		switch {
		case err == nil:
			mergeExisting(rec, existing.record())
			row := toRow(rec)
			row.ID = existing.ID
			return tx.Save(row).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(toRow(rec)).Error
		default:
			return err
		}
	})
	if err != nil {
		return ferrors.Store("failed to save audit record", err).WithContext("request_id", rec.RequestID)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, requestID string) (*types.AuditRecord, error) {
	var row auditRow
	err := s.getDB(ctx).Where("request_id = ?", requestID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ferrors.NotFound("audit record", requestID)
		}
		return nil, ferrors.Store("failed to load audit record", err)
	}
	return row.record(), nil
}

func (s *GormStore) UpdateStatus(ctx context.Context, requestID, status, actor, notes string) (*types.AuditRecord, error) {
	var updated *types.AuditRecord
	err := s.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		var row auditRow
		if err := tx.Where("request_id = ?", requestID).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ferrors.NotFound("audit record", requestID)
			}
			return err
		}

		rec := row.record()
		if err := applyStatus(rec, status, actor, notes, s.now().UTC()); err != nil {
			return err
		}
		next := toRow(rec)
		next.ID = row.ID
		if err := tx.Save(next).Error; err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		var typed *ferrors.Error
		if errors.As(err, &typed) {
			return nil, err
		}
		return nil, ferrors.Store("failed to update audit status", err)
	}

	s.log.Info("audit status updated",
		zap.String("request_id", requestID),
		zap.String("status", string(updated.Status)))
	return updated, nil
}

func (s *GormStore) List(ctx context.Context, limit int) ([]*types.AuditRecord, error) {
	return s.list(s.getDB(ctx), normalizeLimit(limit, DefaultListLimit))
}

func (s *GormStore) ListByStatus(ctx context.Context, status types.AuditStatus, limit int) ([]*types.AuditRecord, error) {
	return s.list(s.getDB(ctx).Where("status = ?", string(status)), normalizeLimit(limit, DefaultStatusListLimit))
}

func (s *GormStore) list(query *gorm.DB, limit int) ([]*types.AuditRecord, error) {
	var rows []auditRow
	if err := query.Order("created_at DESC").Order("request_id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, ferrors.Store("failed to list audit records", err)
	}

	out := make([]*types.AuditRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].record())
	}
	return out, nil
}

func (s *GormStore) Analytics(ctx context.Context, days int) (*types.AuditAnalytics, error) {
	days = normalizeDays(days)
	since := s.now().UTC().AddDate(0, 0, -days)

	var rows []auditRow
	err := s.getDB(ctx).
		Select("request_id", "status", "created_at", "approved_at").
		Where("created_at >= ?", since).
		Find(&rows).Error
	if err != nil {
		return nil, ferrors.Store("failed to compute audit analytics", err)
	}

	records := make([]*types.AuditRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].record())
	}
	return summarize(records, days), nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
