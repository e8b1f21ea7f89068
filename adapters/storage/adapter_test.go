package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibre-cost/core/types"
	ferrors "fibre-cost/internal/errors"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

// backends runs fn against every store implementation
func backends(t *testing.T, fn func(t *testing.T, s Store, c *clock)) {
	t.Run("memory", func(t *testing.T) {
		c := newClock()
		fn(t, NewMemoryStore(WithClock(c.now)), c)
	})

	t.Run("sqlite", func(t *testing.T) {
		c := newClock()
		s, err := NewGormStore(BackendSQLite, ":memory:", WithClock(c.now))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s, c)
	})
}

func record(id string) *types.AuditRecord {
	return &types.AuditRecord{
		RequestID: id,
		SiteRef:   "SITE-" + id,
		Inputs:    types.SiteParams{Distance: 500, Premises: 68, BuildType: "urban"},
		Result: &types.EstimationRequest{
			RequestID: id,
			FinalCost: decimal.NewFromInt(204750),
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	backends(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, record("r1")))

		got, err := s.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "SITE-r1", got.SiteRef)
		assert.Equal(t, types.AuditDraft, got.Status)
		assert.Equal(t, 68, got.Inputs.Premises)
		require.NotNil(t, got.Result)
		assert.True(t, got.Result.FinalCost.Equal(decimal.NewFromInt(204750)))
		assert.True(t, got.CreatedAt.Equal(c.now()))
	})
}

func TestSavePreservesCreatedAt(t *testing.T) {
	backends(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()
		created := c.now()
		require.NoError(t, s.Save(ctx, record("r1")))

		c.advance(2 * time.Hour)
		rec := record("r1")
		rec.SiteRef = "SITE-renamed"
		require.NoError(t, s.Save(ctx, rec))

		got, err := s.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "SITE-renamed", got.SiteRef)
		assert.True(t, got.CreatedAt.Equal(created))
		assert.True(t, got.UpdatedAt.Equal(c.now()))

		all, err := s.List(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestSaveRequiresRequestID(t *testing.T) {
	backends(t, func(t *testing.T, s Store, c *clock) {
		err := s.Save(context.Background(), &types.AuditRecord{})
		require.Error(t, err)
		assert.True(t, ferrors.IsType(err, ferrors.TypeInput))
	})
}

func TestGetMissing(t *testing.T) {
	backends(t, func(t *testing.T, s Store, c *clock) {
		_, err := s.Get(context.Background(), "nope")
		require.Error(t, err)
		assert.True(t, ferrors.IsType(err, ferrors.TypeNotFound))
	})
}

func TestUpdateStatusWorkflow(t *testing.T) {
	backends(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, record("r1")))

		c.advance(time.Hour)
		rec, err := s.UpdateStatus(ctx, "r1", "reviewed", "alice", "looks fine")
		require.NoError(t, err)
		assert.Equal(t, types.AuditReviewed, rec.Status)
		assert.Equal(t, "alice", rec.Reviewer)
		require.NotNil(t, rec.ReviewedAt)
		assert.True(t, rec.ReviewedAt.Equal(c.now()))
		assert.Nil(t, rec.ApprovedAt)

		c.advance(time.Hour)
		rec, err = s.UpdateStatus(ctx, "r1", "APPROVED", "bob", "ship it")
		require.NoError(t, err)
		assert.Equal(t, types.AuditApproved, rec.Status)
		assert.Equal(t, "alice", rec.Reviewer)
		assert.Equal(t, "bob", rec.ApprovedBy)
		require.NotNil(t, rec.ApprovedAt)
		assert.Equal(t, "looks fine\nship it", rec.Notes)

		got, err := s.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, types.AuditApproved, got.Status)
		assert.Equal(t, "looks fine\nship it", got.Notes)

		// a re-save keeps the review trail
		c.advance(time.Minute)
		require.NoError(t, s.Save(ctx, record("r1")))
		got, err = s.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "bob", got.ApprovedBy)
		assert.NotNil(t, got.ApprovedAt)
	})
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	backends(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, record("r1")))

		_, err := s.UpdateStatus(ctx, "r1", "SHIPPED", "alice", "")
		require.Error(t, err)
		assert.True(t, ferrors.IsType(err, ferrors.TypeInput))

		_, err = s.UpdateStatus(ctx, "missing", "APPROVED", "alice", "")
		require.Error(t, err)
		assert.True(t, ferrors.IsType(err, ferrors.TypeNotFound))

		got, err := s.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, types.AuditDraft, got.Status)
	})
}

func TestListNewestFirst(t *testing.T) {
	backends(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, s.Save(ctx, record(id)))
			c.advance(time.Minute)
		}
		_, err := s.UpdateStatus(ctx, "b", "PENDING_REVIEW", "alice", "")
		require.NoError(t, err)

		all, err := s.List(ctx, 2)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "c", all[0].RequestID)
		assert.Equal(t, "b", all[1].RequestID)

		pending, err := s.ListByStatus(ctx, types.AuditPendingReview, 0)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "b", pending[0].RequestID)

		drafts, err := s.ListByStatus(ctx, types.AuditDraft, 0)
		require.NoError(t, err)
		assert.Len(t, drafts, 2)
	})
}

func TestAnalytics(t *testing.T) {
	backends(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()

		empty, err := s.Analytics(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, DefaultAnalyticsDays, empty.WindowDays)
		assert.Zero(t, empty.Total)
		assert.Nil(t, empty.AvgApprovalTurnaround)

		require.NoError(t, s.Save(ctx, record("old")))
		c.advance(45 * 24 * time.Hour)

		require.NoError(t, s.Save(ctx, record("a")))
		require.NoError(t, s.Save(ctx, record("b")))
		require.NoError(t, s.Save(ctx, record("c")))

		c.advance(2 * time.Hour)
		_, err = s.UpdateStatus(ctx, "a", "APPROVED", "bob", "")
		require.NoError(t, err)
		c.advance(2 * time.Hour)
		_, err = s.UpdateStatus(ctx, "b", "APPROVED", "bob", "")
		require.NoError(t, err)

		stats, err := s.Analytics(ctx, 30)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.Total)
		assert.Equal(t, int64(2), stats.ByStatus[types.AuditApproved])
		assert.Equal(t, int64(1), stats.ByStatus[types.AuditDraft])
		require.NotNil(t, stats.AvgApprovalTurnaround)
		assert.InDelta(t, 3.0, *stats.AvgApprovalTurnaround, 1e-9)
	})
}

func TestOpen(t *testing.T) {
	s, err := Open(BackendNone, "")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(BackendMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open("mongo", "")
	require.Error(t, err)
	assert.True(t, ferrors.IsType(err, ferrors.TypeConfig))
}
