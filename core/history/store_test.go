package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibre-cost/core/types"
)

func record(i int) types.HistoricalRecord {
	return types.HistoricalRecord{
		RequestID: fmt.Sprintf("req-%03d", i),
		Distance:  float64(i),
		Cost:      decimal.NewFromInt(int64(i)),
	}
}

func stores(t *testing.T, capacity int) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(capacity),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "memory_store.json"), capacity),
	}
}

func TestAppendEvictsOldestFirst(t *testing.T) {
	const capacity = 10

	for name, store := range stores(t, capacity) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < capacity+5; i++ {
				window, err := store.Append(ctx, record(i))
				require.NoError(t, err)
				assert.LessOrEqual(t, len(window), capacity)
			}

			got, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, got, capacity)

			ids := make(map[string]bool, len(got))
			for _, r := range got {
				ids[r.RequestID] = true
			}
			for i := 0; i < 5; i++ {
				assert.False(t, ids[record(i).RequestID], "record %d should be evicted", i)
			}
			assert.Equal(t, "req-005", got[0].RequestID)
			assert.Equal(t, "req-014", got[capacity-1].RequestID)
		})
	}
}

func TestConcurrentAppendsNeverExceedCapacity(t *testing.T) {
	const capacity = 8

	for name, store := range stores(t, capacity) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 40; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := store.Append(ctx, record(i))
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			got, err := store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, got, capacity)
		})
	}
}

func TestDefaultCapacity(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	for i := 0; i < DefaultCapacity+5; i++ {
		_, err := s.Append(ctx, record(i))
		require.NoError(t, err)
	}
	got, _ := s.List(ctx)
	assert.Len(t, got, DefaultCapacity)
}

func TestFileStoreMovesCorruptFileAside(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory_store.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	s := NewFileStore(path, 5)
	s.now = func() time.Time { return time.Unix(1750000000, 0) }

	window, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, window)

	window, err = s.Append(context.Background(), record(1))
	require.NoError(t, err)
	assert.Len(t, window, 1)

	backup, err := os.ReadFile(path + ".corrupt-1750000000")
	require.NoError(t, err)
	assert.Equal(t, "not json", string(backup))

	window, err = s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, record(1).RequestID, window[0].RequestID)
}

func TestNewRecord(t *testing.T) {
	req := &types.EstimationRequest{
		RequestID:      "abc",
		DistanceMeters: 500,
		PremisesCount:  68,
		CostBreakdown: types.Breakdown{
			{Name: types.LineFibre, Amount: decimal.NewFromInt(4000)},
			{Name: types.LineCivils, Amount: decimal.NewFromInt(12500)},
			{Name: types.LineLabour, Amount: decimal.NewFromInt(5000)},
			{Name: types.LineEquipment, Amount: decimal.NewFromInt(136000)},
		},
		BaseCost:       decimal.NewFromInt(157500),
		FinalCost:      decimal.NewFromInt(204750),
		RiskMultiplier: 1.3,
	}
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	rec := NewRecord(req, now)
	assert.Equal(t, now, rec.Timestamp)
	assert.True(t, rec.Cost.Equal(decimal.NewFromInt(204750)))
	assert.True(t, rec.CostTrench.Equal(decimal.NewFromInt(12500)))
	assert.True(t, rec.CostOverhead.Equal(decimal.NewFromInt(15750)))
	assert.True(t, rec.CostContingency.Equal(decimal.NewFromInt(12600)))
	assert.Equal(t, types.RiskLow, rec.RiskLevel)
}
