package data

import (
	"context"
	"testing"
	"time"

	"token-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUsageRepo(t *testing.T) biz.UsageRepo {
	t.Helper()
	return NewUsageRepo(newTestData(t), log.DefaultLogger)
}

func usageEvent(id string, cost int64, feature string, occurredAt time.Time) *biz.UsageEvent {
	return &biz.UsageEvent{
		EntryID:        id,
		Identity:       "user-1",
		Tier:           "free",
		Cost:           cost,
		FromAllocation: cost,
		Feature:        feature,
		OccurredAt:     occurredAt,
	}
}

func TestAppendAndListUsage(t *testing.T) {
	repo := newTestUsageRepo(t)
	now := time.Now()

	for i := 0; i < 3; i++ {
		err := repo.AppendUsage(context.Background(), &biz.UsageEntry{
			Identity:       "user-1",
			Tier:           "free",
			Cost:           10,
			FromAllocation: 10,
			Feature:        "chat",
			OccurredAt:     now.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	entries, total, err := repo.ListUsage(context.Background(), "user-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, entries, 2)
	// 最新的在前
	assert.True(t, entries[0].OccurredAt.After(entries[1].OccurredAt))

	entries, _, err = repo.ListUsage(context.Background(), "someone-else", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBatchAppendUsageSkipsDuplicates(t *testing.T) {
	repo := newTestUsageRepo(t)
	now := time.Now()

	events := []*biz.UsageEvent{
		usageEvent("entry-1", 10, "chat", now),
		usageEvent("entry-2", 20, "search", now),
	}
	require.NoError(t, repo.BatchAppendUsage(context.Background(), events))

	// MQ 至少一次送达：重复批次不得报错也不得翻倍
	require.NoError(t, repo.BatchAppendUsage(context.Background(), events))

	_, total, err := repo.ListUsage(context.Background(), "user-1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestBatchAppendUsageEmpty(t *testing.T) {
	repo := newTestUsageRepo(t)
	require.NoError(t, repo.BatchAppendUsage(context.Background(), nil))
}

func TestGetUsageSummaryGroupsByFeature(t *testing.T) {
	repo := newTestUsageRepo(t)
	now := time.Now()

	require.NoError(t, repo.BatchAppendUsage(context.Background(), []*biz.UsageEvent{
		usageEvent("entry-1", 10, "chat", now),
		usageEvent("entry-2", 30, "chat", now),
		usageEvent("entry-3", 5, "search", now),
		// 昨天的记录不进当前周期汇总
		usageEvent("entry-4", 100, "chat", now.Add(-25*time.Hour)),
	}))

	summary, err := repo.GetUsageSummary(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(45), summary.TotalCost)
	require.Len(t, summary.Features, 2)

	byFeature := make(map[string]*biz.FeatureUsage)
	for _, f := range summary.Features {
		byFeature[f.Feature] = f
	}
	require.Contains(t, byFeature, "chat")
	assert.Equal(t, int64(2), byFeature["chat"].Count)
	assert.Equal(t, int64(40), byFeature["chat"].TotalCost)
	require.Contains(t, byFeature, "search")
	assert.Equal(t, int64(5), byFeature["search"].TotalCost)
}
