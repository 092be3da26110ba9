package data

import (
	"context"
	"sync"
	"testing"

	"token-service/internal/biz"
	tokenErrors "token-service/internal/errors"
	"token-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const today = "2024-11-30"

func newTestBalanceRepo(t *testing.T) (biz.BalanceRepo, *Data) {
	t.Helper()
	data := newTestData(t)
	return NewBalanceRepo(data, log.DefaultLogger), data
}

func TestGetOrCreateInitializesFullAllocation(t *testing.T) {
	repo, _ := newTestBalanceRepo(t)
	limit := biz.PlanLimit{Ceiling: 1000}

	balance, err := repo.GetOrCreate(context.Background(), "user-1", "free", limit, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance.AllocationPool)
	assert.Equal(t, int64(0), balance.PurchasedPool)
	assert.Equal(t, today, balance.LastReplenishedOn)
}

func TestGetOrCreateReplenishesOnRead(t *testing.T) {
	repo, data := newTestBalanceRepo(t)
	limit := biz.PlanLimit{Ceiling: 1000}

	_, err := repo.GetOrCreate(context.Background(), "user-1", "free", limit, today)
	require.NoError(t, err)

	// 消耗一部分
	_, err = repo.Debit(context.Background(), "user-1", "free", limit, 600, today)
	require.NoError(t, err)

	// 次日的只读访问必须把重置落库
	balance, err := repo.GetOrCreate(context.Background(), "user-1", "free", limit, "2024-12-01")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance.AllocationPool)
	assert.Equal(t, int64(0), balance.ConsumedThisPeriod)
	assert.Equal(t, "2024-12-01", balance.LastReplenishedOn)

	var m model.TokenBalance
	require.NoError(t, data.db.Where("identity = ? AND tier = ?", "user-1", "free").First(&m).Error)
	assert.Equal(t, int64(1000), m.AllocationPool, "reset must be persisted, not computed on the fly")
	assert.Equal(t, "2024-12-01", m.LastReplenishedOn)
}

func TestReplenishDoesNotTouchPurchasedPool(t *testing.T) {
	repo, _ := newTestBalanceRepo(t)
	limit := biz.PlanLimit{Ceiling: 1000}

	_, err := repo.Credit(context.Background(), "user-1", "free", limit, 500, today)
	require.NoError(t, err)

	balance, err := repo.GetOrCreate(context.Background(), "user-1", "free", limit, "2024-12-01")
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance.PurchasedPool, "purchased tokens never expire")
	assert.Equal(t, int64(1000), balance.AllocationPool)
}

func TestDebitDrawsAllocationFirst(t *testing.T) {
	repo, _ := newTestBalanceRepo(t)
	limit := biz.PlanLimit{Ceiling: 100}

	_, err := repo.Credit(context.Background(), "user-1", "free", limit, 50, today)
	require.NoError(t, err)

	result, err := repo.Debit(context.Background(), "user-1", "free", limit, 120, today)
	require.NoError(t, err)
	assert.Equal(t, int64(100), result.FromAllocation)
	assert.Equal(t, int64(20), result.FromPurchased)
	assert.Equal(t, int64(0), result.AllocationRemaining)
	assert.Equal(t, int64(30), result.PurchasedRemaining)
}

func TestDebitInsufficientIsNoOp(t *testing.T) {
	repo, data := newTestBalanceRepo(t)
	limit := biz.PlanLimit{Ceiling: 3}

	_, err := repo.Credit(context.Background(), "user-1", "free", limit, 5, today)
	require.NoError(t, err)

	// 3 + 5 < 10：整笔拒绝，不做部分扣减
	result, err := repo.Debit(context.Background(), "user-1", "free", limit, 10, today)
	require.Error(t, err)
	assert.True(t, tokenErrors.IsInsufficientBalance(err))
	assert.Equal(t, int64(3), result.AllocationRemaining)
	assert.Equal(t, int64(5), result.PurchasedRemaining)

	var m model.TokenBalance
	require.NoError(t, data.db.Where("identity = ? AND tier = ?", "user-1", "free").First(&m).Error)
	assert.Equal(t, int64(3), m.AllocationPool)
	assert.Equal(t, int64(5), m.PurchasedPool)
	assert.Equal(t, int64(0), m.ConsumedThisPeriod)
}

func TestDebitInsufficientStillCommitsReplenish(t *testing.T) {
	repo, data := newTestBalanceRepo(t)
	limit := biz.PlanLimit{Ceiling: 10}

	_, err := repo.GetOrCreate(context.Background(), "user-1", "free", limit, today)
	require.NoError(t, err)
	_, err = repo.Debit(context.Background(), "user-1", "free", limit, 10, today)
	require.NoError(t, err)

	// 次日：补给重置后仍不足的扣减要保留已落库的重置
	_, err = repo.Debit(context.Background(), "user-1", "free", limit, 100, "2024-12-01")
	require.Error(t, err)
	assert.True(t, tokenErrors.IsInsufficientBalance(err))

	var m model.TokenBalance
	require.NoError(t, data.db.Where("identity = ? AND tier = ?", "user-1", "free").First(&m).Error)
	assert.Equal(t, int64(10), m.AllocationPool)
	assert.Equal(t, "2024-12-01", m.LastReplenishedOn)
}

func TestDebitUnlimitedTier(t *testing.T) {
	repo, data := newTestBalanceRepo(t)
	limit := biz.PlanLimit{Ceiling: -1, Unlimited: true}

	result, err := repo.Debit(context.Background(), "user-1", "premium", limit, 100000, today)
	require.NoError(t, err)
	assert.True(t, result.Unlimited)
	assert.Equal(t, int64(0), result.FromAllocation)
	assert.Equal(t, int64(0), result.FromPurchased)

	var m model.TokenBalance
	require.NoError(t, data.db.Where("identity = ? AND tier = ?", "user-1", "premium").First(&m).Error)
	assert.Equal(t, int64(0), m.AllocationPool)
	assert.Equal(t, int64(0), m.ConsumedThisPeriod)
}

func TestCreditThenDebitConservation(t *testing.T) {
	repo, _ := newTestBalanceRepo(t)
	limit := biz.PlanLimit{Ceiling: 100}

	balance, err := repo.Credit(context.Background(), "user-1", "free", limit, 40, today)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance.PurchasedPool)

	result, err := repo.Debit(context.Background(), "user-1", "free", limit, 90, today)
	require.NoError(t, err)
	assert.Equal(t, int64(90), result.FromAllocation+result.FromPurchased)
	assert.Equal(t, int64(50), result.AllocationRemaining+result.PurchasedRemaining)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	repo, data := newTestBalanceRepo(t)
	limit := biz.PlanLimit{Ceiling: 100}

	_, err := repo.GetOrCreate(context.Background(), "user-1", "free", limit, today)
	require.NoError(t, err)

	const workers = 20
	const cost = 10

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Debit(context.Background(), "user-1", "free", limit, cost, today)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, tokenErrors.IsInsufficientBalance(err) || tokenErrors.IsConcurrentModification(err))
		}
	}
	assert.Equal(t, 10, succeeded, "exactly ceiling/cost debits may succeed")

	var m model.TokenBalance
	require.NoError(t, data.db.Where("identity = ? AND tier = ?", "user-1", "free").First(&m).Error)
	assert.Equal(t, int64(0), m.AllocationPool)
	assert.GreaterOrEqual(t, m.PurchasedPool, int64(0), "pools must never go negative")
}
