package biz

import (
	"context"
	"testing"
	"time"

	"token-service/internal/conf"
	"token-service/internal/constants"
	tokenErrors "token-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePurchaseRepo 内存购买订单 repo
type fakePurchaseRepo struct {
	purchases    map[string]*PendingPurchase
	confirmCalls int
	failedOrders []string
}

func newFakePurchaseRepo() *fakePurchaseRepo {
	return &fakePurchaseRepo{purchases: make(map[string]*PendingPurchase)}
}

func (f *fakePurchaseRepo) CreatePendingPurchase(ctx context.Context, p *PendingPurchase) (*PendingPurchase, error) {
	if existing, ok := f.purchases[p.OrderID]; ok {
		return existing, nil
	}
	f.purchases[p.OrderID] = p
	return p, nil
}

func (f *fakePurchaseRepo) GetPurchaseByOrderID(ctx context.Context, orderID string) (*PendingPurchase, error) {
	return f.purchases[orderID], nil
}

func (f *fakePurchaseRepo) ConfirmPurchase(ctx context.Context, orderID, providerPaymentID string, limit PlanLimit, today string) (bool, error) {
	f.confirmCalls++
	p := f.purchases[orderID]
	if p.Status == constants.PurchaseStatusCompleted {
		return false, nil
	}
	p.Status = constants.PurchaseStatusCompleted
	p.ProviderPaymentID = providerPaymentID
	return true, nil
}

func (f *fakePurchaseRepo) MarkPurchaseFailed(ctx context.Context, orderID, reason string) error {
	f.failedOrders = append(f.failedOrders, orderID)
	if p, ok := f.purchases[orderID]; ok && p.Status != constants.PurchaseStatusCompleted {
		p.Status = constants.PurchaseStatusFailed
		p.FailureReason = reason
	}
	return nil
}

func (f *fakePurchaseRepo) ExpirePendingPurchases(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	for _, p := range f.purchases {
		if p.Status == constants.PurchaseStatusPending && p.ExpiresAt.Before(now) {
			p.Status = constants.PurchaseStatusExpired
			count++
		}
	}
	return count, nil
}

func (f *fakePurchaseRepo) ListPurchaseHistory(ctx context.Context, identity string, page, pageSize int) ([]*PurchaseHistory, int64, error) {
	return nil, 0, nil
}

// fakeGateway 记录网关下单请求
type fakeGateway struct {
	err      error
	requests []*CreateOrderRequest
}

func (f *fakeGateway) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderReply, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &CreateOrderReply{ProviderOrderID: "prov_" + req.OrderID, PayURL: "https://pay.example.com/" + req.OrderID}, nil
}

func newTestPurchase(repo PurchaseRepo, gateway PaymentGateway) *PurchaseUseCase {
	c := &conf.Bootstrap{
		Plans: &conf.Plans{
			Ceilings: map[string]int64{"free": 2000, "premium": -1},
		},
		Gateway: &conf.Gateway{
			TokenPriceMinorUnits: 2,
			PendingTTL:           "15m",
			NotifyURL:            "http://token-service/v1/purchases/callback",
		},
	}
	return NewPurchaseUseCase(repo, NewPlanCatalog(&conf.Bootstrap{Plans: c.Plans}), gateway, c, log.DefaultLogger)
}

func TestCreatePurchase(t *testing.T) {
	repo := newFakePurchaseRepo()
	gateway := &fakeGateway{}
	uc := newTestPurchase(repo, gateway)

	purchase, payURL, err := uc.CreatePurchase(context.Background(), "user-1", "free", 100)
	require.NoError(t, err)
	assert.Equal(t, constants.PurchaseStatusPending, purchase.Status)
	assert.Equal(t, int64(200), purchase.AmountMinorUnits, "amount = quantity * unit price")
	assert.Contains(t, purchase.OrderID, constants.OrderIDPrefixTokens)
	assert.NotEmpty(t, payURL)

	require.Len(t, gateway.requests, 1)
	assert.Equal(t, purchase.OrderID, gateway.requests[0].OrderID)
	assert.NotEmpty(t, gateway.requests[0].NotifyURL)
}

func TestCreatePurchaseRejectsNonPositiveQuantity(t *testing.T) {
	uc := newTestPurchase(newFakePurchaseRepo(), &fakeGateway{})

	_, _, err := uc.CreatePurchase(context.Background(), "user-1", "free", 0)
	require.Error(t, err)
	assert.True(t, tokenErrors.IsInvalidInput(err))
}

func TestCreatePurchaseWithoutGateway(t *testing.T) {
	uc := newTestPurchase(newFakePurchaseRepo(), nil)

	_, _, err := uc.CreatePurchase(context.Background(), "user-1", "free", 10)
	require.Error(t, err)
}

func TestCreatePurchaseGatewayFailureLeavesOrderPending(t *testing.T) {
	repo := newFakePurchaseRepo()
	gateway := &fakeGateway{err: context.DeadlineExceeded}
	uc := newTestPurchase(repo, gateway)

	_, _, err := uc.CreatePurchase(context.Background(), "user-1", "free", 10)
	require.Error(t, err)

	// 订单留在 pending，由过期清理收尾
	require.Len(t, repo.purchases, 1)
	for _, p := range repo.purchases {
		assert.Equal(t, constants.PurchaseStatusPending, p.Status)
	}
}

func TestHandleCallbackSuccess(t *testing.T) {
	repo := newFakePurchaseRepo()
	uc := newTestPurchase(repo, &fakeGateway{})

	purchase, _, err := uc.CreatePurchase(context.Background(), "user-1", "free", 10)
	require.NoError(t, err)

	err = uc.HandleCallback(context.Background(), purchase.OrderID, "pay_123", constants.PaymentOutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.confirmCalls)
	assert.Equal(t, constants.PurchaseStatusCompleted, repo.purchases[purchase.OrderID].Status)
}

func TestHandleCallbackDuplicateShortCircuits(t *testing.T) {
	repo := newFakePurchaseRepo()
	uc := newTestPurchase(repo, &fakeGateway{})

	purchase, _, err := uc.CreatePurchase(context.Background(), "user-1", "free", 10)
	require.NoError(t, err)

	require.NoError(t, uc.HandleCallback(context.Background(), purchase.OrderID, "pay_123", constants.PaymentOutcomeSuccess))
	// 重复回调必须成功返回且不再走确认事务
	require.NoError(t, uc.HandleCallback(context.Background(), purchase.OrderID, "pay_123", constants.PaymentOutcomeSuccess))
	assert.Equal(t, 1, repo.confirmCalls)
}

func TestHandleCallbackFailureMarksOrder(t *testing.T) {
	repo := newFakePurchaseRepo()
	uc := newTestPurchase(repo, &fakeGateway{})

	purchase, _, err := uc.CreatePurchase(context.Background(), "user-1", "free", 10)
	require.NoError(t, err)

	err = uc.HandleCallback(context.Background(), purchase.OrderID, "pay_123", constants.PaymentOutcomeFailure)
	require.NoError(t, err)
	assert.Equal(t, constants.PurchaseStatusFailed, repo.purchases[purchase.OrderID].Status)
	assert.Zero(t, repo.confirmCalls)
}

func TestHandleCallbackUnknownOrder(t *testing.T) {
	uc := newTestPurchase(newFakePurchaseRepo(), &fakeGateway{})

	err := uc.HandleCallback(context.Background(), "tokens_missing_1", "pay_123", constants.PaymentOutcomeSuccess)
	require.Error(t, err)
	assert.True(t, tokenErrors.IsPurchaseNotFound(err))
}

func TestHandleCallbackRequiresIDs(t *testing.T) {
	uc := newTestPurchase(newFakePurchaseRepo(), &fakeGateway{})

	err := uc.HandleCallback(context.Background(), "", "pay_123", constants.PaymentOutcomeSuccess)
	require.Error(t, err)
	assert.True(t, tokenErrors.IsInvalidInput(err))

	err = uc.HandleCallback(context.Background(), "tokens_x_1", "", constants.PaymentOutcomeSuccess)
	require.Error(t, err)
	assert.True(t, tokenErrors.IsInvalidInput(err))
}

func TestExpirePendingPurchases(t *testing.T) {
	repo := newFakePurchaseRepo()
	uc := newTestPurchase(repo, &fakeGateway{})

	repo.purchases["tokens_a_1"] = &PendingPurchase{
		OrderID:   "tokens_a_1",
		Status:    constants.PurchaseStatusPending,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	repo.purchases["tokens_a_2"] = &PendingPurchase{
		OrderID:   "tokens_a_2",
		Status:    constants.PurchaseStatusPending,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	count, err := uc.ExpirePendingPurchases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, constants.PurchaseStatusExpired, repo.purchases["tokens_a_1"].Status)
	assert.Equal(t, constants.PurchaseStatusPending, repo.purchases["tokens_a_2"].Status)
}
