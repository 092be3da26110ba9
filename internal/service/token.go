package service

import (
	"context"
	"time"

	"token-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// TokenService 面向调用方的代币服务
type TokenService struct {
	meter    *biz.MeterUseCase
	purchase *biz.PurchaseUseCase
	usage    *biz.UsageUseCase
	resolver biz.IdentityResolver
	log      *log.Helper
}

// NewTokenService 创建 TokenService
func NewTokenService(
	meter *biz.MeterUseCase,
	purchase *biz.PurchaseUseCase,
	usage *biz.UsageUseCase,
	resolver biz.IdentityResolver,
	logger log.Logger,
) *TokenService {
	return &TokenService{
		meter:    meter,
		purchase: purchase,
		usage:    usage,
		resolver: resolver,
		log:      log.NewHelper(logger),
	}
}

// BalanceReply 余额响应
type BalanceReply struct {
	Identity           string `json:"identity"`
	Tier               string `json:"tier"`
	AllocationPool     int64  `json:"allocation_pool"`
	PurchasedPool      int64  `json:"purchased_pool"`
	AllocationCeiling  int64  `json:"allocation_ceiling"`
	ConsumedThisPeriod int64  `json:"consumed_this_period"`
	LastReplenishedOn  string `json:"last_replenished_on"`
	Unlimited          bool   `json:"unlimited"`
	TotalAvailable     int64  `json:"total_available"`
}

// GetBalance 获取当前调用方余额
func (s *TokenService) GetBalance(ctx context.Context) (*BalanceReply, error) {
	caller, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := s.meter.GetBalance(ctx, caller.Identity, caller.Tier)
	if err != nil {
		s.log.Errorf("GetBalance failed: identity=%s, error=%v", caller.Identity, err)
		return nil, err
	}

	return toBalanceReply(balance), nil
}

// SpendRequest 消耗请求
type SpendRequest struct {
	Cost    int64  `json:"cost"`
	Feature string `json:"feature"`
}

// SpendReply 消耗响应
type SpendReply struct {
	FromAllocation      int64 `json:"from_allocation"`
	FromPurchased       int64 `json:"from_purchased"`
	AllocationRemaining int64 `json:"allocation_remaining"`
	PurchasedRemaining  int64 `json:"purchased_remaining"`
	Unlimited           bool  `json:"unlimited"`
}

// Spend 消耗代币
func (s *TokenService) Spend(ctx context.Context, req *SpendRequest) (*SpendReply, error) {
	caller, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.meter.Spend(ctx, caller.Identity, caller.Tier, req.Cost, req.Feature)
	if err != nil {
		s.log.Warnf("Spend failed: identity=%s, cost=%d, error=%v", caller.Identity, req.Cost, err)
		return nil, err
	}

	return &SpendReply{
		FromAllocation:      result.FromAllocation,
		FromPurchased:       result.FromPurchased,
		AllocationRemaining: result.AllocationRemaining,
		PurchasedRemaining:  result.PurchasedRemaining,
		Unlimited:           result.Unlimited,
	}, nil
}

// CreatePurchaseRequest 创建购买订单请求
type CreatePurchaseRequest struct {
	Quantity int64 `json:"quantity"`
}

// CreatePurchaseReply 创建购买订单响应
type CreatePurchaseReply struct {
	OrderID          string `json:"order_id"`
	Quantity         int64  `json:"quantity"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Status           string `json:"status"`
	ExpiresAt        string `json:"expires_at"`
	PayURL           string `json:"pay_url"`
}

// CreatePurchase 创建购买订单并返回支付链接
func (s *TokenService) CreatePurchase(ctx context.Context, req *CreatePurchaseRequest) (*CreatePurchaseReply, error) {
	caller, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	purchase, payURL, err := s.purchase.CreatePurchase(ctx, caller.Identity, caller.Tier, req.Quantity)
	if err != nil {
		s.log.Errorf("CreatePurchase failed: identity=%s, error=%v", caller.Identity, err)
		return nil, err
	}

	return &CreatePurchaseReply{
		OrderID:          purchase.OrderID,
		Quantity:         purchase.Quantity,
		AmountMinorUnits: purchase.AmountMinorUnits,
		Status:           purchase.Status,
		ExpiresAt:        purchase.ExpiresAt.Format(time.RFC3339),
		PayURL:           payURL,
	}, nil
}

// ListPurchasesRequest 购买历史请求
type ListPurchasesRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// PurchaseRecord 购买历史条目
type PurchaseRecord struct {
	ReceiptNo         uint64 `json:"receipt_no"`
	OrderID           string `json:"order_id"`
	QuantityCredited  int64  `json:"quantity_credited"`
	AmountMinorUnits  int64  `json:"amount_minor_units"`
	ProviderPaymentID string `json:"provider_payment_id"`
	CompletedAt       string `json:"completed_at"`
}

// ListPurchasesReply 购买历史响应
type ListPurchasesReply struct {
	Records []*PurchaseRecord `json:"records"`
	Total   int64             `json:"total"`
}

// ListPurchases 获取购买历史
func (s *TokenService) ListPurchases(ctx context.Context, req *ListPurchasesRequest) (*ListPurchasesReply, error) {
	caller, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	records, total, err := s.purchase.ListPurchaseHistory(ctx, caller.Identity, page, pageSize)
	if err != nil {
		s.log.Errorf("ListPurchases failed: identity=%s, error=%v", caller.Identity, err)
		return nil, err
	}

	reply := &ListPurchasesReply{
		Records: make([]*PurchaseRecord, 0, len(records)),
		Total:   total,
	}
	for _, r := range records {
		reply.Records = append(reply.Records, &PurchaseRecord{
			ReceiptNo:         r.ReceiptNo,
			OrderID:           r.OrderID,
			QuantityCredited:  r.QuantityCredited,
			AmountMinorUnits:  r.AmountMinorUnits,
			ProviderPaymentID: r.ProviderPaymentID,
			CompletedAt:       r.CompletedAt.Format(time.RFC3339),
		})
	}
	return reply, nil
}

// ListUsageRequest 用量流水请求
type ListUsageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// UsageRecord 用量流水条目
type UsageRecord struct {
	ID             string `json:"id"`
	Cost           int64  `json:"cost"`
	FromAllocation int64  `json:"from_allocation"`
	FromPurchased  int64  `json:"from_purchased"`
	Feature        string `json:"feature"`
	OccurredAt     string `json:"occurred_at"`
}

// ListUsageReply 用量流水响应
type ListUsageReply struct {
	Records []*UsageRecord `json:"records"`
	Total   int64          `json:"total"`
}

// ListUsage 获取用量流水
func (s *TokenService) ListUsage(ctx context.Context, req *ListUsageRequest) (*ListUsageReply, error) {
	caller, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	entries, total, err := s.usage.ListUsage(ctx, caller.Identity, page, pageSize)
	if err != nil {
		s.log.Errorf("ListUsage failed: identity=%s, error=%v", caller.Identity, err)
		return nil, err
	}

	reply := &ListUsageReply{
		Records: make([]*UsageRecord, 0, len(entries)),
		Total:   total,
	}
	for _, e := range entries {
		reply.Records = append(reply.Records, &UsageRecord{
			ID:             e.ID,
			Cost:           e.Cost,
			FromAllocation: e.FromAllocation,
			FromPurchased:  e.FromPurchased,
			Feature:        e.Feature,
			OccurredAt:     e.OccurredAt.Format(time.RFC3339),
		})
	}
	return reply, nil
}

// FeatureUsageItem 单个功能用量
type FeatureUsageItem struct {
	Feature        string `json:"feature"`
	Count          int64  `json:"count"`
	TotalCost      int64  `json:"total_cost"`
	FromAllocation int64  `json:"from_allocation"`
	FromPurchased  int64  `json:"from_purchased"`
}

// UsageSummaryReply 当前周期用量汇总响应
type UsageSummaryReply struct {
	Identity  string              `json:"identity"`
	TotalCost int64               `json:"total_cost"`
	Features  []*FeatureUsageItem `json:"features"`
}

// GetUsageSummary 获取当前周期用量汇总
func (s *TokenService) GetUsageSummary(ctx context.Context) (*UsageSummaryReply, error) {
	caller, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := s.usage.GetUsageSummary(ctx, caller.Identity)
	if err != nil {
		s.log.Errorf("GetUsageSummary failed: identity=%s, error=%v", caller.Identity, err)
		return nil, err
	}

	reply := &UsageSummaryReply{
		Identity:  summary.Identity,
		TotalCost: summary.TotalCost,
		Features:  make([]*FeatureUsageItem, 0, len(summary.Features)),
	}
	for _, f := range summary.Features {
		reply.Features = append(reply.Features, &FeatureUsageItem{
			Feature:        f.Feature,
			Count:          f.Count,
			TotalCost:      f.TotalCost,
			FromAllocation: f.FromAllocation,
			FromPurchased:  f.FromPurchased,
		})
	}
	return reply, nil
}

// toBalanceReply 领域余额转响应
func toBalanceReply(b *biz.TokenBalance) *BalanceReply {
	unlimited := b.AllocationCeiling < 0
	reply := &BalanceReply{
		Identity:           b.Identity,
		Tier:               b.Tier,
		AllocationPool:     b.AllocationPool,
		PurchasedPool:      b.PurchasedPool,
		AllocationCeiling:  b.AllocationCeiling,
		ConsumedThisPeriod: b.ConsumedThisPeriod,
		LastReplenishedOn:  b.LastReplenishedOn,
		Unlimited:          unlimited,
	}
	if !unlimited {
		reply.TotalAvailable = b.AllocationPool + b.PurchasedPool
	}
	return reply
}

// normalizePage 分页参数兜底
func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
