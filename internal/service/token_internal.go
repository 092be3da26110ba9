package service

import (
	"context"

	"token-service/internal/biz"
	tokenErrors "token-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// TokenInternalService 内部服务：发放与支付回调
// 部署时只暴露给内网与支付网关，不对外
type TokenInternalService struct {
	meter    *biz.MeterUseCase
	purchase *biz.PurchaseUseCase
	log      *log.Helper
}

// NewTokenInternalService 创建 TokenInternalService
func NewTokenInternalService(
	meter *biz.MeterUseCase,
	purchase *biz.PurchaseUseCase,
	logger log.Logger,
) *TokenInternalService {
	return &TokenInternalService{
		meter:    meter,
		purchase: purchase,
		log:      log.NewHelper(logger),
	}
}

// GrantRequest 内部发放请求
type GrantRequest struct {
	Identity string `json:"identity"`
	Tier     string `json:"tier"`
	Quantity int64  `json:"quantity"`
}

// GrantReply 内部发放响应
type GrantReply struct {
	Balance *BalanceReply `json:"balance"`
}

// Grant 直接入账购买池（运营补偿、活动发放）
func (s *TokenInternalService) Grant(ctx context.Context, req *GrantRequest) (*GrantReply, error) {
	if req.Identity == "" {
		return nil, tokenErrors.ErrInvalidInput("identity is required")
	}

	balance, err := s.meter.Grant(ctx, req.Identity, req.Tier, req.Quantity)
	if err != nil {
		s.log.Errorf("Grant failed: identity=%s, quantity=%d, error=%v", req.Identity, req.Quantity, err)
		return nil, err
	}

	s.log.Infof("granted %d tokens: identity=%s, tier=%s", req.Quantity, req.Identity, req.Tier)
	return &GrantReply{Balance: toBalanceReply(balance)}, nil
}

// PaymentCallbackRequest 支付网关回调请求（网关可能重复送达）
type PaymentCallbackRequest struct {
	OrderID           string `json:"order_id"`
	ProviderPaymentID string `json:"provider_payment_id"`
	Outcome           string `json:"outcome"`
}

// PaymentCallbackReply 支付回调响应
type PaymentCallbackReply struct {
	// Received 为 true 表示回调已落定（含重复回调），网关可以停止重试
	Received bool `json:"received"`
}

// PaymentCallback 处理支付网关回调
func (s *TokenInternalService) PaymentCallback(ctx context.Context, req *PaymentCallbackRequest) (*PaymentCallbackReply, error) {
	if err := s.purchase.HandleCallback(ctx, req.OrderID, req.ProviderPaymentID, req.Outcome); err != nil {
		s.log.Errorf("PaymentCallback failed: order_id=%s, error=%v", req.OrderID, err)
		return nil, err
	}
	return &PaymentCallbackReply{Received: true}, nil
}
