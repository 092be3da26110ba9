package data

import (
	"context"
	"time"

	"token-service/internal/biz"
	"token-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// gatewayClient 支付网关 HTTP 客户端
type gatewayClient struct {
	cc  *http.Client
	log *log.Helper
}

// createOrderRequest 网关创建订单请求体
type createOrderRequest struct {
	OutTradeNo  string `json:"out_trade_no"`
	Subject     string `json:"subject"`
	TotalAmount int64  `json:"total_amount"`
	Identity    string `json:"identity"`
	ReturnURL   string `json:"return_url"`
	NotifyURL   string `json:"notify_url"`
}

// createOrderReply 网关创建订单响应体
type createOrderReply struct {
	TradeNo string `json:"trade_no"`
	PayURL  string `json:"pay_url"`
}

// NewPaymentGatewayClient 创建支付网关客户端
// 未配置网关时返回 nil，购买下单接口会以网关不可用拒绝
func NewPaymentGatewayClient(c *conf.Bootstrap, logger log.Logger) (biz.PaymentGateway, error) {
	if c.Gateway == nil || c.Gateway.Endpoint == "" {
		return nil, nil
	}

	timeout := conf.ParseDuration(c.Gateway.Timeout, 5*time.Second)
	cc, err := http.NewClient(
		context.Background(),
		http.WithEndpoint(c.Gateway.Endpoint),
		http.WithTimeout(timeout),
	)
	if err != nil {
		return nil, err
	}

	return &gatewayClient{
		cc:  cc,
		log: log.NewHelper(logger),
	}, nil
}

// CreateOrder 调用网关创建支付订单
func (g *gatewayClient) CreateOrder(ctx context.Context, req *biz.CreateOrderRequest) (*biz.CreateOrderReply, error) {
	in := &createOrderRequest{
		OutTradeNo:  req.OrderID,
		Subject:     req.Subject,
		TotalAmount: req.AmountMinorUnits,
		Identity:    req.Identity,
		ReturnURL:   req.ReturnURL,
		NotifyURL:   req.NotifyURL,
	}
	var out createOrderReply
	if err := g.cc.Invoke(ctx, "POST", "/v1/orders", in, &out); err != nil {
		g.log.Errorf("create gateway order error: %v, order_id: %s", err, req.OrderID)
		return nil, err
	}
	return &biz.CreateOrderReply{
		ProviderOrderID: out.TradeNo,
		PayURL:          out.PayURL,
	}, nil
}
