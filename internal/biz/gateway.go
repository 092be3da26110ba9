package biz

import "context"

// PaymentGateway 支付网关客户端接口
// 网关负责创建支付订单并在支付完成后回调本服务，回调可能重复送达
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderReply, error)
}

// CreateOrderRequest 创建支付订单请求
type CreateOrderRequest struct {
	// OrderID 本服务生成的业务订单号，回调时原样带回
	OrderID          string
	Identity         string
	AmountMinorUnits int64
	Subject          string
	ReturnURL        string
	NotifyURL        string
}

// CreateOrderReply 创建支付订单响应
type CreateOrderReply struct {
	// ProviderOrderID 网关侧订单号
	ProviderOrderID string
	PayURL          string
}
