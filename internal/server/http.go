package server

import (
	"token-service/internal/conf"
	"token-service/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(c *conf.Bootstrap, token *service.TokenService, internal *service.TokenInternalService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Server != nil && c.Server.HTTP != nil {
		if c.Server.HTTP.Network != "" {
			opts = append(opts, http.Network(c.Server.HTTP.Network))
		}
		if c.Server.HTTP.Addr != "" {
			opts = append(opts, http.Address(c.Server.HTTP.Addr))
		}
		if d := conf.ParseDuration(c.Server.HTTP.Timeout, 0); d > 0 {
			opts = append(opts, http.Timeout(d))
		}
	}
	srv := http.NewServer(opts...)

	srv.Handle("/metrics", promhttp.Handler())

	registerTokenRoutes(srv, token)
	registerInternalRoutes(srv, internal)
	return srv
}

// registerTokenRoutes 注册外部接口（面向调用方）
func registerTokenRoutes(srv *http.Server, svc *service.TokenService) {
	r := srv.Route("/v1")

	r.GET("/balance", func(ctx http.Context) error {
		reply, err := svc.GetBalance(ctx)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/tokens/spend", func(ctx http.Context) error {
		var in service.SpendRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		reply, err := svc.Spend(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/purchases", func(ctx http.Context) error {
		var in service.CreatePurchaseRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		reply, err := svc.CreatePurchase(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/purchases", func(ctx http.Context) error {
		var in service.ListPurchasesRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		reply, err := svc.ListPurchases(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/usage", func(ctx http.Context) error {
		var in service.ListUsageRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		reply, err := svc.ListUsage(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/usage/summary", func(ctx http.Context) error {
		reply, err := svc.GetUsageSummary(ctx)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}

// registerInternalRoutes 注册内部接口（面向内网与支付网关）
func registerInternalRoutes(srv *http.Server, svc *service.TokenInternalService) {
	r := srv.Route("/v1")

	r.POST("/tokens/grant", func(ctx http.Context) error {
		var in service.GrantRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		reply, err := svc.Grant(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/purchases/callback", func(ctx http.Context) error {
		var in service.PaymentCallbackRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		reply, err := svc.PaymentCallback(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}
