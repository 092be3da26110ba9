package data

import (
	"context"

	"token-service/internal/biz"
	"token-service/internal/constants"
	"token-service/internal/errors"

	"github.com/go-kratos/kratos/v2/transport"
)

// identityResolver 从请求头解析调用方身份与档位
// 上游接入层负责鉴权，本服务信任解析结果
type identityResolver struct{}

// NewIdentityResolver 创建身份解析器
func NewIdentityResolver() biz.IdentityResolver {
	return &identityResolver{}
}

// Resolve 解析当前请求的调用方
func (identityResolver) Resolve(ctx context.Context) (*biz.Caller, error) {
	tr, ok := transport.FromServerContext(ctx)
	if !ok {
		return nil, errors.ErrIdentityUnresolved()
	}

	identity := tr.RequestHeader().Get(constants.HeaderIdentity)
	if identity == "" {
		return nil, errors.ErrIdentityUnresolved()
	}

	tier := tr.RequestHeader().Get(constants.HeaderTier)
	if tier == "" {
		tier = constants.TierFree
	}
	return &biz.Caller{
		Identity: identity,
		Tier:     tier,
	}, nil
}
