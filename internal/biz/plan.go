package biz

import (
	"token-service/internal/conf"
	"token-service/internal/constants"
	tokenErrors "token-service/internal/errors"
)

// PlanLimit 档位限额
type PlanLimit struct {
	// Ceiling 每日补给上限，Unlimited 为 true 时无意义
	Ceiling int64
	// Unlimited 不限量档位：扣减不动任何池，只记流水
	Unlimited bool
}

// PlanCatalog 套餐目录（档位 -> 每日补给上限）
// 扣减算法只依赖这个接口，限额调整不需要改动扣减逻辑
type PlanCatalog interface {
	// Ceiling 查询档位限额。未知档位降级为最低档的限额；
	// 目录本身不可用时返回错误（不能默默按零额度处理）
	Ceiling(tier string) (PlanLimit, error)
}

// configCatalog 基于配置的套餐目录实现
// 配置变更少，进程内常驻即可，不需要额外缓存层
type configCatalog struct {
	ceilings map[string]int64
	// lowest 最低档（非不限量中上限最小者），未知档位的降级目标
	lowest PlanLimit
}

// NewPlanCatalog 从配置创建套餐目录
func NewPlanCatalog(c *conf.Bootstrap) PlanCatalog {
	catalog := &configCatalog{
		ceilings: make(map[string]int64),
	}
	if c.Plans != nil {
		for tier, ceiling := range c.Plans.Ceilings {
			catalog.ceilings[tier] = ceiling
		}
	}

	found := false
	for _, ceiling := range catalog.ceilings {
		if ceiling == constants.CeilingUnlimited {
			continue
		}
		if !found || ceiling < catalog.lowest.Ceiling {
			catalog.lowest = PlanLimit{Ceiling: ceiling}
			found = true
		}
	}

	return catalog
}

// Ceiling 查询档位限额
func (c *configCatalog) Ceiling(tier string) (PlanLimit, error) {
	if len(c.ceilings) == 0 {
		return PlanLimit{}, tokenErrors.ErrPlanCatalogUnavailable()
	}

	ceiling, ok := c.ceilings[tier]
	if !ok {
		// 未知档位降级为最低档，不视为目录不可用
		return c.lowest, nil
	}
	if ceiling == constants.CeilingUnlimited {
		return PlanLimit{Ceiling: constants.CeilingUnlimited, Unlimited: true}, nil
	}
	return PlanLimit{Ceiling: ceiling}, nil
}
