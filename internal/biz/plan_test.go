package biz

import (
	"testing"

	"token-service/internal/conf"
	tokenErrors "token-service/internal/errors"

	kratosErrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog() PlanCatalog {
	return NewPlanCatalog(&conf.Bootstrap{
		Plans: &conf.Plans{
			Ceilings: map[string]int64{
				"free":     2000,
				"standard": 20000,
				"plus":     100000,
				"premium":  -1,
			},
		},
	})
}

func TestPlanCatalogCeiling(t *testing.T) {
	catalog := newTestCatalog()

	limit, err := catalog.Ceiling("standard")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), limit.Ceiling)
	assert.False(t, limit.Unlimited)
}

func TestPlanCatalogUnlimitedTier(t *testing.T) {
	catalog := newTestCatalog()

	limit, err := catalog.Ceiling("premium")
	require.NoError(t, err)
	assert.True(t, limit.Unlimited)
}

func TestPlanCatalogUnknownTierFallsBackToLowest(t *testing.T) {
	catalog := newTestCatalog()

	limit, err := catalog.Ceiling("no-such-tier")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), limit.Ceiling)
	assert.False(t, limit.Unlimited)
}

func TestPlanCatalogEmpty(t *testing.T) {
	catalog := NewPlanCatalog(&conf.Bootstrap{})

	_, err := catalog.Ceiling("free")
	require.Error(t, err)
	assert.Equal(t, tokenErrors.ReasonPlanCatalogUnavailable, kratosErrors.Reason(err))
}
