package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldReplenish(t *testing.T) {
	limit := PlanLimit{Ceiling: 1000}

	tests := []struct {
		name              string
		limit             PlanLimit
		lastReplenishedOn string
		today             string
		want              bool
	}{
		{"same day", limit, "2024-11-30", "2024-11-30", false},
		{"next day", limit, "2024-11-30", "2024-12-01", true},
		{"month boundary", limit, "2024-11-30", "2024-12-01", true},
		{"year boundary", limit, "2024-12-31", "2025-01-01", true},
		{"several days elapsed", limit, "2024-11-01", "2024-11-30", true},
		{"unlimited never replenishes", PlanLimit{Ceiling: -1, Unlimited: true}, "2024-11-01", "2024-11-30", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldReplenish(tt.limit, tt.lastReplenishedOn, tt.today))
		})
	}
}

func TestSplitCost(t *testing.T) {
	tests := []struct {
		name               string
		cost               int64
		allocation         int64
		purchased          int64
		wantFromAllocation int64
		wantFromPurchased  int64
		wantOK             bool
	}{
		{"allocation covers everything", 10, 100, 50, 10, 0, true},
		{"exactly drains allocation", 100, 100, 50, 100, 0, true},
		{"spills into purchased", 120, 100, 50, 100, 20, true},
		{"drains both pools", 150, 100, 50, 100, 50, true},
		{"allocation empty", 30, 0, 50, 0, 30, true},
		{"combined insufficient", 10, 3, 5, 0, 0, false},
		{"both pools empty", 1, 0, 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fromAllocation, fromPurchased, ok := SplitCost(tt.cost, tt.allocation, tt.purchased)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantFromAllocation, fromAllocation)
			assert.Equal(t, tt.wantFromPurchased, fromPurchased)
			if ok {
				assert.Equal(t, tt.cost, fromAllocation+fromPurchased)
			}
		})
	}
}
