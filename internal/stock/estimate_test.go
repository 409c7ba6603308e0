package stock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	policy := Policy{InStockDays: 3, BackorderDays: 30}
	cases := []struct {
		name      string
		available int
		quantity  int
		policy    Policy
		want      Delivery
	}{
		{"fully in stock", 500, 480, policy, Delivery{Status: StatusInStock, FromStock: 480, Days: 3}},
		{"exactly in stock", 96, 96, policy, Delivery{Status: StatusInStock, FromStock: 96, Days: 3}},
		{"partial", 100, 480, policy, Delivery{Status: StatusPartial, FromStock: 100, Backordered: 380, Days: 30}},
		{"nothing available", 0, 24, policy, Delivery{Status: StatusOnOrder, Backordered: 24, Days: 30}},
		{"negative stock", -5, 24, policy, Delivery{Status: StatusOnOrder, Backordered: 24, Days: 30}},
		{"lead time overrides", 0, 24, Policy{InStockDays: 3, BackorderDays: 30, LeadTimeDays: 12}, Delivery{Status: StatusOnOrder, Backordered: 24, Days: 12}},
		{"partial never faster than stock", 10, 24, Policy{InStockDays: 5, LeadTimeDays: 2}, Delivery{Status: StatusPartial, FromStock: 10, Backordered: 14, Days: 5}},
		{"zero quantity", 0, 0, policy, Delivery{Status: StatusInStock, Days: 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Estimate(tc.available, tc.quantity, tc.policy))
		})
	}
}
