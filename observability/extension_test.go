package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/types"
)

func TestMetricsExtension(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsExtension(NewPrometheusFactory(reg))
	ctx := context.Background()

	created := time.Now().Add(-time.Minute)
	o := &order.Order{
		Entity:     types.Entity{CreatedAt: created, UpdatedAt: created.Add(30 * time.Second)},
		Price:      types.CUP(2500),
		CreditUsed: types.CUP(500),
	}

	_ = m.OnOrderCreated(ctx, o)
	_ = m.OnOrderCreated(ctx, &order.Order{Price: types.CUP(1000), CreditUsed: types.CUP(0)})
	_ = m.OnOrderCompleted(ctx, o)
	_ = m.OnOrderCancelled(ctx, o, types.CUP(500))
	_ = m.OnCustomerRegistered(ctx, &ledger.Customer{}, &ledger.Referral{})
	_ = m.OnCustomerRegistered(ctx, &ledger.Customer{}, nil)
	_ = m.OnReferralBonusGranted(ctx, &ledger.BonusGrant{Amount: types.CUP(300)})
	_ = m.OnServiceGateChanged(ctx, false, "op")

	tests := []struct {
		name   string
		metric prometheus.Collector
		want   float64
	}{
		{"orders created", m.OrderCreated.(prometheus.Counter), 2},
		{"orders completed", m.OrderCompleted.(prometheus.Counter), 1},
		{"orders cancelled", m.OrderCancelled.(prometheus.Counter), 1},
		{"credit reserved", m.CreditReserved.(prometheus.Counter), 500},
		{"credit refunded", m.CreditRefunded.(prometheus.Counter), 500},
		{"revenue", m.Revenue.(prometheus.Counter), 2500},
		{"customers registered", m.CustomersRegistered.(prometheus.Counter), 2},
		{"referred customers", m.ReferredCustomers.(prometheus.Counter), 1},
		{"bonuses", m.ReferralBonuses.(prometheus.Counter), 1},
		{"bonus credits", m.ReferralBonusCredits.(prometheus.Counter), 300},
		{"accepting", m.AcceptingOrders.(prometheus.Gauge), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.metric); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrometheusFactoryReusesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := NewPrometheusFactory(reg)

	a := f.Counter("topup.order.created")
	b := f.Counter("topup.order.created")
	a.Inc()
	b.Inc()

	if got := testutil.ToFloat64(a.(prometheus.Counter)); got != 2 {
		t.Errorf("counter = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(reg, "topup_order_created"); n != 1 {
		t.Errorf("registered %d series, want 1", n)
	}
}
