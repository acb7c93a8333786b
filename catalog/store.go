package catalog

import (
	"context"

	"github.com/xraph/topup/id"
	"github.com/xraph/topup/types"
)

type Store interface {
	Create(ctx context.Context, p *Plan) error
	Get(ctx context.Context, planID id.PlanID) (*Plan, error)
	List(ctx context.Context, opts ListOpts) ([]*Plan, error)
	UpdatePrice(ctx context.Context, planID id.PlanID, price types.Money) error
	Count(ctx context.Context) (int64, error)
}

// ListOpts filters plan listings. Results are ordered by price ascending.
type ListOpts struct {
	Category        string
	IncludeInactive bool
}
