package topup

import (
	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/types"
)

// Re-export common types so callers don't have to import every package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Order is re-exported from order package.
type Order = order.Order

// Customer is re-exported from ledger package.
type Customer = ledger.Customer

// Re-export Money constructors
var (
	CUP  = types.CUP
	USD  = types.USD
	Zero = types.Zero
)

// Re-export payment methods
var (
	PayByTransfer = order.PayByTransfer
	PayByCredit   = order.PayByCredit
	PayWithCredit = order.PayWithCredit
)
