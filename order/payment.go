package order

import "github.com/xraph/topup/types"

type MethodKind string

const (
	MethodTransfer MethodKind = "transfer"
	MethodCredit   MethodKind = "credit"
	MethodMixed    MethodKind = "mixed"
)

// PaymentMethod selects how much of an order's price is covered by credit.
type PaymentMethod struct {
	Kind   MethodKind  `json:"kind"`
	Credit types.Money `json:"credit,omitzero"`
}

// PayByTransfer pays the full price by external transfer.
func PayByTransfer() PaymentMethod { return PaymentMethod{Kind: MethodTransfer} }

// PayByCredit pays the full price from the customer's credit.
func PayByCredit() PaymentMethod { return PaymentMethod{Kind: MethodCredit} }

// PayWithCredit covers amount from credit and the remainder by transfer.
func PayWithCredit(amount types.Money) PaymentMethod {
	return PaymentMethod{Kind: MethodMixed, Credit: amount}
}

// CreditFor returns the credit the method requests against price. Range
// checks are left to the caller.
func (m PaymentMethod) CreditFor(price types.Money) types.Money {
	switch m.Kind {
	case MethodCredit:
		return price
	case MethodMixed:
		return m.Credit
	default:
		return types.Zero(price.Currency)
	}
}
