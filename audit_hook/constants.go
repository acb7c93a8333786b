package audithook

// Action constants for audit events.
const (
	// Order actions
	ActionOrderCreated          = "order.created"
	ActionOrderConfirmed        = "order.confirmed"
	ActionOrderPaymentSubmitted = "order.payment_submitted"
	ActionOrderCompleted        = "order.completed"
	ActionOrderCancelled        = "order.cancelled"

	// Ledger actions
	ActionCustomerRegistered   = "customer.registered"
	ActionReferralBonusGranted = "referral.bonus_granted"

	// Catalog actions
	ActionPlanPriceChanged = "plan.price_changed"

	// Service gate actions
	ActionServiceOpened = "service.opened"
	ActionServiceClosed = "service.closed"
)

// Resource constants for audit events.
const (
	ResourceOrder    = "order"
	ResourceCustomer = "customer"
	ResourceReferral = "referral"
	ResourcePlan     = "plan"
	ResourceService  = "service"
)

// Category constants for audit events.
const (
	CategoryOrder      = "order"
	CategoryLedger     = "ledger"
	CategoryCatalog    = "catalog"
	CategoryOperations = "operations"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
