package types

// PaymentMethod identifies how a buyer pays for a subscription.
type PaymentMethod string

const (
	PaymentMethodCard            PaymentMethod = "credit_card"
	PaymentMethodBankSlip        PaymentMethod = "bank_slip"
	PaymentMethodInstantTransfer PaymentMethod = "pix"
)

// Valid reports whether m is one of the supported payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodBankSlip, PaymentMethodInstantTransfer:
		return true
	}
	return false
}

// SubscriptionStatus represents the local lifecycle state of a subscription.
// Valid transitions: pending_payment -> active (terminal success) and
// pending_payment -> canceled (terminal failure). Nothing transitions out of
// active or canceled.
type SubscriptionStatus string

const (
	SubStatusPendingPayment SubscriptionStatus = "pending_payment"
	SubStatusActive         SubscriptionStatus = "active"
	SubStatusCanceled       SubscriptionStatus = "canceled"
)

// PlanKind classifies a plan's pricing origin.
type PlanKind string

const (
	// PlanKindConsumer is the standard direct-consumer price list.
	PlanKindConsumer PlanKind = "b2c"
	// PlanKindNegotiated is an employer/partner negotiated price list.
	PlanKindNegotiated PlanKind = "convenio"
)

// Valid reports whether k is a known plan kind.
func (k PlanKind) Valid() bool {
	return k == PlanKindConsumer || k == PlanKindNegotiated
}

// PaymentOutcome classifies the immediate result of a checkout attempt.
type PaymentOutcome string

const (
	OutcomePaid    PaymentOutcome = "paid"
	OutcomePending PaymentOutcome = "pending"
	OutcomeFailed  PaymentOutcome = "failed"
)

// AccountType distinguishes billing account groupings.
type AccountType string

const (
	AccountTypeConsumer     AccountType = "consumer"
	AccountTypeOrganization AccountType = "organization"
)

// MembershipStatus represents the state of a buyer's link to an organization.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
)

// ContractStatus represents the state of an organization's agreement.
type ContractStatus string

const (
	ContractActive   ContractStatus = "active"
	ContractInactive ContractStatus = "inactive"
)

// EntitlementStatus represents the state of a granted product entitlement.
type EntitlementStatus string

const (
	EntitlementStatusActive  EntitlementStatus = "active"
	EntitlementStatusRevoked EntitlementStatus = "revoked"
)

// BillingInterval is a plan's recurrence period as reported by the gateway.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalYearly  BillingInterval = "yearly"
)

// GatewaySubStatus values reported by the billing gateway for a subscription.
// Expired, suspended and canceled are terminal on the gateway side.
const (
	GatewaySubActive    = "active"
	GatewaySubExpired   = "expired"
	GatewaySubSuspended = "suspended"
	GatewaySubCanceled  = "canceled"
)

// GatewayInvoiceStatus values reported by the billing gateway for an invoice.
const (
	GatewayInvoicePaid     = "paid"
	GatewayInvoicePending  = "pending"
	GatewayInvoiceInReview = "in_analysis"
	GatewayInvoiceCanceled = "canceled"
)
