package checkout

import (
	"context"
	"log/slog"
	"time"

	"beneplan/internal/external"
	"beneplan/internal/types"
)

// ProfileStore abstracts the profile upsert operations.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*types.BuyerProfile, error)
	Insert(ctx context.Context, p *types.BuyerProfile) (*types.BuyerProfile, error)
	Update(ctx context.Context, p *types.BuyerProfile) error
}

// AccountStore abstracts the find-or-create account operations.
type AccountStore interface {
	EnsureConsumerAccount(ctx context.Context, profileID string) (*types.Account, error)
	EnsureOrganizationAccount(ctx context.Context, profileID, orgID string) (*types.Account, error)
}

// Orchestrator drives the checkout write path: profile upsert, gateway
// resources, outcome classification, local persistence, and inline
// activation when the payment already cleared.
//
// Steps are discrete failure boundaries. A failing step aborts with its own
// error and nothing committed before it is rolled back; a gateway resource
// left dangling by a later store failure is picked up by the reconciliation
// sweep.
type Orchestrator struct {
	profiles      ProfileStore
	accounts      AccountStore
	subscriptions SubscriptionStore
	gateway       external.GatewayService
	activator     *Activator
	logger        *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	profiles ProfileStore,
	accounts AccountStore,
	subscriptions SubscriptionStore,
	gateway external.GatewayService,
	activator *Activator,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		profiles:      profiles,
		accounts:      accounts,
		subscriptions: subscriptions,
		gateway:       gateway,
		activator:     activator,
		logger:        logger,
	}
}

// outcomeMessages are the human messages keyed by payment outcome.
var outcomeMessages = map[types.PaymentOutcome]string{
	types.OutcomePaid:    "Payment confirmed. Your plan is active.",
	types.OutcomePending: "Waiting for payment confirmation.",
	types.OutcomeFailed:  "Payment was not approved.",
}

// Subscribe runs the checkout write path for one request. Validation happens
// before any external call; a validation failure leaves no partial state
// anywhere.
func (o *Orchestrator) Subscribe(ctx context.Context, req *types.CheckoutRequest) (*types.CheckoutResponse, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}

	profile, err := o.upsertProfile(ctx, req)
	if err != nil {
		return nil, err
	}

	customerID, err := o.gateway.EnsureCustomer(ctx, profile.Email, profile.FullName, profile.TaxID)
	if err != nil {
		return nil, err
	}

	// Card tokens are single-use; exchange for a durable payment method
	// before the subscription references it.
	var paymentMethodID string
	if req.PaymentMethod == types.PaymentMethodCard {
		paymentMethodID, err = o.gateway.CreatePaymentMethod(ctx, customerID, req.CardToken)
		if err != nil {
			return nil, err
		}
	}

	gwSub, err := o.gateway.CreateSubscription(ctx, external.CreateSubscriptionParams{
		PlanIdentifier:  req.GatewayPlanID,
		CustomerID:      customerID,
		PaymentMethodID: paymentMethodID,
		PayableWith:     req.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}

	outcome, paymentURL := o.classifyOutcome(ctx, gwSub, req.PaymentMethod, paymentMethodID)

	account, err := o.resolveAccount(ctx, profile.ID, req.OrganizationID)
	if err != nil {
		return nil, err
	}

	status := types.SubStatusPendingPayment
	if outcome == types.OutcomePaid {
		status = types.SubStatusActive
	}
	sub, err := o.subscriptions.Insert(ctx, &types.Subscription{
		ProfileID:             profile.ID,
		AccountID:             account.ID,
		PlanID:                req.PlanID,
		GatewaySubscriptionID: gwSub.ID,
		GatewayCustomerID:     customerID,
		PaymentMethod:         req.PaymentMethod,
		Status:                status,
	})
	if err != nil {
		return nil, err
	}

	if outcome == types.OutcomePaid {
		activation := o.activator.Activate(ctx, ActivationInput{
			ProfileID:      profile.ID,
			SubscriptionID: sub.ID,
			PlanID:         req.PlanID,
			TaxID:          profile.TaxID,
			FullName:       profile.FullName,
		})
		if activation.Error != "" {
			o.logger.ErrorContext(ctx, "inline activation failed after paid checkout",
				"subscription_id", sub.ID,
				"error", activation.Error,
			)
		}
	}

	o.logger.InfoContext(ctx, "checkout completed",
		"subscription_id", sub.ID,
		"payment_method", req.PaymentMethod,
		"outcome", outcome,
	)

	return &types.CheckoutResponse{
		Success:        outcome != types.OutcomeFailed,
		PaymentOutcome: outcome,
		Message:        outcomeMessages[outcome],
		SubscriptionID: sub.ID,
		PaymentURL:     paymentURL,
	}, nil
}

// validate rejects bad input before any external call is made.
func (o *Orchestrator) validate(req *types.CheckoutRequest) error {
	if req.FullName == "" || req.Email == "" || req.PlanID == "" || req.GatewayPlanID == "" {
		return types.NewAppError(
			types.ErrCodeValidationMissingField,
			"full_name, email, plan_id, and gateway_plan_id are required",
			nil,
		)
	}
	if !req.PaymentMethod.Valid() {
		return types.NewAppError(
			types.ErrCodeValidationPaymentMethod,
			"payment_method must be one of credit_card, bank_slip, pix",
			nil,
		)
	}
	if req.PaymentMethod == types.PaymentMethodCard && req.CardToken == "" {
		return types.NewAppError(
			types.ErrCodeValidationCardToken,
			"card_token is required for credit card payments",
			nil,
		)
	}
	if !types.ValidTaxID(types.NormalizeTaxID(req.TaxID)) {
		return types.NewAppError(
			types.ErrCodeValidationInvalidTaxID,
			"tax id must be 11 digits with valid check digits",
			nil,
		)
	}
	if _, _, ok := types.SplitPhone(types.NormalizePhone(req.Phone)); !ok {
		return types.NewAppError(
			types.ErrCodeValidationInvalidPhone,
			"phone must decompose into a 2-digit area code and a 9-digit number",
			nil,
		)
	}
	if req.BirthDate != "" {
		if _, err := time.Parse("2006-01-02", req.BirthDate); err != nil {
			return types.NewAppError(
				types.ErrCodeValidationMissingField,
				"birth_date must be formatted as YYYY-MM-DD",
				err,
			)
		}
	}
	return nil
}

// upsertProfile patches the existing profile when the request references
// one, otherwise inserts a new profile keyed by the normalized tax id.
func (o *Orchestrator) upsertProfile(ctx context.Context, req *types.CheckoutRequest) (*types.BuyerProfile, error) {
	var birthDate *time.Time
	if req.BirthDate != "" {
		parsed, _ := time.Parse("2006-01-02", req.BirthDate)
		birthDate = &parsed
	}

	if req.ProfileID != "" {
		profile, err := o.profiles.GetByID(ctx, req.ProfileID)
		if err != nil {
			return nil, err
		}
		profile.FullName = req.FullName
		profile.Email = req.Email
		profile.Phone = types.NormalizePhone(req.Phone)
		if birthDate != nil {
			profile.BirthDate = birthDate
		}
		if err := o.profiles.Update(ctx, profile); err != nil {
			return nil, err
		}
		return profile, nil
	}

	return o.profiles.Insert(ctx, &types.BuyerProfile{
		TaxID:     types.NormalizeTaxID(req.TaxID),
		FullName:  req.FullName,
		Email:     req.Email,
		Phone:     types.NormalizePhone(req.Phone),
		BirthDate: birthDate,
	})
}

// classifyOutcome inspects the invoice embedded in the subscription-creation
// response.
//
// For card payments with a not-yet-paid invoice, a charge is issued against
// the durable payment method and the invoice re-fetched so the final
// classification reflects the authoritative post-charge status. When the
// gateway attached no invoice at all, card payments fall back to the
// subscription's own active flag and everything else defaults to pending.
func (o *Orchestrator) classifyOutcome(
	ctx context.Context,
	gwSub *external.GatewaySubscription,
	method types.PaymentMethod,
	paymentMethodID string,
) (types.PaymentOutcome, string) {
	invoice := gwSub.LatestInvoice()
	if invoice == nil {
		if method == types.PaymentMethodCard {
			if gwSub.Active {
				return types.OutcomePaid, ""
			}
			return types.OutcomePending, ""
		}
		return types.OutcomePending, ""
	}

	if method == types.PaymentMethodCard && invoice.Status != types.GatewayInvoicePaid {
		if err := o.gateway.ChargeInvoice(ctx, invoice.ID, paymentMethodID); err != nil {
			o.logger.WarnContext(ctx, "proactive invoice charge failed",
				"invoice_id", invoice.ID,
				"error", err,
			)
		} else if refreshed, err := o.gateway.GetInvoice(ctx, invoice.ID); err != nil {
			o.logger.WarnContext(ctx, "invoice re-fetch after charge failed",
				"invoice_id", invoice.ID,
				"error", err,
			)
		} else {
			invoice = refreshed
		}
	}

	switch invoice.Status {
	case types.GatewayInvoicePaid:
		return types.OutcomePaid, ""
	case types.GatewayInvoicePending, types.GatewayInvoiceInReview:
		var paymentURL string
		if method == types.PaymentMethodBankSlip || method == types.PaymentMethodInstantTransfer {
			paymentURL = invoice.SecureURL
		}
		return types.OutcomePending, paymentURL
	default:
		return types.OutcomeFailed, ""
	}
}

// resolveAccount picks the billing account the subscription attaches to:
// organization-linked when the checkout carried an organization reference,
// direct-consumer otherwise.
func (o *Orchestrator) resolveAccount(ctx context.Context, profileID, orgID string) (*types.Account, error) {
	if orgID != "" {
		return o.accounts.EnsureOrganizationAccount(ctx, profileID, orgID)
	}
	return o.accounts.EnsureConsumerAccount(ctx, profileID)
}
