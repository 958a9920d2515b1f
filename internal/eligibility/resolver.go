// Package eligibility classifies a buyer for checkout: direct-consumer or
// negotiated-plan, based on the identity -> membership -> organization chain.
package eligibility

import (
	"context"
	"log/slog"

	"beneplan/internal/db"
	"beneplan/internal/types"
)

// ProfileReader abstracts the profile lookup the resolver needs.
type ProfileReader interface {
	// GetByTaxID returns the profile stored under the digits-only tax id,
	// with a masked-format fallback for legacy rows.
	GetByTaxID(ctx context.Context, taxID string) (*types.BuyerProfile, error)
}

// MembershipReader abstracts the membership chain lookup.
type MembershipReader interface {
	// LatestActiveMembership returns the most recent active membership with
	// its organization embedded, or nil when the profile has none.
	LatestActiveMembership(ctx context.Context, profileID string) (*db.MembershipWithOrganization, error)
}

// Resolver walks the eligibility chain for a tax id.
type Resolver struct {
	profiles    ProfileReader
	memberships MembershipReader
	logger      *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(profiles ProfileReader, memberships MembershipReader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		profiles:    profiles,
		memberships: memberships,
		logger:      logger,
	}
}

// Resolve classifies the buyer behind the tax id.
//
// Unknown buyers come back Found=false, IsNewBuyer=true, consumer plan kind.
// Known buyers with an active membership classify as negotiated with that
// organization attached; the most recently created membership wins when the
// buyer has several. A store failure surfaces as a retryable error and is
// never folded into "not found".
func (r *Resolver) Resolve(ctx context.Context, taxID string) (*types.EligibilityResult, error) {
	normalized := types.NormalizeTaxID(taxID)
	if !types.ValidTaxID(normalized) {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidTaxID,
			"tax id must be 11 digits with valid check digits",
			nil,
		)
	}

	profile, err := r.profiles.GetByTaxID(ctx, normalized)
	if err != nil {
		if appErr, ok := err.(*types.AppError); ok && appErr.Code == types.ErrCodeNotFoundProfile {
			return &types.EligibilityResult{
				Found:      false,
				IsNewBuyer: true,
				PlanKind:   types.PlanKindConsumer,
			}, nil
		}
		return nil, err
	}

	membership, err := r.memberships.LatestActiveMembership(ctx, profile.ID)
	if err != nil {
		return nil, err
	}

	result := &types.EligibilityResult{
		Found:     true,
		ProfileID: profile.ID,
		PlanKind:  types.PlanKindConsumer,
	}
	if membership != nil {
		result.PlanKind = types.PlanKindNegotiated
		result.OrganizationID = membership.Organization.ID
		result.OrganizationName = membership.Organization.Name
	}

	r.logger.DebugContext(ctx, "eligibility resolved",
		"profile_id", result.ProfileID,
		"plan_kind", result.PlanKind,
		"negotiated", membership != nil,
	)
	return result, nil
}
