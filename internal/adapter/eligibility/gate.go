// Package eligibility talks to the credit scoring service. Scores are computed elsewhere;
// this package only asks for a decision.
package eligibility

import (
	"context"
	"fmt"
	"time"

	"agri-advance/internal/domain/advance"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

type HTTPGate struct {
	client *resty.Client
}

var _ advance.EligibilityGate = (*HTTPGate)(nil)

func NewHTTPGate(baseURL string, timeout time.Duration) *HTTPGate {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPGate{client: c}
}

type eligibilityRequest struct {
	FarmerID        string          `json:"farmer_id"`
	OrderID         string          `json:"order_id"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
}

func (g *HTTPGate) GetEligibility(ctx context.Context, farmerID string, requestedAmount decimal.Decimal, orderID string) (*advance.Eligibility, error) {
	var out advance.Eligibility
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(eligibilityRequest{FarmerID: farmerID, OrderID: orderID, RequestedAmount: requestedAmount}).
		SetResult(&out).
		Post("/v1/eligibility")
	if err != nil {
		return nil, fmt.Errorf("eligibility request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("eligibility request: status %d", resp.StatusCode())
	}
	return &out, nil
}

// Static approves every farmer with the same limit, tier and rate. For local runs only.
type Static struct {
	CreditLimit decimal.Decimal
	RiskTier    string
	Rate        decimal.Decimal
}

var _ advance.EligibilityGate = Static{}

func (s Static) GetEligibility(_ context.Context, _ string, _ decimal.Decimal, _ string) (*advance.Eligibility, error) {
	return &advance.Eligibility{
		Approved:    s.CreditLimit.IsPositive(),
		CreditLimit: s.CreditLimit,
		RiskTier:    s.RiskTier,
		Rate:        s.Rate,
	}, nil
}
