// Package proof anchors disbursements on the verification ledger. Recording is best effort and
// runs off the request path: a disbursement only ever waits for a channel send.
package proof

import (
	"context"
	"fmt"
	"time"

	"agri-advance/internal/domain/advance"

	"github.com/go-resty/resty/v2"
)

type HTTPRecorder struct {
	client *resty.Client
}

var _ advance.ProofRecorder = (*HTTPRecorder)(nil)

func NewHTTPRecorder(baseURL, apiKey string, timeout time.Duration) *HTTPRecorder {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &HTTPRecorder{client: c}
}

func (r *HTTPRecorder) RecordDisbursement(ctx context.Context, req advance.ProofRequest) (*advance.ProofResult, error) {
	var out advance.ProofResult
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/v1/proofs/disbursements")
	if err != nil {
		return nil, fmt.Errorf("record proof: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("record proof: status %d", resp.StatusCode())
	}
	if out.Status == "" {
		out.Status = advance.VerificationPending
	}
	return &out, nil
}
