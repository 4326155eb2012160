package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SettlementQuoteRequest asks the settlement backend for a payment requirement.
type SettlementQuoteRequest struct {
	StationID string  `json:"station_id"`
	KWhAmount float64 `json:"kwh_amount"`
	Amount    string  `json:"amount"`
	Currency  string  `json:"currency"`
	Network   string  `json:"network"`
	Token     string  `json:"token,omitempty"`
}

// SettlementQuoteResponse is the backend's payment requirement.
type SettlementQuoteResponse struct {
	PaymentID string    `json:"payment_id"`
	Amount    string    `json:"amount"`
	Recipient string    `json:"recipient"`
	Network   string    `json:"network"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SettlementVerifyRequest submits a proof for verification.
type SettlementVerifyRequest struct {
	SessionID string `json:"session_id"`
	PaymentID string `json:"payment_id"`
	Proof     json.RawMessage `json:"proof,omitempty"`
}

// SettlementVerifyResponse is the backend's verdict.
type SettlementVerifyResponse struct {
	Verified bool   `json:"verified"`
	TxHash   string `json:"tx_hash"`
	Error    string `json:"error"`
}

// SettlementClient talks to the external settlement service.
type SettlementClient struct {
	base   *BaseClient
	signer *TokenSigner
	now    func() time.Time
}

// NewSettlementClient returns client.
func NewSettlementClient(baseURL string, httpClient HTTPDoer, signer *TokenSigner) *SettlementClient {
	return &SettlementClient{
		base:   NewBaseClient(baseURL, httpClient),
		signer: signer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Quote calls POST /quotes.
func (c *SettlementClient) Quote(ctx context.Context, req SettlementQuoteRequest) (SettlementQuoteResponse, error) {
	var out SettlementQuoteResponse
	auth, err := c.authorize()
	if err != nil {
		return out, err
	}
	err = c.base.PostJSON(ctx, "/quotes", req, &out, auth)
	return out, err
}

// Verify calls POST /verify.
func (c *SettlementClient) Verify(ctx context.Context, req SettlementVerifyRequest) (SettlementVerifyResponse, error) {
	var out SettlementVerifyResponse
	auth, err := c.authorize()
	if err != nil {
		return out, err
	}
	err = c.base.PostJSON(ctx, "/verify", req, &out, auth)
	return out, err
}

func (c *SettlementClient) authorize() (RequestOption, error) {
	token, err := c.signer.Sign(c.now())
	if err != nil {
		return nil, fmt.Errorf("clients: sign settlement token: %w", err)
	}
	return WithHeader("Authorization", "Bearer "+token), nil
}
