// Package client is a typed HTTP client for the multisigd API.
package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-faster/errors"

	"github.com/quorumsig/multisigd/pkg/api"
	"github.com/quorumsig/multisigd/pkg/authn"
	"github.com/quorumsig/multisigd/pkg/core"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	attempts   uint
	delay      time.Duration
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	o := &options{
		httpClient: http.DefaultClient,
		attempts:   1,
		delay:      100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.attempts == 0 {
		o.attempts = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: o.httpClient,
		token:      o.token,
		attempts:   o.attempts,
		delay:      o.delay,
	}
}

// APIError is a failure reported by the server. errors.Is matches it against
// the core sentinels of the same kind.
type APIError struct {
	StatusCode int
	Kind       core.Kind `json:"kind"`
	Message    string    `json:"error"`
	Retryable  bool      `json:"retryable"`
	// Accepted is set when a signature was stored but submission failed.
	Accepted bool `json:"accepted"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("multisigd: %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return &core.Error{Kind: e.Kind, Msg: e.Message}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return errors.Wrap(err, "marshal request")
		}
	}
	return retry.Do(func() error {
		return c.once(ctx, method, path, body, out)
	},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.Retryable && !apiErr.Accepted
		}),
	)
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func walletPath(walletID string, parts ...string) string {
	p := "/v1/wallets/" + url.PathEscape(walletID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) Challenge(ctx context.Context) (string, error) {
	var res api.ChallengeResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/challenge", nil, &res)
	return res.Payload, err
}

// Verify exchanges a signed challenge for a token and starts using it.
func (c *Client) Verify(ctx context.Context, proof authn.Proof) (api.TokenResponse, error) {
	var res api.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/verify", proof, &res); err != nil {
		return res, err
	}
	c.token = res.Token
	return res, nil
}

func (c *Client) CreateWallet(ctx context.Context, req api.CreateWalletRequest) (api.Wallet, error) {
	var res api.Wallet
	err := c.do(ctx, http.MethodPost, "/v1/wallets", req, &res)
	return res, err
}

func (c *Client) GetWallet(ctx context.Context, walletID string) (api.Wallet, error) {
	var res api.Wallet
	err := c.do(ctx, http.MethodGet, walletPath(walletID), nil, &res)
	return res, err
}

func (c *Client) ListWallets(ctx context.Context) ([]api.Wallet, error) {
	var res []api.Wallet
	err := c.do(ctx, http.MethodGet, "/v1/wallets", nil, &res)
	return res, err
}

func (c *Client) ProposeTransaction(ctx context.Context, walletID string, proposer core.Address, tx []byte, description string) (api.Transaction, error) {
	var res api.Transaction
	err := c.do(ctx, http.MethodPost, walletPath(walletID, "transactions"), api.ProposeRequest{
		Address:     proposer,
		TxCbor:      hex.EncodeToString(tx),
		Description: description,
	}, &res)
	return res, err
}

func (c *Client) GetTransaction(ctx context.Context, walletID, txID string) (api.Transaction, error) {
	var res api.Transaction
	err := c.do(ctx, http.MethodGet, walletPath(walletID, "transactions", txID), nil, &res)
	return res, err
}

func (c *Client) ListTransactions(ctx context.Context, walletID string) ([]api.Transaction, error) {
	var res []api.Transaction
	err := c.do(ctx, http.MethodGet, walletPath(walletID, "transactions"), nil, &res)
	return res, err
}

// SubmitSignature sends signedTx, a transaction carrying the signer's witness.
func (c *Client) SubmitSignature(ctx context.Context, walletID, txID string, signer core.Address, signedTx []byte) (api.SignatureResult, error) {
	var res api.SignatureResult
	err := c.do(ctx, http.MethodPost, walletPath(walletID, "transactions", txID, "signatures"), api.SignRequest{
		Address:  signer,
		SignedTx: hex.EncodeToString(signedTx),
	}, &res)
	return res, err
}

func (c *Client) SubmitRejection(ctx context.Context, walletID, txID string, signer core.Address, vkey, signature []byte) (api.RejectionResult, error) {
	var res api.RejectionResult
	err := c.do(ctx, http.MethodPost, walletPath(walletID, "transactions", txID, "rejections"), proofRequest(signer, vkey, signature), &res)
	return res, err
}

func (c *Client) FinalizeTransaction(ctx context.Context, walletID, txID string, caller core.Address) (api.SignatureResult, error) {
	var res api.SignatureResult
	err := c.do(ctx, http.MethodPost, walletPath(walletID, "transactions", txID, "finalize"), api.FinalizeRequest{Address: caller}, &res)
	return res, err
}

func (c *Client) CreateSignable(ctx context.Context, walletID string, proposer core.Address, payload []byte, description string) (api.Signable, error) {
	var res api.Signable
	err := c.do(ctx, http.MethodPost, walletPath(walletID, "signables"), api.CreateSignableRequest{
		Address:     proposer,
		Payload:     hex.EncodeToString(payload),
		Description: description,
	}, &res)
	return res, err
}

func (c *Client) GetSignable(ctx context.Context, walletID, signableID string) (api.Signable, error) {
	var res api.Signable
	err := c.do(ctx, http.MethodGet, walletPath(walletID, "signables", signableID), nil, &res)
	return res, err
}

func (c *Client) ListSignables(ctx context.Context, walletID string) ([]api.Signable, error) {
	var res []api.Signable
	err := c.do(ctx, http.MethodGet, walletPath(walletID, "signables"), nil, &res)
	return res, err
}

func (c *Client) SignSignable(ctx context.Context, walletID, signableID string, signer core.Address, vkey, signature []byte) (api.Signable, error) {
	var res api.Signable
	err := c.do(ctx, http.MethodPost, walletPath(walletID, "signables", signableID, "signatures"), proofRequest(signer, vkey, signature), &res)
	return res, err
}

func (c *Client) RejectSignable(ctx context.Context, walletID, signableID string, signer core.Address, vkey, signature []byte) (api.Signable, error) {
	var res api.Signable
	err := c.do(ctx, http.MethodPost, walletPath(walletID, "signables", signableID, "rejections"), proofRequest(signer, vkey, signature), &res)
	return res, err
}

func proofRequest(signer core.Address, vkey, signature []byte) api.ProofRequest {
	return api.ProofRequest{
		Address:   signer,
		Key:       hex.EncodeToString(vkey),
		Signature: hex.EncodeToString(signature),
	}
}
