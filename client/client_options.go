package client

import (
	"net/http"
	"time"
)

type options struct {
	httpClient *http.Client
	token      string
	attempts   uint
	delay      time.Duration
}

// ClientOption configures Client.
type ClientOption func(o *options)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithToken configures the client to send a bearer token issued by /v1/auth/verify.
//
// Example:
//
//	cli := client.NewClient("http://localhost:8081", client.WithToken(token))
func WithToken(token string) ClientOption {
	return func(o *options) {
		o.token = token
	}
}

// WithRetry retries requests that fail with a retryable error kind.
func WithRetry(attempts uint, delay time.Duration) ClientOption {
	return func(o *options) {
		o.attempts = attempts
		o.delay = delay
	}
}
