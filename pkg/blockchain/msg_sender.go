package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/quorumsig/multisigd/pkg/core"
	"github.com/quorumsig/multisigd/pkg/witness"
)

var submitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "multisigd_submit_duration_seconds",
	Help:    "Ledger submission duration by outcome",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
}, []string{"result"})

// recentTTL is how long an accepted transaction id is remembered.
const recentTTL = 5 * time.Minute

// MsgSender submits signed transactions to a cardano-submit-api compatible
// endpoint (also served by Blockfrost at /tx/submit).
type MsgSender struct {
	logger    *zap.Logger
	client    *http.Client
	url       string
	projectID string
	attempts  uint
	delay     time.Duration

	mu sync.Mutex
	// recent maps a hex transaction id to the unix time it was accepted, so
	// a repeated finalization does not post the same transaction again.
	recent map[string]int64
}

type Option func(ms *MsgSender)

// WithProjectID sets the Blockfrost project_id header.
func WithProjectID(id string) Option {
	return func(ms *MsgSender) {
		ms.projectID = id
	}
}

func WithAttempts(n uint, delay time.Duration) Option {
	return func(ms *MsgSender) {
		ms.attempts = n
		ms.delay = delay
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(ms *MsgSender) {
		ms.client = c
	}
}

func NewMsgSender(logger *zap.Logger, url string, opts ...Option) *MsgSender {
	ms := &MsgSender{
		logger:   logger,
		client:   &http.Client{},
		url:      strings.TrimRight(url, "/"),
		attempts: 3,
		delay:    200 * time.Millisecond,
		recent:   map[string]int64{},
	}
	for _, o := range opts {
		o(ms)
	}
	return ms
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("submit api: %d %s", e.status, e.body)
}

// retryable reports whether the request certainly did not reach the ledger
// or the endpoint asked to come back later.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func classify(err error) error {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return core.WrapKind(core.KindSubmissionFailed, err, "ledger rejected transaction")
	case retryable(err):
		return core.WrapKind(core.KindSubmissionFailed, err, "ledger unreachable")
	}
	return core.WrapKind(core.KindSubmissionUnknown, err, "submission outcome unknown")
}

// SendMessage posts the transaction and returns its ledger hash. Errors carry
// SubmissionFailed when the ledger certainly did not take the transaction and
// SubmissionUnknown when it may have.
func (ms *MsgSender) SendMessage(ctx context.Context, payload []byte) (core.TxHash, error) {
	tx, err := witness.Decode(payload)
	if err != nil {
		return core.TxHash{}, err
	}
	local := tx.ID()
	if ms.seen(local.Hex()) {
		return local, nil
	}

	start := time.Now()
	var hash core.TxHash
	err = retry.Do(func() error {
		var err error
		hash, err = ms.post(ctx, payload, local)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(ms.attempts),
		retry.Delay(ms.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
	if err != nil {
		submitDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		ms.logger.Warn("submit failed", zap.String("tx", local.Hex()), zap.Error(err))
		return core.TxHash{}, classify(err)
	}
	submitDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	ms.remember(hash.Hex())
	return hash, nil
}

func (ms *MsgSender) post(ctx context.Context, payload []byte, local core.TxHash) (core.TxHash, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ms.url, bytes.NewReader(payload))
	if err != nil {
		return core.TxHash{}, err
	}
	req.Header.Set("Content-Type", "application/cbor")
	if ms.projectID != "" {
		req.Header.Set("project_id", ms.projectID)
	}
	resp, err := ms.client.Do(req)
	if err != nil {
		return core.TxHash{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return core.TxHash{}, err
	}
	if resp.StatusCode/100 != 2 {
		return core.TxHash{}, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	var id string
	if err := json.Unmarshal(body, &id); err != nil {
		return local, nil
	}
	hash, err := core.ParseTxHash(id)
	if err != nil {
		return local, nil
	}
	if hash != local {
		ms.logger.Warn("ledger returned a different transaction id",
			zap.String("local", local.Hex()), zap.String("ledger", hash.Hex()))
	}
	return hash, nil
}

func (ms *MsgSender) seen(id string) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.dropExpired(time.Now().Unix())
	_, ok := ms.recent[id]
	return ok
}

func (ms *MsgSender) remember(id string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.recent[id] = time.Now().Unix()
}

func (ms *MsgSender) dropExpired(now int64) {
	for id, at := range ms.recent {
		if now-at > int64(recentTTL.Seconds()) {
			delete(ms.recent, id)
		}
	}
}
