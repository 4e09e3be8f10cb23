// Package aggregator collects witnesses for multisig transactions and
// off-chain payloads. Every state change is a compare-and-swap against the
// snapshot read at the start of the operation.
package aggregator

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/quorumsig/multisigd/pkg/core"
)

var outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "multisigd_aggregator_outcomes_total",
	Help: "Aggregator operation outcomes by error kind",
}, []string{"operation", "result"})

func observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = core.KindOf(err).String()
	}
	outcomes.WithLabelValues(operation, result).Inc()
}

type storage interface {
	CreateTransaction(ctx context.Context, tx core.PendingTransaction) error
	GetTransaction(ctx context.Context, id string) (core.PendingTransaction, error)
	ListTransactions(ctx context.Context, walletID string) ([]core.PendingTransaction, error)
	UpdateTransaction(ctx context.Context, prior, next core.PendingTransaction) error

	CreateSignable(ctx context.Context, sg core.Signable) error
	GetSignable(ctx context.Context, id string) (core.Signable, error)
	ListSignables(ctx context.Context, walletID string) ([]core.Signable, error)
	UpdateSignable(ctx context.Context, prior, next core.Signable) error
}

type walletSource interface {
	GetWallet(ctx context.Context, id string) (core.Wallet, error)
}

// ledger submits a fully witnessed transaction and returns its hash.
type ledger interface {
	SendMessage(ctx context.Context, tx []byte) (core.TxHash, error)
}

type Aggregator struct {
	logger        *zap.Logger
	storage       storage
	wallets       walletSource
	ledger        ledger
	submitTimeout time.Duration
	retryAttempts uint
	retryDelay    time.Duration
	now           func() time.Time
}

type Options struct {
	submitTimeout time.Duration
	retryAttempts uint
	retryDelay    time.Duration
	now           func() time.Time
}

type Option func(o *Options)

// WithSubmitTimeout bounds a single ledger submission.
func WithSubmitTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.submitTimeout = d
	}
}

// WithRetry configures SubmitSignatureWithRetry.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(o *Options) {
		o.retryAttempts = attempts
		o.retryDelay = delay
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.now = now
	}
}

func New(logger *zap.Logger, s storage, wallets walletSource, l ledger, opts ...Option) *Aggregator {
	options := Options{
		submitTimeout: 30 * time.Second,
		retryAttempts: 5,
		retryDelay:    20 * time.Millisecond,
		now:           time.Now,
	}
	for _, o := range opts {
		o(&options)
	}
	return &Aggregator{
		logger:        logger,
		storage:       s,
		wallets:       wallets,
		ledger:        l,
		submitTimeout: options.submitTimeout,
		retryAttempts: options.retryAttempts,
		retryDelay:    options.retryDelay,
		now:           options.now,
	}
}

// member resolves claimed to the enterprise address of its payment key.
// Every address form of one key maps to the same member, and members are what
// the signed and rejected sets hold.
func member(w core.Wallet, claimed core.Address) (core.Address, core.KeyHash, error) {
	kh, err := claimed.PaymentKeyHash()
	if err != nil {
		return "", kh, err
	}
	if net, _ := claimed.Network(); net != w.Network {
		return "", kh, core.Errorf(core.KindInvalidAddress, "%s is not a %s address", claimed, w.Network)
	}
	addr, err := core.NewKeyAddress(w.Network, kh)
	if err != nil {
		return "", kh, errors.Wrap(err, "member address")
	}
	return addr, kh, nil
}

func notSigner(w core.Wallet, claimed core.Address) error {
	return core.Errorf(core.KindUnauthorized, "%s is not a signer of wallet %s", claimed, w.ID)
}

// signer checks that claimed belongs to a signer of w.
func signer(w core.Wallet, claimed core.Address) error {
	_, kh, err := member(w, claimed)
	if err != nil {
		return err
	}
	if !w.IsSigner(kh) {
		return notSigner(w, claimed)
	}
	return nil
}

// admit checks that claimed may add a signature or a rejection to a record
// with the given sets and returns its member address.
func admit(w core.Wallet, signed, rejected core.AddressSet, claimed core.Address) (core.Address, error) {
	addr, kh, err := member(w, claimed)
	if err != nil {
		return "", err
	}
	if signed.Contains(addr) {
		return "", core.Errorf(core.KindDuplicateSignature, "%s already signed", claimed)
	}
	if rejected.Contains(addr) {
		return "", core.Errorf(core.KindAlreadyRejected, "%s already rejected", claimed)
	}
	if !w.IsSigner(kh) {
		return "", notSigner(w, claimed)
	}
	return addr, nil
}

func casError(err error) error {
	if errors.Is(err, core.ErrStale) {
		return core.WrapKind(core.KindConcurrentModification, err, "record changed since it was read")
	}
	return err
}

// RejectionMessage is the payload a signer signs to decline record id.
func RejectionMessage(id string) []byte {
	return []byte("reject:" + id)
}
