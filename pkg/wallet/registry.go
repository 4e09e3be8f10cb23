// Package wallet keeps the registry of multisig wallets and memoizes the
// identity derived from each wallet's key set.
package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/quorumsig/multisigd/pkg/cache"
	"github.com/quorumsig/multisigd/pkg/core"
	"github.com/quorumsig/multisigd/pkg/script"
)

type storage interface {
	SaveWallet(ctx context.Context, w core.Wallet) error
	GetWallet(ctx context.Context, id string) (core.Wallet, error)
	ListWallets(ctx context.Context) ([]core.Wallet, error)
}

type Registry struct {
	logger     *zap.Logger
	storage    storage
	wallets    cache.ICache[core.Wallet]
	walletTTL  time.Duration
	identities cache.Cache[uint64, script.Identity]
	now        func() time.Time
}

type Options struct {
	wallets           cache.ICache[core.Wallet]
	walletTTL         time.Duration
	identityCacheSize int
	identityTTL       time.Duration
}

type Option func(o *Options)

// WithWalletCache makes GetWallet read through c. Wallets never change once
// created, so ttl only bounds memory.
func WithWalletCache(c cache.ICache[core.Wallet], ttl time.Duration) Option {
	return func(o *Options) {
		o.wallets = c
		o.walletTTL = ttl
	}
}

func WithIdentityCache(size int, ttl time.Duration) Option {
	return func(o *Options) {
		o.identityCacheSize = size
		o.identityTTL = ttl
	}
}

func NewRegistry(logger *zap.Logger, s storage, opts ...Option) *Registry {
	options := Options{
		identityCacheSize: 1024,
		identityTTL:       time.Hour,
	}
	for _, o := range opts {
		o(&options)
	}
	return &Registry{
		logger:     logger,
		storage:    s,
		wallets:    options.wallets,
		walletTTL:  options.walletTTL,
		identities: cache.NewLRUCache[uint64, script.Identity](options.identityCacheSize, "identity", options.identityTTL),
		now:        time.Now,
	}
}

// KeyInput is a participant key as entered by a user: Key is either a hex
// key hash or a signer address whose payment key hash is used.
type KeyInput struct {
	Key   string    `json:"key"`
	Role  core.Role `json:"role"`
	Label string    `json:"label,omitempty"`
}

type CreateParams struct {
	Name            string
	Network         core.Network
	Policy          core.Policy
	Keys            []KeyInput
	StakeCredential *core.Credential
}

func parseKey(network core.Network, in KeyInput) (core.ParticipantKey, error) {
	key := strings.TrimSpace(in.Key)
	var (
		kh  core.KeyHash
		err error
	)
	if len(key) == 2*core.HashSize28 && !strings.HasPrefix(strings.ToLower(key), "addr") {
		kh, err = core.ParseKeyHash(key)
	} else {
		var addr core.Address
		if addr, err = core.ParseAddress(key); err == nil {
			kh, err = addr.PaymentKeyHash()
		}
		if err == nil {
			if net, _ := addr.Network(); net != network {
				err = core.Errorf(core.KindInvalidAddress, "%s is not a %s address", addr, network)
			}
		}
	}
	if err != nil {
		return core.ParticipantKey{}, err
	}
	return core.ParticipantKey{KeyHash: kh, Role: in.Role, Label: in.Label}, nil
}

// ParseKeys converts every input and reports all malformed keys at once.
func ParseKeys(network core.Network, inputs []KeyInput) ([]core.ParticipantKey, error) {
	var (
		keys   []core.ParticipantKey
		errs   error
		first  core.Kind
		failed bool
	)
	for i, in := range inputs {
		k, err := parseKey(network, in)
		if err != nil {
			if !failed {
				first, failed = core.KindOf(err), true
			}
			errs = multierr.Append(errs, fmt.Errorf("key %d: %w", i, err))
			continue
		}
		keys = append(keys, k)
	}
	if errs != nil {
		return nil, core.WrapKind(first, errs, "invalid keys")
	}
	return keys, nil
}

// Create validates and persists a new wallet and returns it with its identity.
func (r *Registry) Create(ctx context.Context, p CreateParams) (core.Wallet, script.Identity, error) {
	keys, err := ParseKeys(p.Network, p.Keys)
	if err != nil {
		return core.Wallet{}, script.Identity{}, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return core.Wallet{}, script.Identity{}, core.Errorf(core.KindInvalidInput, "wallet name is empty")
	}
	w := core.Wallet{
		ID:              uuid.NewString(),
		Name:            name,
		Network:         p.Network,
		Policy:          p.Policy,
		Keys:            keys,
		StakeCredential: p.StakeCredential,
		CreatedAt:       r.now().UTC(),
	}
	if err := w.Validate(); err != nil {
		return core.Wallet{}, script.Identity{}, err
	}
	identity, err := r.Identity(w)
	if err != nil {
		return core.Wallet{}, script.Identity{}, err
	}
	if err := r.storage.SaveWallet(ctx, w); err != nil {
		return core.Wallet{}, script.Identity{}, errors.Wrap(err, "save wallet")
	}
	r.logger.Info("wallet created",
		zap.String("wallet", w.ID),
		zap.String("address", identity.Address.String()),
		zap.Stringer("policy", w.Policy))
	return w, identity, nil
}

func (r *Registry) GetWallet(ctx context.Context, id string) (core.Wallet, error) {
	if r.wallets == nil {
		return r.storage.GetWallet(ctx, id)
	}
	w, err := r.wallets.Get(ctx, id)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, cache.ErrorNotFound) {
		r.logger.Warn("wallet cache", zap.Error(err))
	}
	w, err = r.storage.GetWallet(ctx, id)
	if err != nil {
		return w, err
	}
	if err := r.wallets.Set(ctx, id, w, r.walletTTL); err != nil {
		r.logger.Warn("wallet cache set", zap.Error(err))
	}
	return w, nil
}

func (r *Registry) ListWallets(ctx context.Context) ([]core.Wallet, error) {
	return r.storage.ListWallets(ctx)
}

// IdentityKey hashes the inputs the derived identity depends on. Labels,
// key order and the wallet id do not change it.
func IdentityKey(w core.Wallet) uint64 {
	keys := make([]string, 0, len(w.Keys))
	for _, k := range w.Keys {
		keys = append(keys, fmt.Sprintf("%d:%s", k.Role, k.KeyHash.Hex()))
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	h := xxhash.New()
	fmt.Fprintf(h, "%d|%s|%s", w.Network, w.Policy, strings.Join(keys, ","))
	if c := w.StakeCredential; c != nil {
		fmt.Fprintf(h, "|%t:%s", c.Script, c.Hex())
	}
	return h.Sum64()
}

// Identity returns the derived identity of w, memoized by IdentityKey.
// Callers get their own copy and may modify it.
func (r *Registry) Identity(w core.Wallet) (script.Identity, error) {
	id, err := r.identities.GetOrLoad(IdentityKey(w), func() (script.Identity, error) {
		return script.Derive(w)
	})
	if err != nil {
		return id, err
	}
	return id.Clone(), nil
}

// Identities derives the identities of ws concurrently, in order.
func (r *Registry) Identities(ws []core.Wallet) ([]script.Identity, error) {
	return iter.MapErr(ws, func(w *core.Wallet) (script.Identity, error) {
		return r.Identity(*w)
	})
}
