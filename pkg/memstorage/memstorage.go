// Package memstorage keeps wallets and multisig records in process memory.
// Conditional writes are performed atomically per record.
package memstorage

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/puzpuzpuz/xsync/v2"
	"golang.org/x/exp/slices"

	"github.com/quorumsig/multisigd/pkg/core"
)

type Storage struct {
	wallets      *xsync.MapOf[string, core.Wallet]
	transactions *xsync.MapOf[string, core.PendingTransaction]
	signables    *xsync.MapOf[string, core.Signable]
}

func New() *Storage {
	return &Storage{
		wallets:      xsync.NewMapOf[core.Wallet](),
		transactions: xsync.NewMapOf[core.PendingTransaction](),
		signables:    xsync.NewMapOf[core.Signable](),
	}
}

func cloneWallet(w core.Wallet) core.Wallet {
	w.Keys = slices.Clone(w.Keys)
	if w.StakeCredential != nil {
		c := *w.StakeCredential
		w.StakeCredential = &c
	}
	return w
}

func (s *Storage) SaveWallet(ctx context.Context, w core.Wallet) error {
	if _, loaded := s.wallets.LoadOrStore(w.ID, cloneWallet(w)); loaded {
		return core.Errorf(core.KindInvalidInput, "wallet %s already exists", w.ID)
	}
	return nil
}

func (s *Storage) GetWallet(ctx context.Context, id string) (core.Wallet, error) {
	w, ok := s.wallets.Load(id)
	if !ok {
		return core.Wallet{}, errors.Wrapf(core.ErrNotFound, "wallet %s", id)
	}
	return cloneWallet(w), nil
}

func (s *Storage) ListWallets(ctx context.Context) ([]core.Wallet, error) {
	var out []core.Wallet
	s.wallets.Range(func(_ string, w core.Wallet) bool {
		out = append(out, cloneWallet(w))
		return true
	})
	slices.SortFunc(out, func(a, b core.Wallet) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *Storage) CreateTransaction(ctx context.Context, tx core.PendingTransaction) error {
	if _, loaded := s.transactions.LoadOrStore(tx.ID, tx); loaded {
		return core.Errorf(core.KindInvalidInput, "transaction %s already exists", tx.ID)
	}
	return nil
}

func (s *Storage) GetTransaction(ctx context.Context, id string) (core.PendingTransaction, error) {
	tx, ok := s.transactions.Load(id)
	if !ok {
		return core.PendingTransaction{}, errors.Wrapf(core.ErrNotFound, "transaction %s", id)
	}
	return tx, nil
}

func (s *Storage) ListTransactions(ctx context.Context, walletID string) ([]core.PendingTransaction, error) {
	var out []core.PendingTransaction
	s.transactions.Range(func(_ string, tx core.PendingTransaction) bool {
		if tx.WalletID == walletID {
			out = append(out, tx)
		}
		return true
	})
	slices.SortFunc(out, func(a, b core.PendingTransaction) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// UpdateTransaction replaces the record with next only if it still equals prior.
func (s *Storage) UpdateTransaction(ctx context.Context, prior, next core.PendingTransaction) error {
	var missing, stale bool
	s.transactions.Compute(prior.ID, func(current core.PendingTransaction, loaded bool) (core.PendingTransaction, bool) {
		if !loaded {
			missing = true
			return current, true
		}
		if !current.SameState(prior) {
			stale = true
			return current, false
		}
		return next, false
	})
	switch {
	case missing:
		return errors.Wrapf(core.ErrNotFound, "transaction %s", prior.ID)
	case stale:
		return core.ErrStale
	}
	return nil
}

func (s *Storage) CreateSignable(ctx context.Context, sg core.Signable) error {
	if _, loaded := s.signables.LoadOrStore(sg.ID, sg); loaded {
		return core.Errorf(core.KindInvalidInput, "signable %s already exists", sg.ID)
	}
	return nil
}

func (s *Storage) GetSignable(ctx context.Context, id string) (core.Signable, error) {
	sg, ok := s.signables.Load(id)
	if !ok {
		return core.Signable{}, errors.Wrapf(core.ErrNotFound, "signable %s", id)
	}
	return sg, nil
}

func (s *Storage) ListSignables(ctx context.Context, walletID string) ([]core.Signable, error) {
	var out []core.Signable
	s.signables.Range(func(_ string, sg core.Signable) bool {
		if sg.WalletID == walletID {
			out = append(out, sg)
		}
		return true
	})
	slices.SortFunc(out, func(a, b core.Signable) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *Storage) UpdateSignable(ctx context.Context, prior, next core.Signable) error {
	var missing, stale bool
	s.signables.Compute(prior.ID, func(current core.Signable, loaded bool) (core.Signable, bool) {
		if !loaded {
			missing = true
			return current, true
		}
		if !current.SameState(prior) {
			stale = true
			return current, false
		}
		return next, false
	})
	switch {
	case missing:
		return errors.Wrapf(core.ErrNotFound, "signable %s", prior.ID)
	case stale:
		return core.ErrStale
	}
	return nil
}
