package memstorage

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/require"

	"github.com/quorumsig/multisigd/pkg/core"
)

func TestStorage_UpdateTransaction(t *testing.T) {
	ctx := context.Background()
	s := New()
	s0 := core.PendingTransaction{ID: "tx-1", WalletID: "w", TxBody: []byte{1}}
	require.Nil(t, s.CreateTransaction(ctx, s0))
	require.Error(t, s.CreateTransaction(ctx, s0))

	s1 := s0.WithSignature("addr_a", []byte{2}, s0.CreatedAt)
	require.Nil(t, s.UpdateTransaction(ctx, s0, s1))

	// a writer holding the old snapshot loses
	s1b := s0.WithSignature("addr_b", []byte{3}, s0.CreatedAt)
	require.ErrorIs(t, s.UpdateTransaction(ctx, s0, s1b), core.ErrStale)

	got, err := s.GetTransaction(ctx, "tx-1")
	require.Nil(t, err)
	require.True(t, got.SameState(s1))

	missing := core.PendingTransaction{ID: "nope"}
	require.ErrorIs(t, s.UpdateTransaction(ctx, missing, missing), core.ErrNotFound)
	_, err = s.GetTransaction(ctx, "nope")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestStorage_UpdateTransaction_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := New()
	s0 := core.PendingTransaction{ID: "tx-1", WalletID: "w"}
	require.Nil(t, s.CreateTransaction(ctx, s0))

	var wins atomic.Int32
	var wg conc.WaitGroup
	for _, addr := range []core.Address{"a", "b", "c", "d", "e", "f", "g", "h"} {
		addr := addr
		wg.Go(func() {
			if s.UpdateTransaction(ctx, s0, s0.WithSignature(addr, nil, s0.CreatedAt)) == nil {
				wins.Add(1)
			}
		})
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())

	got, err := s.GetTransaction(ctx, "tx-1")
	require.Nil(t, err)
	require.Equal(t, 1, got.Signed.Len())
}

func TestStorage_Wallets(t *testing.T) {
	ctx := context.Background()
	s := New()
	w := core.Wallet{ID: "w", Policy: core.All(), Keys: []core.ParticipantKey{{Role: core.RoleSpend}}}
	require.Nil(t, s.SaveWallet(ctx, w))

	got, err := s.GetWallet(ctx, "w")
	require.Nil(t, err)
	got.Keys[0].Label = "mutated"

	again, err := s.GetWallet(ctx, "w")
	require.Nil(t, err)
	require.Equal(t, "", again.Keys[0].Label)

	all, err := s.ListWallets(ctx)
	require.Nil(t, err)
	require.Len(t, all, 1)
}

func TestStorage_UpdateSignable(t *testing.T) {
	ctx := context.Background()
	s := New()
	s0 := core.Signable{ID: "sg", WalletID: "w", Payload: []byte("hi")}
	require.Nil(t, s.CreateSignable(ctx, s0))

	s1 := s0.WithSignature("a", core.SignatureBlob{Key: []byte{1}, Signature: []byte{2}}, s0.CreatedAt)
	require.Nil(t, s.UpdateSignable(ctx, s0, s1))
	require.ErrorIs(t, s.UpdateSignable(ctx, s0, s1), core.ErrStale)

	list, err := s.ListSignables(ctx, "w")
	require.Nil(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, list[0].Signed.Len())
}
