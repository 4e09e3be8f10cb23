package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddressSet(t *testing.T) {
	s := NewAddressSet("a", "b", "a")
	require.Equal(t, []Address{"a", "b"}, s.Items())

	next, added := s.Add("c")
	require.True(t, added)
	require.Equal(t, 2, s.Len(), "receiver must stay untouched")
	require.Equal(t, []Address{"a", "b", "c"}, next.Items())

	same, added := next.Add("b")
	require.False(t, added)
	require.True(t, same.Equal(next))
}

func TestPendingTransaction_SameState(t *testing.T) {
	now := time.Now()
	s0 := PendingTransaction{ID: "tx", WalletID: "w", TxBody: []byte{1}}
	s1 := s0.WithSignature("a", []byte{2}, now)

	require.True(t, s0.SameState(s0))
	require.False(t, s0.SameState(s1))
	require.Equal(t, []byte{1}, s0.TxBody)
	require.Equal(t, 0, s0.Signed.Len())

	rejected := s0.WithRejection("b", now)
	require.False(t, s0.SameState(rejected))

	final := s1.Finalized(TxHash{1}, now)
	require.Equal(t, TxFinalized, final.State)
	require.False(t, s1.SameState(final))
}

func TestWallet_Validate(t *testing.T) {
	k1 := ParticipantKey{KeyHash: KeyHash(hashOf(1)), Role: RoleSpend}
	k2 := ParticipantKey{KeyHash: KeyHash(hashOf(2)), Role: RoleSpend}
	stake := ParticipantKey{KeyHash: KeyHash(hashOf(1)), Role: RoleStake}
	tests := []struct {
		name    string
		wallet  Wallet
		wantErr error
	}{
		{name: "ok", wallet: Wallet{Policy: AtLeast(2), Keys: []ParticipantKey{k1, k2, stake}}},
		{name: "no signers", wallet: Wallet{Policy: All(), Keys: []ParticipantKey{stake}}, wantErr: ErrNoKeysForRole},
		{name: "duplicate key", wallet: Wallet{Policy: All(), Keys: []ParticipantKey{k1, k1}}, wantErr: ErrInvalidKeyHash},
		{name: "policy too strict", wallet: Wallet{Policy: AtLeast(3), Keys: []ParticipantKey{k1, k2}}, wantErr: ErrInvalidPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wallet.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.Nil(t, err)
		})
	}
}

func TestError_Taxonomy(t *testing.T) {
	err := Errorf(KindConcurrentModification, "tx %s", "1")
	require.ErrorIs(t, err, ErrConcurrentModification)
	require.NotErrorIs(t, err, ErrNotFound)
	require.True(t, IsRetryable(err))
	require.Equal(t, ClassStateConflict, KindOf(err).Class())

	require.False(t, IsRetryable(ErrDuplicateSignature))
	require.Equal(t, ClassCryptographic, KindNoMatchingWitness.Class())
	require.Equal(t, KindInternal, KindOf(ErrStale))
	require.Equal(t, "NoMatchingWitness", ErrNoMatchingWitness.Error())
}
