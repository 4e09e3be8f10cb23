package aggregator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumsig/multisigd/pkg/core"
	pkgTesting "github.com/quorumsig/multisigd/pkg/testing"
)

func TestAggregator_Signable(t *testing.T) {
	f := newFixture(t, core.AtLeast(2), 3)
	a, b, c := f.signers[0], f.signers[1], f.signers[2]
	ctx := context.Background()
	payload := []byte(`{"vote":"yes","proposal":12}`)

	sv, err := f.agg.CreateSignable(ctx, CreateSignableParams{WalletID: f.wallet.ID, Proposer: a.Address, Payload: payload})
	require.Nil(t, err)
	id := sv.Signable.ID

	signParams := func(s pkgTesting.Signer, msg []byte) SignableSignatureParams {
		return SignableSignatureParams{
			WalletID:   f.wallet.ID,
			SignableID: id,
			Address:    s.Address,
			VKey:       s.Public,
			Signature:  s.SignMessage(msg),
		}
	}

	_, err = f.agg.SubmitSignableSignature(ctx, signParams(a, []byte("something else")))
	require.ErrorIs(t, err, core.ErrNoMatchingWitness)

	sv, err = f.agg.SubmitSignableSignature(ctx, signParams(a, payload))
	require.Nil(t, err)
	require.Equal(t, core.SignablePending, sv.Signable.State)

	_, err = f.agg.SubmitSignableSignature(ctx, signParams(a, payload))
	require.ErrorIs(t, err, core.ErrDuplicateSignature)

	sv, err = f.agg.SubmitSignableRejection(ctx, signParams(c, RejectionMessage(id)))
	require.Nil(t, err)
	require.False(t, sv.RejectionQuorum)

	sv, err = f.agg.SubmitSignableSignature(ctx, signParams(b, payload))
	require.Nil(t, err)
	require.Equal(t, core.SignableComplete, sv.Signable.State)
	require.Len(t, sv.Signable.Signatures, 2)
	require.Equal(t, []byte(b.Public), sv.Signable.Signatures[1].Key)
	require.Equal(t, 0, f.ledger.calls())

	_, err = f.agg.SubmitSignableRejection(ctx, signParams(c, RejectionMessage(id)))
	require.ErrorIs(t, err, core.ErrAlreadyFinalized)

	views, err := f.agg.ListSignables(ctx, f.wallet.ID)
	require.Nil(t, err)
	require.Len(t, views, 1)

	_, err = f.agg.GetSignable(ctx, "wallet-2", id)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestAggregator_CreateSignableValidation(t *testing.T) {
	f := newFixture(t, core.Any(), 1)
	_, err := f.agg.CreateSignable(context.Background(), CreateSignableParams{WalletID: f.wallet.ID, Proposer: f.signers[0].Address})
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestAggregator_SignableAddressForms(t *testing.T) {
	f := newFixture(t, core.AtLeast(2), 3)
	a, b := f.signers[0], f.signers[1]
	ctx := context.Background()
	payload := []byte(`{"vote":"no"}`)

	sv, err := f.agg.CreateSignable(ctx, CreateSignableParams{WalletID: f.wallet.ID, Proposer: a.Address, Payload: payload})
	require.Nil(t, err)
	id := sv.Signable.ID

	_, err = f.agg.SubmitSignableSignature(ctx, SignableSignatureParams{
		WalletID: f.wallet.ID, SignableID: id, Address: a.Address, VKey: a.Public, Signature: a.SignMessage(payload),
	})
	require.Nil(t, err)
	_, err = f.agg.SubmitSignableRejection(ctx, SignableSignatureParams{
		WalletID: f.wallet.ID, SignableID: id, Address: b.Address, VKey: b.Public, Signature: b.SignMessage(RejectionMessage(id)),
	})
	require.Nil(t, err)

	tests := []struct {
		name    string
		signer  pkgTesting.Signer
		reject  bool
		wantErr error
	}{
		{name: "signed key signs again", signer: a, wantErr: core.ErrDuplicateSignature},
		{name: "signed key rejects", signer: a, reject: true, wantErr: core.ErrDuplicateSignature},
		{name: "rejected key signs", signer: b, wantErr: core.ErrAlreadyRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := SignableSignatureParams{WalletID: f.wallet.ID, SignableID: id, Address: tt.signer.BaseAddress(t, 3), VKey: tt.signer.Public}
			if tt.reject {
				p.Signature = tt.signer.SignMessage(RejectionMessage(id))
				_, err = f.agg.SubmitSignableRejection(ctx, p)
			} else {
				p.Signature = tt.signer.SignMessage(payload)
				_, err = f.agg.SubmitSignableSignature(ctx, p)
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	sv, err = f.agg.GetSignable(ctx, f.wallet.ID, id)
	require.Nil(t, err)
	require.Equal(t, core.SignablePending, sv.Signable.State)
	require.Len(t, sv.Signable.Signatures, 1)
}
