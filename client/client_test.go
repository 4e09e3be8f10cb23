package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quorumsig/multisigd/pkg/aggregator"
	"github.com/quorumsig/multisigd/pkg/api"
	"github.com/quorumsig/multisigd/pkg/authn"
	"github.com/quorumsig/multisigd/pkg/core"
	"github.com/quorumsig/multisigd/pkg/memstorage"
	pkgTesting "github.com/quorumsig/multisigd/pkg/testing"
	"github.com/quorumsig/multisigd/pkg/wallet"
	"github.com/quorumsig/multisigd/pkg/witness"
)

type ledger struct{}

func (ledger) SendMessage(ctx context.Context, tx []byte) (core.TxHash, error) {
	decoded, err := witness.Decode(tx)
	if err != nil {
		return core.TxHash{}, err
	}
	return decoded.ID(), nil
}

func newServer(t *testing.T, auth *authn.Authn) *httptest.Server {
	storage := memstorage.New()
	registry := wallet.NewRegistry(zap.NewNop(), storage)
	agg := aggregator.New(zap.NewNop(), storage, registry, ledger{})
	var opts []api.Option
	if auth != nil {
		opts = append(opts, api.WithAuthenticator(auth))
	}
	srv := httptest.NewServer(api.NewHandler(zap.NewNop(), registry, agg, opts...).Router())
	t.Cleanup(srv.Close)
	return srv
}

func signers(t *testing.T) []pkgTesting.Signer {
	var res []pkgTesting.Signer
	for i := byte(1); i <= 3; i++ {
		res = append(res, pkgTesting.NewSigner(t, i, core.Testnet))
	}
	return res
}

func createWallet(t *testing.T, cli *Client, policy core.Policy, ss []pkgTesting.Signer) api.Wallet {
	req := api.CreateWalletRequest{Name: "ops", Policy: policy}
	for _, s := range ss {
		req.Keys = append(req.Keys, wallet.KeyInput{Key: s.Address.String(), Role: core.RoleSpend})
	}
	w, err := cli.CreateWallet(context.Background(), req)
	require.Nil(t, err)
	return w
}

func TestClient_TransactionFlow(t *testing.T) {
	ctx := context.Background()
	cli := NewClient(newServer(t, nil).URL)
	ss := signers(t)
	w := createWallet(t, cli, core.AtLeast(2), ss)

	wallets, err := cli.ListWallets(ctx)
	require.Nil(t, err)
	require.Len(t, wallets, 1)

	body := pkgTesting.NewTxBody(t, 180_000)
	tx, err := cli.ProposeTransaction(ctx, w.ID, ss[0].Address, body, "rent")
	require.Nil(t, err)
	require.Equal(t, 2, tx.Threshold)

	rejection := ss[2].SignMessage(aggregator.RejectionMessage(tx.ID))
	rej, err := cli.SubmitRejection(ctx, w.ID, tx.ID, ss[2].Address, ss[2].Public, rejection)
	require.Nil(t, err)
	require.True(t, rej.Accepted)
	require.Equal(t, 1, rej.Transaction.RejectedAddresses.Len())

	res, err := cli.SubmitSignature(ctx, w.ID, tx.ID, ss[0].Address, pkgTesting.Sign(t, body, ss[0]))
	require.Nil(t, err)
	require.False(t, res.Finalized)

	_, err = cli.FinalizeTransaction(ctx, w.ID, tx.ID, ss[0].Address)
	require.ErrorIs(t, err, core.ErrQuorumNotReached)

	res, err = cli.SubmitSignature(ctx, w.ID, tx.ID, ss[1].Address, pkgTesting.Sign(t, body, ss[1]))
	require.Nil(t, err)
	require.True(t, res.Finalized)
	require.NotEmpty(t, res.FinalHash)

	got, err := cli.GetTransaction(ctx, w.ID, tx.ID)
	require.Nil(t, err)
	require.Equal(t, core.TxFinalized, got.State)

	list, err := cli.ListTransactions(ctx, w.ID)
	require.Nil(t, err)
	require.Len(t, list, 1)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	cli := NewClient(newServer(t, nil).URL)
	ss := signers(t)
	w := createWallet(t, cli, core.All(), ss[:2])

	tests := []struct {
		name   string
		call   func() error
		want   error
		status int
	}{
		{
			name: "unknown wallet",
			call: func() error {
				_, err := cli.GetWallet(ctx, "missing")
				return err
			},
			want:   core.ErrNotFound,
			status: http.StatusNotFound,
		},
		{
			name: "outsider proposes",
			call: func() error {
				_, err := cli.ProposeTransaction(ctx, w.ID, ss[2].Address, pkgTesting.NewTxBody(t, 1), "")
				return err
			},
			want:   core.ErrUnauthorized,
			status: http.StatusForbidden,
		},
		{
			name: "empty signable",
			call: func() error {
				_, err := cli.CreateSignable(ctx, w.ID, ss[0].Address, nil, "")
				return err
			},
			want:   core.ErrInvalidInput,
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.ErrorIs(t, err, tt.want)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestClient_Signables(t *testing.T) {
	ctx := context.Background()
	cli := NewClient(newServer(t, nil).URL)
	ss := signers(t)
	w := createWallet(t, cli, core.Any(), ss)

	payload := []byte("governance vote 7")
	sg, err := cli.CreateSignable(ctx, w.ID, ss[1].Address, payload, "vote")
	require.Nil(t, err)
	require.Equal(t, 1, sg.Threshold)

	sg, err = cli.SignSignable(ctx, w.ID, sg.ID, ss[1].Address, ss[1].Public, ss[1].SignMessage(payload))
	require.Nil(t, err)
	require.Equal(t, core.SignableComplete, sg.State)
	require.Len(t, sg.Signatures, 1)

	_, err = cli.RejectSignable(ctx, w.ID, sg.ID, ss[2].Address, ss[2].Public, ss[2].SignMessage(payload))
	require.ErrorIs(t, err, core.ErrAlreadyFinalized)

	list, err := cli.ListSignables(ctx, w.ID)
	require.Nil(t, err)
	require.Len(t, list, 1)
}

func TestClient_Authentication(t *testing.T) {
	ctx := context.Background()
	cli := NewClient(newServer(t, authn.New("secret", time.Hour)).URL)
	ss := signers(t)
	w := createWallet(t, cli, core.Any(), ss)

	_, err := cli.ProposeTransaction(ctx, w.ID, ss[0].Address, pkgTesting.NewTxBody(t, 1), "")
	require.ErrorIs(t, err, core.ErrUnauthorized)

	payload, err := cli.Challenge(ctx)
	require.Nil(t, err)
	tok, err := cli.Verify(ctx, authn.Proof{
		Address:   ss[0].Address.String(),
		Payload:   payload,
		Key:       hexKey(ss[0]),
		Signature: hexSig(ss[0].SignMessage(authn.CreateMessage(ss[0].Address, payload))),
	})
	require.Nil(t, err)
	require.Equal(t, ss[0].Address, tok.Address)

	_, err = cli.ProposeTransaction(ctx, w.ID, ss[0].Address, pkgTesting.NewTxBody(t, 1), "")
	require.Nil(t, err)
}

func TestClient_Retry(t *testing.T) {
	tests := []struct {
		name      string
		kind      core.Kind
		accepted  bool
		wantCalls int32
	}{
		{name: "concurrent modification is retried", kind: core.KindConcurrentModification, wantCalls: 3},
		{name: "validation error is not", kind: core.KindInvalidInput, wantCalls: 1},
		{name: "accepted submission failure is not", kind: core.KindSubmissionFailed, accepted: true, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.Header().Set("content-type", "application/json")
				w.WriteHeader(http.StatusConflict)
				kind, _ := tt.kind.MarshalText()
				_, _ = w.Write([]byte(`{"error":"x","kind":"` + string(kind) + `","retryable":` +
					boolJSON(tt.kind.Retryable()) + `,"accepted":` + boolJSON(tt.accepted) + `}`))
			}))
			defer srv.Close()

			cli := NewClient(srv.URL, WithRetry(3, time.Millisecond))
			_, err := cli.GetWallet(context.Background(), "w")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.kind, apiErr.Kind)
			require.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}
