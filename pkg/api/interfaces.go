package api

import (
	"context"
	"time"

	"github.com/quorumsig/multisigd/pkg/aggregator"
	"github.com/quorumsig/multisigd/pkg/authn"
	"github.com/quorumsig/multisigd/pkg/core"
	"github.com/quorumsig/multisigd/pkg/script"
	"github.com/quorumsig/multisigd/pkg/wallet"
)

type walletRegistry interface {
	Create(ctx context.Context, p wallet.CreateParams) (core.Wallet, script.Identity, error)
	GetWallet(ctx context.Context, id string) (core.Wallet, error)
	ListWallets(ctx context.Context) ([]core.Wallet, error)
	Identity(w core.Wallet) (script.Identity, error)
	Identities(ws []core.Wallet) ([]script.Identity, error)
}

type multisig interface {
	Propose(ctx context.Context, p aggregator.ProposeParams) (aggregator.TransactionView, error)
	GetTransaction(ctx context.Context, walletID, id string) (aggregator.TransactionView, error)
	ListTransactions(ctx context.Context, walletID string) ([]aggregator.TransactionView, error)
	SubmitSignatureWithRetry(ctx context.Context, p aggregator.SignatureParams) (aggregator.SignatureResult, error)
	SubmitRejection(ctx context.Context, p aggregator.RejectionParams) (aggregator.RejectionResult, error)
	Finalize(ctx context.Context, walletID, id string) (aggregator.SignatureResult, error)

	CreateSignable(ctx context.Context, p aggregator.CreateSignableParams) (aggregator.SignableView, error)
	GetSignable(ctx context.Context, walletID, id string) (aggregator.SignableView, error)
	ListSignables(ctx context.Context, walletID string) ([]aggregator.SignableView, error)
	SubmitSignableSignature(ctx context.Context, p aggregator.SignableSignatureParams) (aggregator.SignableView, error)
	SubmitSignableRejection(ctx context.Context, p aggregator.SignableSignatureParams) (aggregator.SignableView, error)
}

// authenticator proves address control and issues bearer tokens.
type authenticator interface {
	GeneratePayload() (string, error)
	CheckProof(p authn.Proof) (core.Address, error)
	IssueToken(address core.Address) (string, time.Time)
	ParseToken(token string) (core.Address, error)
}
