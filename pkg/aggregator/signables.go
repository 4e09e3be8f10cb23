package aggregator

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quorumsig/multisigd/pkg/core"
	"github.com/quorumsig/multisigd/pkg/witness"
)

type SignableView struct {
	Signable        core.Signable
	Signers         int
	Threshold       int
	RejectionQuorum bool
}

func signableView(w core.Wallet, sg core.Signable) SignableView {
	total := len(w.Signers())
	policy := w.EffectivePolicy()
	return SignableView{
		Signable:        sg,
		Signers:         total,
		Threshold:       policy.Threshold(total),
		RejectionQuorum: !policy.Reachable(total, sg.Rejected.Len()),
	}
}

type CreateSignableParams struct {
	WalletID    string
	Proposer    core.Address
	Payload     []byte
	Description string
}

func (a *Aggregator) CreateSignable(ctx context.Context, p CreateSignableParams) (sv SignableView, err error) {
	defer func() { observe("signable_create", err) }()

	w, err := a.wallets.GetWallet(ctx, p.WalletID)
	if err != nil {
		return sv, err
	}
	if err := signer(w, p.Proposer); err != nil {
		return sv, err
	}
	if len(p.Payload) == 0 {
		return sv, core.Errorf(core.KindInvalidInput, "payload is empty")
	}
	now := a.now().UTC()
	sg := core.Signable{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		Description: strings.TrimSpace(p.Description),
		Payload:     p.Payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.storage.CreateSignable(ctx, sg); err != nil {
		return sv, errors.Wrap(err, "create signable")
	}
	return signableView(w, sg), nil
}

func (a *Aggregator) loadSignable(ctx context.Context, walletID, id string) (core.Wallet, core.Signable, error) {
	sg, err := a.storage.GetSignable(ctx, id)
	if err != nil {
		return core.Wallet{}, sg, err
	}
	if sg.WalletID != walletID {
		return core.Wallet{}, sg, errors.Wrapf(core.ErrNotFound, "signable %s", id)
	}
	w, err := a.wallets.GetWallet(ctx, walletID)
	return w, sg, err
}

func (a *Aggregator) GetSignable(ctx context.Context, walletID, id string) (SignableView, error) {
	w, sg, err := a.loadSignable(ctx, walletID, id)
	if err != nil {
		return SignableView{}, err
	}
	return signableView(w, sg), nil
}

func (a *Aggregator) ListSignables(ctx context.Context, walletID string) ([]SignableView, error) {
	w, err := a.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	sgs, err := a.storage.ListSignables(ctx, walletID)
	if err != nil {
		return nil, err
	}
	views := make([]SignableView, 0, len(sgs))
	for _, sg := range sgs {
		views = append(views, signableView(w, sg))
	}
	return views, nil
}

type SignableSignatureParams struct {
	WalletID   string
	SignableID string
	Address    core.Address
	// Signature is over the payload for a signature and over
	// RejectionMessage(SignableID) for a rejection.
	VKey      []byte
	Signature []byte
}

// checkSignable loads the signable and admits p.Address, returning its member address.
func (a *Aggregator) checkSignable(ctx context.Context, p SignableSignatureParams) (core.Wallet, core.Signable, core.Address, error) {
	w, s0, err := a.loadSignable(ctx, p.WalletID, p.SignableID)
	if err != nil {
		return w, s0, "", err
	}
	if s0.State == core.SignableComplete {
		return w, s0, "", core.Errorf(core.KindAlreadyFinalized, "signable %s", s0.ID)
	}
	addr, err := admit(w, s0.Signed, s0.Rejected, p.Address)
	return w, s0, addr, err
}

// SubmitSignableSignature stores a detached signature over the payload. The
// record becomes complete once the signatures satisfy the wallet policy.
func (a *Aggregator) SubmitSignableSignature(ctx context.Context, p SignableSignatureParams) (sv SignableView, err error) {
	defer func() { observe("signable_sign", err) }()

	w, s0, addr, err := a.checkSignable(ctx, p)
	if err != nil {
		return sv, err
	}
	if err := witness.VerifyMessage(p.Address, p.VKey, p.Signature, s0.Payload); err != nil {
		return sv, err
	}
	s1 := s0.WithSignature(addr, core.SignatureBlob{Key: p.VKey, Signature: p.Signature}, a.now().UTC())
	if w.EffectivePolicy().Evaluate(len(w.Signers()), s1.Signed.Len()) {
		s1.State = core.SignableComplete
	}
	if err := a.storage.UpdateSignable(ctx, s0, s1); err != nil {
		return sv, casError(err)
	}
	a.logger.Info("signable signature accepted",
		zap.String("signable", s1.ID),
		zap.Stringer("signer", addr),
		zap.Stringer("state", s1.State))
	return signableView(w, s1), nil
}

func (a *Aggregator) SubmitSignableRejection(ctx context.Context, p SignableSignatureParams) (sv SignableView, err error) {
	defer func() { observe("signable_reject", err) }()

	w, s0, addr, err := a.checkSignable(ctx, p)
	if err != nil {
		return sv, err
	}
	if err := witness.VerifyMessage(p.Address, p.VKey, p.Signature, RejectionMessage(s0.ID)); err != nil {
		return sv, err
	}
	s1 := s0.WithRejection(addr, a.now().UTC())
	if err := a.storage.UpdateSignable(ctx, s0, s1); err != nil {
		return sv, casError(err)
	}
	return signableView(w, s1), nil
}
