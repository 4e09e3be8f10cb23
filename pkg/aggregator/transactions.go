package aggregator

import (
	"context"
	"strings"

	"github.com/avast/retry-go"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quorumsig/multisigd/pkg/core"
	"github.com/quorumsig/multisigd/pkg/sentry"
	"github.com/quorumsig/multisigd/pkg/witness"
)

// finalizeAttempts bounds the reload loop that records a finalization.
const finalizeAttempts = 10

// TransactionView is a pending transaction with its quorum status.
type TransactionView struct {
	Transaction core.PendingTransaction
	Signers     int
	Threshold   int
	// QuorumReached is true once the signed set satisfies the policy.
	QuorumReached bool
	// RejectionQuorum is true once the signers that have not rejected can no
	// longer satisfy the policy. The record stays pending either way.
	RejectionQuorum bool
}

func view(w core.Wallet, tx core.PendingTransaction) TransactionView {
	total := len(w.Signers())
	policy := w.EffectivePolicy()
	return TransactionView{
		Transaction:     tx,
		Signers:         total,
		Threshold:       policy.Threshold(total),
		QuorumReached:   policy.Evaluate(total, tx.Signed.Len()),
		RejectionQuorum: !policy.Reachable(total, tx.Rejected.Len()),
	}
}

type ProposeParams struct {
	WalletID    string
	Proposer    core.Address
	TxCbor      []byte
	Description string
}

// Propose stores a new pending transaction with empty signed and rejected sets.
func (a *Aggregator) Propose(ctx context.Context, p ProposeParams) (tv TransactionView, err error) {
	defer func() { observe("propose", err) }()

	w, err := a.wallets.GetWallet(ctx, p.WalletID)
	if err != nil {
		return tv, err
	}
	if err := signer(w, p.Proposer); err != nil {
		return tv, err
	}
	if _, err := witness.Decode(p.TxCbor); err != nil {
		return tv, err
	}
	now := a.now().UTC()
	tx := core.PendingTransaction{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		Description: strings.TrimSpace(p.Description),
		TxBody:      p.TxCbor,
		State:       core.TxPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.storage.CreateTransaction(ctx, tx); err != nil {
		return tv, errors.Wrap(err, "create transaction")
	}
	a.logger.Info("transaction proposed",
		zap.String("wallet", w.ID),
		zap.String("transaction", tx.ID),
		zap.Stringer("proposer", p.Proposer))
	return view(w, tx), nil
}

// load returns the record and its wallet. A record of another wallet is
// reported as missing.
func (a *Aggregator) load(ctx context.Context, walletID, id string) (core.Wallet, core.PendingTransaction, error) {
	tx, err := a.storage.GetTransaction(ctx, id)
	if err != nil {
		return core.Wallet{}, tx, err
	}
	if tx.WalletID != walletID {
		return core.Wallet{}, tx, errors.Wrapf(core.ErrNotFound, "transaction %s", id)
	}
	w, err := a.wallets.GetWallet(ctx, walletID)
	return w, tx, err
}

func (a *Aggregator) GetTransaction(ctx context.Context, walletID, id string) (TransactionView, error) {
	w, tx, err := a.load(ctx, walletID, id)
	if err != nil {
		return TransactionView{}, err
	}
	return view(w, tx), nil
}

func (a *Aggregator) ListTransactions(ctx context.Context, walletID string) ([]TransactionView, error) {
	w, err := a.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	txs, err := a.storage.ListTransactions(ctx, walletID)
	if err != nil {
		return nil, err
	}
	views := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, view(w, tx))
	}
	return views, nil
}

type SignatureParams struct {
	WalletID      string
	TransactionID string
	Address       core.Address
	SignedTx      []byte
}

type SignatureResult struct {
	Accepted  bool
	Finalized bool
	FinalHash string
	View      TransactionView
}

// SubmitSignature credits claimed address with the witness it carries in
// SignedTx. When the signature completes the quorum the transaction is
// submitted to the ledger. A failed submission leaves the record pending with
// the signature kept; the result then has Accepted set and the error says
// whether the outcome is known.
func (a *Aggregator) SubmitSignature(ctx context.Context, p SignatureParams) (res SignatureResult, err error) {
	defer func() { observe("sign", err) }()

	w, s0, err := a.load(ctx, p.WalletID, p.TransactionID)
	if err != nil {
		return res, err
	}
	if s0.State == core.TxFinalized {
		return res, core.Errorf(core.KindAlreadyFinalized, "transaction %s", s0.ID)
	}
	addr, err := admit(w, s0.Signed, s0.Rejected, p.Address)
	if err != nil {
		return res, err
	}
	if err := witness.Verify(p.Address, p.SignedTx); err != nil {
		return res, err
	}
	merged, err := witness.Merge(s0.TxBody, p.SignedTx, p.Address)
	if err != nil {
		return res, err
	}
	s1 := s0.WithSignature(addr, merged, a.now().UTC())
	total := len(w.Signers())
	quorum := w.EffectivePolicy().Evaluate(total, s1.Signed.Len())

	if err := a.storage.UpdateTransaction(ctx, s0, s1); err != nil {
		return res, casError(err)
	}
	a.logger.Info("signature accepted",
		zap.String("transaction", s1.ID),
		zap.Stringer("signer", addr),
		zap.Int("signed", s1.Signed.Len()),
		zap.Bool("quorum", quorum))

	res = SignatureResult{Accepted: true, View: view(w, s1)}
	if !quorum {
		return res, nil
	}
	final, err := a.finalize(ctx, s1)
	if err != nil {
		return res, err
	}
	return SignatureResult{
		Accepted:  true,
		Finalized: true,
		FinalHash: final.FinalHash,
		View:      view(w, final),
	}, nil
}

// SubmitSignatureWithRetry repeats SubmitSignature from a fresh read while it
// fails with ConcurrentModification.
func (a *Aggregator) SubmitSignatureWithRetry(ctx context.Context, p SignatureParams) (SignatureResult, error) {
	var res SignatureResult
	err := retry.Do(func() error {
		var err error
		res, err = a.SubmitSignature(ctx, p)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(a.retryAttempts),
		retry.Delay(a.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, core.ErrConcurrentModification)
		}),
	)
	return res, err
}

// Finalize retries the ledger submission of a pending transaction whose
// signatures already satisfy the policy.
func (a *Aggregator) Finalize(ctx context.Context, walletID, id string) (res SignatureResult, err error) {
	defer func() { observe("finalize", err) }()

	w, tx, err := a.load(ctx, walletID, id)
	if err != nil {
		return res, err
	}
	if tx.State == core.TxFinalized {
		return res, core.Errorf(core.KindAlreadyFinalized, "transaction %s", tx.ID)
	}
	v := view(w, tx)
	if !v.QuorumReached {
		return res, core.Errorf(core.KindQuorumNotReached, "%d of %d signatures", tx.Signed.Len(), v.Threshold)
	}
	final, err := a.finalize(ctx, tx)
	if err != nil {
		return SignatureResult{View: v}, err
	}
	return SignatureResult{Finalized: true, FinalHash: final.FinalHash, View: view(w, final)}, nil
}

func submissionError(err error) error {
	switch core.KindOf(err) {
	case core.KindSubmissionFailed, core.KindSubmissionUnknown:
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.WrapKind(core.KindSubmissionUnknown, err, "ledger submission timed out")
	}
	return core.WrapKind(core.KindSubmissionFailed, err, "ledger submission")
}

// finalize submits tx and records the finalization. The signed set is never
// rolled back on failure.
func (a *Aggregator) finalize(ctx context.Context, tx core.PendingTransaction) (core.PendingTransaction, error) {
	sctx, cancel := context.WithTimeout(ctx, a.submitTimeout)
	hash, err := a.ledger.SendMessage(sctx, tx.TxBody)
	cancel()
	if err != nil {
		err = submissionError(err)
		level := sentry.LevelError
		if errors.Is(err, core.ErrSubmissionUnknown) {
			level = sentry.LevelWarning
		}
		sentry.Send("ledger submission", sentry.SentryInfoData{
			"transaction": tx.ID,
			"wallet":      tx.WalletID,
			"error":       err.Error(),
		}, level)
		a.logger.Error("ledger submission", zap.String("transaction", tx.ID), zap.Error(err))
		observe("submit", err)
		if cur, lerr := a.storage.GetTransaction(ctx, tx.ID); lerr == nil && cur.State == core.TxFinalized {
			return cur, nil
		}
		return tx, err
	}
	observe("submit", nil)

	cur := tx
	for i := 0; i < finalizeAttempts; i++ {
		next := cur.Finalized(hash, a.now().UTC())
		err := a.storage.UpdateTransaction(ctx, cur, next)
		if err == nil {
			a.logger.Info("transaction finalized", zap.String("transaction", tx.ID), zap.String("hash", next.FinalHash))
			return next, nil
		}
		if !errors.Is(err, core.ErrStale) {
			return tx, errors.Wrap(err, "record finalization")
		}
		if cur, err = a.storage.GetTransaction(ctx, tx.ID); err != nil {
			return tx, err
		}
		if cur.State == core.TxFinalized {
			return cur, nil
		}
	}
	return tx, core.Errorf(core.KindConcurrentModification, "could not record finalization of %s", tx.ID)
}

type RejectionParams struct {
	WalletID      string
	TransactionID string
	Address       core.Address
	// VKey and Signature prove key control: an ed25519 signature over
	// RejectionMessage(TransactionID).
	VKey      []byte
	Signature []byte
}

type RejectionResult struct {
	Accepted bool
	View     TransactionView
}

// SubmitRejection records that claimed address declines the transaction.
// Rejections never change the transaction state.
func (a *Aggregator) SubmitRejection(ctx context.Context, p RejectionParams) (res RejectionResult, err error) {
	defer func() { observe("reject", err) }()

	w, s0, err := a.load(ctx, p.WalletID, p.TransactionID)
	if err != nil {
		return res, err
	}
	if s0.State == core.TxFinalized {
		return res, core.Errorf(core.KindAlreadyFinalized, "transaction %s", s0.ID)
	}
	addr, err := admit(w, s0.Signed, s0.Rejected, p.Address)
	if err != nil {
		return res, err
	}
	if err := witness.VerifyMessage(p.Address, p.VKey, p.Signature, RejectionMessage(s0.ID)); err != nil {
		return res, err
	}
	s1 := s0.WithRejection(addr, a.now().UTC())
	if err := a.storage.UpdateTransaction(ctx, s0, s1); err != nil {
		return res, casError(err)
	}
	a.logger.Info("rejection accepted", zap.String("transaction", s1.ID), zap.Stringer("signer", addr))
	return RejectionResult{Accepted: true, View: view(w, s1)}, nil
}
