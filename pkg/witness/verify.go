package witness

import (
	"crypto/ed25519"

	"github.com/quorumsig/multisigd/pkg/core"
)

// Verify proves that signedTx carries a witness made by the payment key of
// claimed: the witness key must hash to that key hash and its signature must
// verify over the transaction id.
func Verify(claimed core.Address, signedTx []byte) error {
	tx, err := Decode(signedTx)
	if err != nil {
		return err
	}
	return VerifyTx(claimed, tx)
}

func VerifyTx(claimed core.Address, tx *Transaction) error {
	_, err := witnessOf(claimed, tx)
	return err
}

// witnessOf returns the witness of tx made by the payment key of claimed.
func witnessOf(claimed core.Address, tx *Transaction) (VKeyWitness, error) {
	expected, err := claimed.PaymentKeyHash()
	if err != nil {
		return VKeyWitness{}, err
	}
	id := tx.ID()
	for _, w := range tx.witnesses {
		if len(w.VKey) != ed25519.PublicKeySize {
			continue
		}
		if core.HashVerificationKey(w.VKey) != expected {
			continue
		}
		if ed25519.Verify(w.VKey, id[:], w.Signature) {
			return w, nil
		}
	}
	return VKeyWitness{}, core.Errorf(core.KindNoMatchingWitness, "no witness for %s", claimed)
}

// VerifyMessage checks a detached signature over msg made by the payment key of claimed.
func VerifyMessage(claimed core.Address, vkey, signature, msg []byte) error {
	expected, err := claimed.PaymentKeyHash()
	if err != nil {
		return err
	}
	if len(vkey) != ed25519.PublicKeySize || core.HashVerificationKey(vkey) != expected {
		return core.Errorf(core.KindNoMatchingWitness, "key does not belong to %s", claimed)
	}
	if !ed25519.Verify(vkey, msg, signature) {
		return core.Errorf(core.KindNoMatchingWitness, "bad signature for %s", claimed)
	}
	return nil
}

// Merge adds the witness incoming carries for claimed to the witnesses
// accumulated in stored and returns the stored transaction re-encoded. Any
// other witness in incoming is ignored; a stored witness for the same key is
// replaced. Both must carry the same body.
func Merge(stored, incoming []byte, claimed core.Address) ([]byte, error) {
	prev, err := Decode(stored)
	if err != nil {
		return nil, err
	}
	next, err := Decode(incoming)
	if err != nil {
		return nil, err
	}
	if prev.ID() != next.ID() {
		return nil, core.Errorf(core.KindBodyMismatch, "body %s differs from %s", next.ID(), prev.ID())
	}
	w, err := witnessOf(claimed, next)
	if err != nil {
		return nil, err
	}
	prev.SetWitness(w)
	return prev.Encode()
}
