package core

import (
	"bytes"
	"time"

	"golang.org/x/exp/slices"
)

// Wallet is a multisig account: a fixed key set under a quorum policy.
type Wallet struct {
	ID      string
	Name    string
	Network Network
	Policy  Policy
	Keys    []ParticipantKey
	// StakeCredential is an externally managed stake credential used when
	// the wallet has no staking keys of its own.
	StakeCredential *Credential
	CreatedAt       time.Time
}

func (w Wallet) KeysByRole(role Role) []ParticipantKey {
	var keys []ParticipantKey
	for _, k := range w.Keys {
		if k.Role == role {
			keys = append(keys, k)
		}
	}
	return keys
}

// Signers are the spending keys whose witnesses count towards quorum.
func (w Wallet) Signers() []ParticipantKey {
	return w.KeysByRole(RoleSpend)
}

func (w Wallet) IsSigner(kh KeyHash) bool {
	return slices.ContainsFunc(w.Signers(), func(k ParticipantKey) bool {
		return k.KeyHash == kh
	})
}

// EffectivePolicy is the wallet policy clamped to the current signer count.
func (w Wallet) EffectivePolicy() Policy {
	return w.Policy.Clamp(len(w.Signers()))
}

func (w Wallet) Validate() error {
	signers := len(w.Signers())
	if signers == 0 {
		return Errorf(KindNoKeysForRole, "wallet needs at least one %s key", RoleSpend)
	}
	type roleKey struct {
		role Role
		hash KeyHash
	}
	seen := make(map[roleKey]struct{}, len(w.Keys))
	for _, k := range w.Keys {
		switch k.Role {
		case RoleSpend, RoleStake, RoleDelegate:
		default:
			return Errorf(KindInvalidInput, "key %s has unknown role %d", k.KeyHash, k.Role)
		}
		rk := roleKey{k.Role, k.KeyHash}
		if _, ok := seen[rk]; ok {
			return Errorf(KindInvalidKeyHash, "duplicate %s key %s", k.Role, k.KeyHash)
		}
		seen[rk] = struct{}{}
	}
	return w.Policy.Validate(signers)
}

type TxState uint8

const (
	TxPending   TxState = 0
	TxFinalized TxState = 1
)

func (s TxState) String() string {
	if s == TxFinalized {
		return "finalized"
	}
	return "pending"
}

// PendingTransaction is a proposed transaction collecting witnesses.
type PendingTransaction struct {
	ID          string
	WalletID    string
	Description string
	TxBody      []byte
	Signed      AddressSet
	Rejected    AddressSet
	State       TxState
	// FinalHash is the hex ledger hash once finalized, empty before.
	FinalHash string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SameState reports whether every mutable field of t equals o's.
func (t PendingTransaction) SameState(o PendingTransaction) bool {
	return t.ID == o.ID &&
		bytes.Equal(t.TxBody, o.TxBody) &&
		t.Signed.Equal(o.Signed) &&
		t.Rejected.Equal(o.Rejected) &&
		t.State == o.State &&
		t.FinalHash == o.FinalHash
}

// WithSignature returns a copy of t with signer appended and the body
// replaced by the accumulated witness body.
func (t PendingTransaction) WithSignature(signer Address, body []byte, at time.Time) PendingTransaction {
	t.Signed, _ = t.Signed.Add(signer)
	t.TxBody = slices.Clone(body)
	t.UpdatedAt = at
	return t
}

func (t PendingTransaction) WithRejection(signer Address, at time.Time) PendingTransaction {
	t.Rejected, _ = t.Rejected.Add(signer)
	t.UpdatedAt = at
	return t
}

func (t PendingTransaction) Finalized(hash TxHash, at time.Time) PendingTransaction {
	t.State = TxFinalized
	t.FinalHash = hash.Hex()
	t.UpdatedAt = at
	return t
}

type SignableState uint8

const (
	SignablePending  SignableState = 0
	SignableComplete SignableState = 1
)

func (s SignableState) String() string {
	if s == SignableComplete {
		return "complete"
	}
	return "pending"
}

// SignatureBlob is one signer's detached signature over a signable payload.
type SignatureBlob struct {
	Key       []byte
	Signature []byte
}

// Signable is an off-chain payload collecting signatures under the wallet policy.
type Signable struct {
	ID          string
	WalletID    string
	Description string
	Payload     []byte
	Signed      AddressSet
	// Signatures is parallel to Signed.
	Signatures []SignatureBlob
	Rejected   AddressSet
	State      SignableState
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s Signable) SameState(o Signable) bool {
	if s.ID != o.ID || s.State != o.State || !s.Signed.Equal(o.Signed) || !s.Rejected.Equal(o.Rejected) {
		return false
	}
	return slices.EqualFunc(s.Signatures, o.Signatures, func(a, b SignatureBlob) bool {
		return bytes.Equal(a.Key, b.Key) && bytes.Equal(a.Signature, b.Signature)
	})
}

func (s Signable) WithSignature(signer Address, blob SignatureBlob, at time.Time) Signable {
	s.Signed, _ = s.Signed.Add(signer)
	s.Signatures = append(slices.Clone(s.Signatures), blob)
	s.UpdatedAt = at
	return s
}

func (s Signable) WithRejection(signer Address, at time.Time) Signable {
	s.Rejected, _ = s.Rejected.Add(signer)
	s.UpdatedAt = at
	return s
}
