package core

import (
	"bytes"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	// HashSize28 is the size of key hashes and script hashes.
	HashSize28 = 28
	// HashSize32 is the size of transaction ids.
	HashSize32 = 32
)

type KeyHash [HashSize28]byte

type ScriptHash [HashSize28]byte

type TxHash [HashSize32]byte

func ParseKeyHash(s string) (KeyHash, error) {
	var kh KeyHash
	b, err := hex.DecodeString(strings.TrimSpace(strings.ToLower(s)))
	if err != nil {
		return kh, WrapKind(KindInvalidKeyHash, err, s)
	}
	if len(b) != HashSize28 {
		return kh, Errorf(KindInvalidKeyHash, "%q: want %d bytes, got %d", s, HashSize28, len(b))
	}
	copy(kh[:], b)
	return kh, nil
}

func (k KeyHash) Hex() string { return hex.EncodeToString(k[:]) }

func (k KeyHash) String() string { return k.Hex() }

func (k KeyHash) Compare(o KeyHash) int { return bytes.Compare(k[:], o[:]) }

func (k KeyHash) MarshalText() ([]byte, error) { return []byte(k.Hex()), nil }

func (k *KeyHash) UnmarshalText(b []byte) error {
	kh, err := ParseKeyHash(string(b))
	if err != nil {
		return err
	}
	*k = kh
	return nil
}

func (s ScriptHash) Hex() string { return hex.EncodeToString(s[:]) }

func (s ScriptHash) String() string { return s.Hex() }

func (s ScriptHash) MarshalText() ([]byte, error) { return []byte(s.Hex()), nil }

func (t TxHash) Hex() string { return hex.EncodeToString(t[:]) }

func (t TxHash) String() string { return t.Hex() }

func ParseTxHash(s string) (TxHash, error) {
	var h TxHash
	b, err := hex.DecodeString(strings.TrimSpace(strings.ToLower(s)))
	if err != nil || len(b) != HashSize32 {
		return h, Errorf(KindInvalidInput, "invalid transaction hash %q", s)
	}
	copy(h[:], b)
	return h, nil
}

// Blake2b224 returns the 28-byte Blake2b digest used for key and script hashes.
func Blake2b224(data []byte) [HashSize28]byte {
	h, _ := blake2b.New(HashSize28, nil)
	h.Write(data)
	var out [HashSize28]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HashVerificationKey hashes an ed25519 verification key into a KeyHash.
func HashVerificationKey(vkey []byte) KeyHash {
	return KeyHash(Blake2b224(vkey))
}

// Role is the purpose a participant key is used for. Values follow the
// derivation role numbers of multisig wallets.
type Role uint8

const (
	RoleSpend    Role = 0
	RoleStake    Role = 2
	RoleDelegate Role = 3
)

func (r Role) String() string {
	switch r {
	case RoleSpend:
		return "spend"
	case RoleStake:
		return "stake"
	case RoleDelegate:
		return "delegate"
	}
	return "unknown"
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spend", "payment", "0", "":
		return RoleSpend, nil
	case "stake", "staking", "2":
		return RoleStake, nil
	case "delegate", "drep", "3":
		return RoleDelegate, nil
	}
	return 0, Errorf(KindInvalidInput, "unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	role, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// ParticipantKey is one key of a multisig wallet.
type ParticipantKey struct {
	KeyHash KeyHash `json:"keyHash"`
	Role    Role    `json:"role"`
	Label   string  `json:"label,omitempty"`
}

// Credential is a payment or stake credential: either a key hash or a script hash.
type Credential struct {
	Hash   [HashSize28]byte
	Script bool
}

func ParseCredential(s string, script bool) (Credential, error) {
	kh, err := ParseKeyHash(s)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Hash: kh, Script: script}, nil
}

func (c Credential) Hex() string { return hex.EncodeToString(c.Hash[:]) }
