package testing

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/quorumsig/multisigd/pkg/core"
	"github.com/quorumsig/multisigd/pkg/witness"
)

// Signer is a deterministic ed25519 key pair with its enterprise address.
type Signer struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
	KeyHash core.KeyHash
	Address core.Address
}

func NewSigner(t testing.TB, seed byte, network core.Network) Signer {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	pub := priv.Public().(ed25519.PublicKey)
	kh := core.HashVerificationKey(pub)
	addr, err := core.NewKeyAddress(network, kh)
	require.Nil(t, err)
	return Signer{Private: priv, Public: pub, KeyHash: kh, Address: addr}
}

func (s Signer) Key(role core.Role) core.ParticipantKey {
	return core.ParticipantKey{KeyHash: s.KeyHash, Role: role, Label: s.Address.String()[:12]}
}

func (s Signer) SignMessage(msg []byte) []byte {
	return ed25519.Sign(s.Private, msg)
}

// BaseAddress is a base address paying to s's key, staked to an arbitrary key
// chosen by seed. It is another address form of the same signer.
func (s Signer) BaseAddress(t testing.TB, seed byte) core.Address {
	network, err := s.Address.Network()
	require.Nil(t, err)
	var stake core.Credential
	copy(stake.Hash[:], bytes.Repeat([]byte{seed}, core.HashSize28))
	addr, err := core.NewBaseKeyAddress(network, s.KeyHash, stake)
	require.Nil(t, err)
	return addr
}

// NewTxBody returns an unsigned transaction spending one input with the given fee.
func NewTxBody(t testing.TB, fee uint64) []byte {
	body := map[uint64]any{
		0: []any{[]any{bytes.Repeat([]byte{0x11}, 32), uint64(0)}},
		1: []any{[]any{bytes.Repeat([]byte{0x60}, 29), uint64(2_000_000)}},
		2: fee,
	}
	em, err := cbor.CoreDetEncOptions().EncMode()
	require.Nil(t, err)
	b, err := em.Marshal([]any{body, map[uint64]any{}, true, nil})
	require.Nil(t, err)
	return b
}

// Sign adds a witness by every signer to tx.
func Sign(t testing.TB, tx []byte, signers ...Signer) []byte {
	decoded, err := witness.Decode(tx)
	require.Nil(t, err)
	id := decoded.ID()
	for _, s := range signers {
		decoded.AddWitnesses(witness.VKeyWitness{VKey: s.Public, Signature: ed25519.Sign(s.Private, id[:])})
	}
	out, err := decoded.Encode()
	require.Nil(t, err)
	return out
}

// WithWitness adds an arbitrary witness to tx, valid or not.
func WithWitness(t testing.TB, tx []byte, vkey, signature []byte) []byte {
	decoded, err := witness.Decode(tx)
	require.Nil(t, err)
	decoded.AddWitnesses(witness.VKeyWitness{VKey: vkey, Signature: signature})
	out, err := decoded.Encode()
	require.Nil(t, err)
	return out
}

// SignedBy lists the verification key hashes of every witness in tx.
func SignedBy(t testing.TB, tx []byte) []core.KeyHash {
	decoded, err := witness.Decode(tx)
	require.Nil(t, err)
	var out []core.KeyHash
	for _, w := range decoded.Witnesses() {
		out = append(out, core.HashVerificationKey(w.VKey))
	}
	return out
}
