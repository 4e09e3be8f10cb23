package script

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumsig/multisigd/pkg/core"
)

func key(b byte, role core.Role) core.ParticipantKey {
	var kh core.KeyHash
	copy(kh[:], bytes.Repeat([]byte{b}, core.HashSize28))
	return core.ParticipantKey{KeyHash: kh, Role: role, Label: string('a' + rune(b))}
}

func TestBuild(t *testing.T) {
	k1, k2, k3 := key(1, core.RoleSpend), key(2, core.RoleSpend), key(3, core.RoleSpend)
	tests := []struct {
		name    string
		keys    []core.ParticipantKey
		role    core.Role
		policy  core.Policy
		want    Script
		wantErr error
	}{
		{
			name:   "at least sorts keys",
			keys:   []core.ParticipantKey{k3, k1, k2},
			role:   core.RoleSpend,
			policy: core.AtLeast(2),
			want: Script{Kind: KindAtLeast, Required: 2, Scripts: []Script{
				{Kind: KindSig, KeyHash: k1.KeyHash},
				{Kind: KindSig, KeyHash: k2.KeyHash},
				{Kind: KindSig, KeyHash: k3.KeyHash},
			}},
		},
		{
			name:   "all",
			keys:   []core.ParticipantKey{k2, k1},
			role:   core.RoleSpend,
			policy: core.All(),
			want: Script{Kind: KindAll, Scripts: []Script{
				{Kind: KindSig, KeyHash: k1.KeyHash},
				{Kind: KindSig, KeyHash: k2.KeyHash},
			}},
		},
		{
			name:   "at least clamped to role size",
			keys:   []core.ParticipantKey{k1, k2, k3, key(9, core.RoleStake)},
			role:   core.RoleStake,
			policy: core.AtLeast(2),
			want: Script{Kind: KindAtLeast, Required: 1, Scripts: []Script{
				{Kind: KindSig, KeyHash: key(9, core.RoleStake).KeyHash},
			}},
		},
		{
			name:    "no keys for role",
			keys:    []core.ParticipantKey{k1},
			role:    core.RoleDelegate,
			policy:  core.Any(),
			wantErr: core.ErrNoKeysForRole,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(tt.keys, tt.role, tt.policy)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.Nil(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestScript_MarshalCBOR(t *testing.T) {
	k1 := key(1, core.RoleSpend)
	s, err := Build([]core.ParticipantKey{k1}, core.RoleSpend, core.AtLeast(1))
	require.Nil(t, err)
	b, err := s.MarshalCBOR()
	require.Nil(t, err)
	// [3, 1, [[0, h'0101..']]]
	want := "830301818200581c" + hex.EncodeToString(k1.KeyHash[:])
	require.Equal(t, want, hex.EncodeToString(b))

	all, err := Build([]core.ParticipantKey{k1}, core.RoleSpend, core.All())
	require.Nil(t, err)
	b, err = all.MarshalCBOR()
	require.Nil(t, err)
	require.Equal(t, "8201818200581c"+hex.EncodeToString(k1.KeyHash[:]), hex.EncodeToString(b))
}

func TestScript_JSON(t *testing.T) {
	s, err := Build([]core.ParticipantKey{key(2, core.RoleSpend), key(1, core.RoleSpend)}, core.RoleSpend, core.AtLeast(2))
	require.Nil(t, err)
	b, err := json.Marshal(s)
	require.Nil(t, err)
	require.Contains(t, string(b), `"type":"atLeast","required":2`)

	var back Script
	require.Nil(t, json.Unmarshal(b, &back))
	require.Equal(t, s, back)
}

func TestDerive_Deterministic(t *testing.T) {
	keys := []core.ParticipantKey{
		key(5, core.RoleSpend), key(1, core.RoleSpend), key(9, core.RoleSpend), key(3, core.RoleSpend),
		key(7, core.RoleStake), key(2, core.RoleStake),
		key(4, core.RoleDelegate), key(8, core.RoleDelegate),
	}
	base := core.Wallet{Network: core.Mainnet, Policy: core.AtLeast(2), Keys: keys}
	want, err := Derive(base)
	require.Nil(t, err)
	require.NotNil(t, want.StakeCredential)
	require.NotEmpty(t, want.StakeAddress)

	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := append([]core.ParticipantKey(nil), keys...)
		rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		w := base
		w.Keys = shuffled
		got, err := Derive(w)
		require.Nil(t, err)
		require.Equal(t, want.PaymentScriptHash, got.PaymentScriptHash)
		require.Equal(t, want.Address, got.Address)
		require.Equal(t, want.StakeCredential, got.StakeCredential)
		require.Equal(t, want.DelegateID, got.DelegateID)
	}
}

func TestDerive_Roles(t *testing.T) {
	spendOnly := core.Wallet{Network: core.Testnet, Policy: core.All(), Keys: []core.ParticipantKey{
		key(1, core.RoleSpend), key(2, core.RoleSpend),
	}}
	id, err := Derive(spendOnly)
	require.Nil(t, err)
	require.Nil(t, id.StakeCredential)
	require.Empty(t, id.StakeAddress)
	require.Equal(t, id.PaymentScriptHash, id.DelegateScriptHash)

	external := spendOnly
	external.StakeCredential = &core.Credential{Hash: key(6, core.RoleStake).KeyHash}
	withStake, err := Derive(external)
	require.Nil(t, err)
	require.Equal(t, id.PaymentScriptHash, withStake.PaymentScriptHash)
	require.NotEqual(t, id.Address, withStake.Address)
	require.NotEmpty(t, withStake.StakeAddress)

	withDelegate := spendOnly
	withDelegate.Keys = append(withDelegate.Keys, key(3, core.RoleDelegate))
	d, err := Derive(withDelegate)
	require.Nil(t, err)
	require.Equal(t, id.Address, d.Address, "delegate keys do not move the payment address")
	require.NotEqual(t, id.DelegateID, d.DelegateID)

	_, err = Derive(core.Wallet{Policy: core.All(), Keys: []core.ParticipantKey{key(1, core.RoleStake)}})
	require.ErrorIs(t, err, core.ErrNoKeysForRole)
}

func TestIdentity_Clone(t *testing.T) {
	id, err := Derive(core.Wallet{Network: core.Testnet, Policy: core.All(), Keys: []core.ParticipantKey{
		key(1, core.RoleSpend), key(2, core.RoleSpend), key(3, core.RoleStake), key(4, core.RoleStake),
	}})
	require.Nil(t, err)
	orig, err := Derive(core.Wallet{Network: core.Testnet, Policy: core.All(), Keys: []core.ParticipantKey{
		key(1, core.RoleSpend), key(2, core.RoleSpend), key(3, core.RoleStake), key(4, core.RoleStake),
	}})
	require.Nil(t, err)

	c := id.Clone()
	require.Equal(t, id, c)
	c.StakeScript.Scripts[0].KeyHash[0] ^= 0xff
	c.StakeCredential.Hash[0] ^= 0xff
	c.PaymentScript.Scripts[1].KeyHash[0] ^= 0xff
	require.Equal(t, orig, id)
}
