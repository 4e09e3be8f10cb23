package authn

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quorumsig/multisigd/pkg/core"
	pkgTesting "github.com/quorumsig/multisigd/pkg/testing"
)

func proofFor(t *testing.T, a *Authn, s pkgTesting.Signer) Proof {
	payload, err := a.GeneratePayload()
	require.Nil(t, err)
	return Proof{
		Address:   s.Address.String(),
		Payload:   payload,
		Key:       hex.EncodeToString(s.Public),
		Signature: hex.EncodeToString(s.SignMessage(CreateMessage(s.Address, payload))),
	}
}

func TestAuthn_CheckProof(t *testing.T) {
	a := New("secret", time.Hour)
	alice := pkgTesting.NewSigner(t, 1, core.Testnet)
	bob := pkgTesting.NewSigner(t, 2, core.Testnet)

	tests := []struct {
		name    string
		proof   func() Proof
		wantErr error
	}{
		{
			name:  "valid",
			proof: func() Proof { return proofFor(t, a, alice) },
		},
		{
			name: "key of another address",
			proof: func() Proof {
				p := proofFor(t, a, bob)
				p.Address = alice.Address.String()
				return p
			},
			wantErr: core.ErrUnauthorized,
		},
		{
			name: "foreign payload",
			proof: func() Proof {
				p := proofFor(t, New("other", time.Hour), alice)
				return p
			},
			wantErr: core.ErrUnauthorized,
		},
		{
			name: "bad address",
			proof: func() Proof {
				p := proofFor(t, a, alice)
				p.Address = "addr_test1xyz"
				return p
			},
			wantErr: core.ErrInvalidAddress,
		},
		{
			name: "bad hex",
			proof: func() Proof {
				p := proofFor(t, a, alice)
				p.Signature = "zz"
				return p
			},
			wantErr: core.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := a.CheckProof(tt.proof())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.Nil(t, err)
			require.Equal(t, alice.Address, addr)
		})
	}
}

func TestAuthn_PayloadExpires(t *testing.T) {
	a := New("secret", time.Hour)
	payload, err := a.GeneratePayload()
	require.Nil(t, err)
	require.True(t, a.CheckPayload(payload))

	a.now = func() time.Time { return time.Now().Add(time.Hour) }
	require.False(t, a.CheckPayload(payload))
	require.False(t, a.CheckPayload("not base64!"))
}

func TestAuthn_Token(t *testing.T) {
	a := New("secret", time.Minute)
	alice := pkgTesting.NewSigner(t, 1, core.Testnet)

	token, expires := a.IssueToken(alice.Address)
	require.True(t, expires.After(time.Now()))

	addr, err := a.ParseToken(token)
	require.Nil(t, err)
	require.Equal(t, alice.Address, addr)

	_, err = New("other", time.Minute).ParseToken(token)
	require.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = a.ParseToken("garbage")
	require.ErrorIs(t, err, core.ErrUnauthorized)

	a.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = a.ParseToken(token)
	require.ErrorIs(t, err, core.ErrUnauthorized)
}
