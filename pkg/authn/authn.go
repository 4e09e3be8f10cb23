// Package authn proves that a caller controls a signer address. The caller
// signs a server-issued payload with the address's payment key and receives
// a bearer token bound to that address.
package authn

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/quorumsig/multisigd/pkg/core"
	"github.com/quorumsig/multisigd/pkg/witness"
)

const (
	proofPrefix   = "multisigd-proof-v1/"
	randomSize    = 8
	timestampSize = 8
)

type Authn struct {
	secret   []byte
	tokenTTL time.Duration
	proofTTL time.Duration
	now      func() time.Time
}

func New(secret string, tokenTTL time.Duration) *Authn {
	return &Authn{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		proofTTL: 15 * time.Minute,
		now:      time.Now,
	}
}

// Proof is a signature by the payment key of Address over CreateMessage.
type Proof struct {
	Address   string `json:"address"`
	Payload   string `json:"payload"`
	Key       string `json:"key"`
	Signature string `json:"signature"`
}

func (a *Authn) mac(parts ...[]byte) []byte {
	h := hmac.New(sha256.New, a.secret)
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// GeneratePayload returns a challenge that CheckPayload accepts for a limited time.
func (a *Authn) GeneratePayload() (string, error) {
	data := make([]byte, randomSize+timestampSize)
	if _, err := rand.Read(data[:randomSize]); err != nil {
		return "", err
	}
	binary.BigEndian.PutUint64(data[randomSize:], uint64(a.now().Unix()))
	data = append(data, a.mac(data)...)
	return base64.URLEncoding.EncodeToString(data), nil
}

func (a *Authn) CheckPayload(payload string) bool {
	data, err := base64.URLEncoding.DecodeString(payload)
	if err != nil || len(data) != randomSize+timestampSize+sha256.Size {
		return false
	}
	head, signature := data[:randomSize+timestampSize], data[randomSize+timestampSize:]
	if !hmac.Equal(signature, a.mac(head)) {
		return false
	}
	issued := time.Unix(int64(binary.BigEndian.Uint64(head[randomSize:])), 0)
	return a.now().Sub(issued) <= a.proofTTL
}

// CreateMessage is the message a caller signs to prove control of address.
func CreateMessage(address core.Address, payload string) []byte {
	m := []byte(proofPrefix)
	m = append(m, address...)
	m = append(m, '/')
	m = append(m, payload...)
	sum := sha256.Sum256(m)
	return sum[:]
}

// CheckProof verifies p and returns the proven address.
func (a *Authn) CheckProof(p Proof) (core.Address, error) {
	addr, err := core.ParseAddress(p.Address)
	if err != nil {
		return "", err
	}
	if !a.CheckPayload(p.Payload) {
		return "", core.Errorf(core.KindUnauthorized, "invalid or expired payload")
	}
	key, err := hex.DecodeString(p.Key)
	if err != nil {
		return "", core.WrapKind(core.KindInvalidInput, err, "key")
	}
	sig, err := hex.DecodeString(p.Signature)
	if err != nil {
		return "", core.WrapKind(core.KindInvalidInput, err, "signature")
	}
	if err := witness.VerifyMessage(addr, key, sig, CreateMessage(addr, p.Payload)); err != nil {
		return "", core.WrapKind(core.KindUnauthorized, err, "proof")
	}
	return addr, nil
}

// IssueToken returns a bearer token for address and its expiry.
func (a *Authn) IssueToken(address core.Address) (string, time.Time) {
	expires := a.now().Add(a.tokenTTL).UTC()
	claims := address.String() + "|" + strconv.FormatInt(expires.Unix(), 10)
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(claims)) + "." + enc.EncodeToString(a.mac([]byte(claims))), expires
}

// ParseToken returns the address a valid, unexpired token was issued for.
func (a *Authn) ParseToken(token string) (core.Address, error) {
	enc := base64.RawURLEncoding
	rawClaims, rawSig, ok := strings.Cut(token, ".")
	if !ok {
		return "", core.Errorf(core.KindUnauthorized, "malformed token")
	}
	claims, err := enc.DecodeString(rawClaims)
	if err != nil {
		return "", core.Errorf(core.KindUnauthorized, "malformed token")
	}
	sig, err := enc.DecodeString(rawSig)
	if err != nil || !hmac.Equal(sig, a.mac(claims)) {
		return "", core.Errorf(core.KindUnauthorized, "bad token signature")
	}
	addr, exp, ok := strings.Cut(string(claims), "|")
	if !ok {
		return "", core.Errorf(core.KindUnauthorized, "malformed token")
	}
	expires, err := strconv.ParseInt(exp, 10, 64)
	if err != nil || a.now().Unix() > expires {
		return "", core.Errorf(core.KindUnauthorized, "token expired")
	}
	return core.Address(addr), nil
}
