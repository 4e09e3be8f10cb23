package core

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/go-faster/errors"
)

// Network is the ledger network id carried in every address header.
type Network uint8

const (
	Testnet Network = 0
	Mainnet Network = 1
)

func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mainnet", "1":
		return Mainnet, nil
	case "testnet", "preprod", "preview", "0":
		return Testnet, nil
	}
	return 0, Errorf(KindInvalidInput, "unknown network %q", s)
}

func (n Network) String() string {
	if n == Mainnet {
		return "mainnet"
	}
	return "testnet"
}

func (n Network) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

func (n *Network) UnmarshalText(b []byte) error {
	net, err := ParseNetwork(string(b))
	if err != nil {
		return err
	}
	*n = net
	return nil
}

func (n Network) addressHRP() string {
	if n == Mainnet {
		return "addr"
	}
	return "addr_test"
}

func (n Network) stakeHRP() string {
	if n == Mainnet {
		return "stake"
	}
	return "stake_test"
}

// Shelley address header types (high nibble of the first byte).
const (
	headerBaseKeyKey       = 0x0
	headerBaseScriptKey    = 0x1
	headerBaseKeyScript    = 0x2
	headerBaseScriptScript = 0x3
	headerPointerKey       = 0x4
	headerPointerScript    = 0x5
	headerEnterpriseKey    = 0x6
	headerEnterpriseScript = 0x7
	headerRewardKey        = 0xE
	headerRewardScript     = 0xF

	drepHRP          = "drep"
	drepHeaderKey    = 0x22
	drepHeaderScript = 0x23
)

// Address is a bech32 ledger address, normalized to lower case.
type Address string

func ParseAddress(s string) (Address, error) {
	a := Address(strings.ToLower(strings.TrimSpace(s)))
	if _, _, err := a.decode(); err != nil {
		return "", err
	}
	return a, nil
}

func (a Address) String() string { return string(a) }

func (a Address) decode() (string, []byte, error) {
	hrp, data, err := bech32.DecodeNoLimit(string(a))
	if err != nil {
		return "", nil, WrapKind(KindInvalidAddress, err, string(a))
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, WrapKind(KindInvalidAddress, err, string(a))
	}
	network, ok := hrpNetworks[hrp]
	if !ok {
		return "", nil, Errorf(KindInvalidAddress, "%q: unexpected prefix %q", a, hrp)
	}
	if len(raw) < 1+HashSize28 {
		return "", nil, Errorf(KindInvalidAddress, "%q: too short", a)
	}
	if Network(raw[0]&0x0F) != network {
		return "", nil, Errorf(KindInvalidAddress, "%q: header network %d does not match prefix %q", a, raw[0]&0x0F, hrp)
	}
	return hrp, raw, nil
}

var hrpNetworks = map[string]Network{
	Mainnet.addressHRP(): Mainnet,
	Testnet.addressHRP(): Testnet,
	Mainnet.stakeHRP():   Mainnet,
	Testnet.stakeHRP():   Testnet,
}

func (a Address) Network() (Network, error) {
	_, raw, err := a.decode()
	if err != nil {
		return 0, err
	}
	return Network(raw[0] & 0x0F), nil
}

// PaymentKeyHash extracts the key hash of the payment credential. Script
// payment credentials and reward addresses have no payment key.
func (a Address) PaymentKeyHash() (KeyHash, error) {
	var kh KeyHash
	_, raw, err := a.decode()
	if err != nil {
		return kh, err
	}
	switch raw[0] >> 4 {
	case headerBaseKeyKey, headerBaseKeyScript, headerPointerKey, headerEnterpriseKey:
		copy(kh[:], raw[1:1+HashSize28])
		return kh, nil
	case headerBaseScriptKey, headerBaseScriptScript, headerPointerScript, headerEnterpriseScript:
		return kh, Errorf(KindInvalidAddress, "%q: payment credential is a script", a)
	}
	return kh, Errorf(KindInvalidAddress, "%q: address has no payment credential", a)
}

func encode(hrp string, raw []byte) (string, error) {
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "convert bits")
	}
	s, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", errors.Wrap(err, "bech32 encode")
	}
	return s, nil
}

// NewKeyAddress builds an enterprise address paid to a single key.
func NewKeyAddress(network Network, kh KeyHash) (Address, error) {
	raw := append([]byte{headerEnterpriseKey<<4 | byte(network)}, kh[:]...)
	s, err := encode(network.addressHRP(), raw)
	return Address(s), err
}

// NewBaseKeyAddress builds a base address paying to a key and staked to stake.
func NewBaseKeyAddress(network Network, kh KeyHash, stake Credential) (Address, error) {
	header := byte(headerBaseKeyKey)
	if stake.Script {
		header = headerBaseKeyScript
	}
	raw := make([]byte, 0, 1+2*HashSize28)
	raw = append(raw, header<<4|byte(network))
	raw = append(raw, kh[:]...)
	raw = append(raw, stake.Hash[:]...)
	s, err := encode(network.addressHRP(), raw)
	return Address(s), err
}

// NewScriptAddress builds the address of a payment script, a base address
// when a stake credential is given and an enterprise address otherwise.
func NewScriptAddress(network Network, payment ScriptHash, stake *Credential) (Address, error) {
	header := byte(headerEnterpriseScript)
	raw := make([]byte, 0, 1+2*HashSize28)
	if stake != nil {
		header = headerBaseScriptKey
		if stake.Script {
			header = headerBaseScriptScript
		}
	}
	raw = append(raw, header<<4|byte(network))
	raw = append(raw, payment[:]...)
	if stake != nil {
		raw = append(raw, stake.Hash[:]...)
	}
	s, err := encode(network.addressHRP(), raw)
	return Address(s), err
}

// NewStakeAddress builds the reward address of a stake credential.
func NewStakeAddress(network Network, stake Credential) (Address, error) {
	header := byte(headerRewardKey)
	if stake.Script {
		header = headerRewardScript
	}
	raw := append([]byte{header<<4 | byte(network)}, stake.Hash[:]...)
	s, err := encode(network.stakeHRP(), raw)
	return Address(s), err
}

// NewDelegateID encodes a governance delegate credential in the CIP-129 form.
func NewDelegateID(c Credential) (string, error) {
	header := byte(drepHeaderKey)
	if c.Script {
		header = drepHeaderScript
	}
	return encode(drepHRP, append([]byte{header}, c.Hash[:]...))
}
