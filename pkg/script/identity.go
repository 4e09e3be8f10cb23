package script

import (
	"github.com/go-faster/errors"

	"github.com/quorumsig/multisigd/pkg/core"
)

// Identity is everything derived from a wallet's key set and policy.
type Identity struct {
	Network           core.Network
	PaymentScript     Script
	PaymentScriptHash core.ScriptHash
	// StakeScript is set only when the wallet has staking keys.
	StakeScript     *Script
	StakeCredential *core.Credential
	// DelegateScript falls back to the payment script when the wallet has
	// no delegate keys.
	DelegateScript     Script
	DelegateScriptHash core.ScriptHash
	Address            core.Address
	StakeAddress       core.Address
	DelegateID         string
}

// Clone returns a copy of id that shares no scripts or credentials with it.
func (id Identity) Clone() Identity {
	out := id
	out.PaymentScript = id.PaymentScript.Clone()
	out.DelegateScript = id.DelegateScript.Clone()
	if id.StakeScript != nil {
		stake := id.StakeScript.Clone()
		out.StakeScript = &stake
	}
	if id.StakeCredential != nil {
		cred := *id.StakeCredential
		out.StakeCredential = &cred
	}
	return out
}

// DeriveAddress returns the address of a payment script, optionally staked.
func DeriveAddress(payment core.ScriptHash, stake *core.Credential, network core.Network) (core.Address, error) {
	return core.NewScriptAddress(network, payment, stake)
}

// Derive computes the identity of w. The result depends only on the set of
// keys per role, the policy, the network and the external stake credential.
func Derive(w core.Wallet) (Identity, error) {
	id := Identity{Network: w.Network}
	policy := w.Policy

	payment, err := Build(w.Keys, core.RoleSpend, policy)
	if err != nil {
		return id, err
	}
	id.PaymentScript = payment
	if id.PaymentScriptHash, err = payment.Hash(); err != nil {
		return id, err
	}

	stake, err := Build(w.Keys, core.RoleStake, policy)
	switch {
	case err == nil:
		hash, err := stake.Hash()
		if err != nil {
			return id, err
		}
		id.StakeScript = &stake
		id.StakeCredential = &core.Credential{Hash: hash, Script: true}
	case errors.Is(err, core.ErrNoKeysForRole):
		if w.StakeCredential != nil {
			cred := *w.StakeCredential
			id.StakeCredential = &cred
		}
	default:
		return id, err
	}

	delegate, err := Build(w.Keys, core.RoleDelegate, policy)
	switch {
	case err == nil:
		id.DelegateScript = delegate
	case errors.Is(err, core.ErrNoKeysForRole):
		id.DelegateScript = payment
	default:
		return id, err
	}
	if id.DelegateScriptHash, err = id.DelegateScript.Hash(); err != nil {
		return id, err
	}

	if id.Address, err = DeriveAddress(id.PaymentScriptHash, id.StakeCredential, w.Network); err != nil {
		return id, errors.Wrap(err, "payment address")
	}
	if id.StakeCredential != nil {
		if id.StakeAddress, err = core.NewStakeAddress(w.Network, *id.StakeCredential); err != nil {
			return id, errors.Wrap(err, "stake address")
		}
	}
	id.DelegateID, err = core.NewDelegateID(core.Credential{Hash: id.DelegateScriptHash, Script: true})
	if err != nil {
		return id, errors.Wrap(err, "delegate id")
	}
	return id, nil
}
