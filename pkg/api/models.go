package api

import (
	"encoding/hex"
	"time"

	"github.com/quorumsig/multisigd/internal/g"
	"github.com/quorumsig/multisigd/pkg/aggregator"
	"github.com/quorumsig/multisigd/pkg/core"
	"github.com/quorumsig/multisigd/pkg/script"
	"github.com/quorumsig/multisigd/pkg/wallet"
)

type Credential struct {
	Hash   string `json:"hash"`
	Script bool   `json:"script"`
}

type Identity struct {
	Address            core.Address   `json:"address"`
	StakeAddress       core.Address   `json:"stakeAddress,omitempty"`
	DelegateID         string         `json:"delegateId"`
	PaymentScriptHash  string         `json:"paymentScriptHash"`
	DelegateScriptHash string         `json:"delegateScriptHash"`
	StakeCredential    *Credential    `json:"stakeCredential,omitempty"`
	PaymentScript      script.Script  `json:"paymentScript"`
	StakeScript        *script.Script `json:"stakeScript,omitempty"`
	DelegateScript     script.Script  `json:"delegateScript"`
}

type Wallet struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Network         core.Network          `json:"network"`
	Policy          core.Policy           `json:"policy"`
	Keys            []core.ParticipantKey `json:"keys"`
	StakeCredential *Credential           `json:"externalStakeCredential,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	Identity        Identity              `json:"identity"`
}

type Transaction struct {
	ID                string          `json:"id"`
	WalletID          string          `json:"walletId"`
	Description       string          `json:"description,omitempty"`
	TxBody            string          `json:"txBody"`
	SignedAddresses   core.AddressSet `json:"signedAddresses"`
	RejectedAddresses core.AddressSet `json:"rejectedAddresses"`
	State             core.TxState    `json:"state"`
	FinalHash         *string         `json:"finalHash"`
	Signers           int             `json:"signers"`
	Threshold         int             `json:"threshold"`
	QuorumReached     bool            `json:"quorumReached"`
	RejectionQuorum   bool            `json:"rejectionQuorum"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

type SignatureBlob struct {
	Key       string `json:"key"`
	Signature string `json:"signature"`
}

type Signable struct {
	ID                string             `json:"id"`
	WalletID          string             `json:"walletId"`
	Description       string             `json:"description,omitempty"`
	Payload           string             `json:"payload"`
	SignedAddresses   core.AddressSet    `json:"signedAddresses"`
	Signatures        []SignatureBlob    `json:"signatures"`
	RejectedAddresses core.AddressSet    `json:"rejectedAddresses"`
	State             core.SignableState `json:"state"`
	Signers           int                `json:"signers"`
	Threshold         int                `json:"threshold"`
	RejectionQuorum   bool               `json:"rejectionQuorum"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

type SignatureResult struct {
	Accepted    bool        `json:"accepted"`
	Finalized   bool        `json:"finalized"`
	FinalHash   string      `json:"finalHash,omitempty"`
	Transaction Transaction `json:"transaction"`
}

type RejectionResult struct {
	Accepted    bool        `json:"accepted"`
	Transaction Transaction `json:"transaction"`
}

type CreateWalletRequest struct {
	Name            string            `json:"name"`
	Network         *core.Network     `json:"network,omitempty"`
	Policy          core.Policy       `json:"policy"`
	Keys            []wallet.KeyInput `json:"keys"`
	StakeCredential *Credential       `json:"externalStakeCredential,omitempty"`
}

type ProposeRequest struct {
	Address     core.Address `json:"address"`
	TxCbor      string       `json:"txCbor"`
	Description string       `json:"description,omitempty"`
}

type SignRequest struct {
	Address  core.Address `json:"address"`
	SignedTx string       `json:"signedTx"`
}

// ProofRequest carries a detached signature: a rejection or a signable signature.
type ProofRequest struct {
	Address   core.Address `json:"address"`
	Key       string       `json:"key"`
	Signature string       `json:"signature"`
}

type FinalizeRequest struct {
	Address core.Address `json:"address"`
}

type CreateSignableRequest struct {
	Address     core.Address `json:"address"`
	Payload     string       `json:"payload"`
	Description string       `json:"description,omitempty"`
}

type ChallengeResponse struct {
	Payload string `json:"payload"`
}

type TokenResponse struct {
	Address   core.Address `json:"address"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

func convertCredential(c core.Credential) Credential {
	return Credential{Hash: c.Hex(), Script: c.Script}
}

func convertIdentity(id script.Identity) Identity {
	return Identity{
		Address:            id.Address,
		StakeAddress:       id.StakeAddress,
		DelegateID:         id.DelegateID,
		PaymentScriptHash:  id.PaymentScriptHash.Hex(),
		DelegateScriptHash: id.DelegateScriptHash.Hex(),
		StakeCredential:    g.NilToNil(convertCredential, id.StakeCredential),
		PaymentScript:      id.PaymentScript,
		StakeScript:        id.StakeScript,
		DelegateScript:     id.DelegateScript,
	}
}

func convertWallet(w core.Wallet, id script.Identity) Wallet {
	return Wallet{
		ID:              w.ID,
		Name:            w.Name,
		Network:         w.Network,
		Policy:          w.Policy,
		Keys:            w.Keys,
		StakeCredential: g.NilToNil(convertCredential, w.StakeCredential),
		CreatedAt:       w.CreatedAt,
		Identity:        convertIdentity(id),
	}
}

func convertTransaction(v aggregator.TransactionView) Transaction {
	tx := v.Transaction
	return Transaction{
		ID:                tx.ID,
		WalletID:          tx.WalletID,
		Description:       tx.Description,
		TxBody:            hex.EncodeToString(tx.TxBody),
		SignedAddresses:   tx.Signed,
		RejectedAddresses: tx.Rejected,
		State:             tx.State,
		Signers:           v.Signers,
		Threshold:         v.Threshold,
		QuorumReached:     v.QuorumReached,
		RejectionQuorum:   v.RejectionQuorum,
		CreatedAt:         tx.CreatedAt,
		FinalHash:         g.NonZero(tx.FinalHash),
		UpdatedAt:         tx.UpdatedAt,
	}
}

func convertSignable(v aggregator.SignableView) Signable {
	sg := v.Signable
	return Signable{
		ID:                sg.ID,
		WalletID:          sg.WalletID,
		Description:       sg.Description,
		Payload:           hex.EncodeToString(sg.Payload),
		SignedAddresses:   sg.Signed,
		Signatures:        g.Map(sg.Signatures, convertSignatureBlob),
		RejectedAddresses: sg.Rejected,
		State:             sg.State,
		Signers:           v.Signers,
		Threshold:         v.Threshold,
		RejectionQuorum:   v.RejectionQuorum,
		CreatedAt:         sg.CreatedAt,
		UpdatedAt:         sg.UpdatedAt,
	}
}

func convertSignatureBlob(b core.SignatureBlob) SignatureBlob {
	return SignatureBlob{
		Key:       hex.EncodeToString(b.Key),
		Signature: hex.EncodeToString(b.Signature),
	}
}
