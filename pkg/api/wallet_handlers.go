package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quorumsig/multisigd/pkg/core"
	"github.com/quorumsig/multisigd/pkg/wallet"
)

func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req CreateWalletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	params := wallet.CreateParams{
		Name:    req.Name,
		Network: h.network,
		Policy:  req.Policy,
		Keys:    req.Keys,
	}
	if req.Network != nil {
		params.Network = *req.Network
	}
	if req.StakeCredential != nil {
		cred, err := core.ParseCredential(req.StakeCredential.Hash, req.StakeCredential.Script)
		if err != nil {
			writeError(w, err)
			return
		}
		params.StakeCredential = &cred
	}
	created, identity, err := h.wallets.Create(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, convertWallet(created, identity))
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	found, err := h.wallets.GetWallet(r.Context(), chi.URLParam(r, "walletID"))
	if err != nil {
		writeError(w, err)
		return
	}
	identity, err := h.wallets.Identity(found)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convertWallet(found, identity))
}

func (h *Handler) ListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.wallets.ListWallets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	identities, err := h.wallets.Identities(wallets)
	if err != nil {
		writeError(w, err)
		return
	}
	res := make([]Wallet, 0, len(wallets))
	for i := range wallets {
		res = append(res, convertWallet(wallets[i], identities[i]))
	}
	writeJSON(w, http.StatusOK, res)
}
