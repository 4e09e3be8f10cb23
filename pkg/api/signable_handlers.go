package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quorumsig/multisigd/internal/g"
	"github.com/quorumsig/multisigd/pkg/aggregator"
)

func (h *Handler) CreateSignable(w http.ResponseWriter, r *http.Request) {
	var req CreateSignableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	addr, err := h.authorize(r, req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	payload, err := decodeHex("payload", req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	sv, err := h.multisig.CreateSignable(r.Context(), aggregator.CreateSignableParams{
		WalletID:    chi.URLParam(r, "walletID"),
		Proposer:    addr,
		Payload:     payload,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, convertSignable(sv))
}

func (h *Handler) GetSignable(w http.ResponseWriter, r *http.Request) {
	sv, err := h.multisig.GetSignable(r.Context(), chi.URLParam(r, "walletID"), chi.URLParam(r, "signableID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convertSignable(sv))
}

func (h *Handler) ListSignables(w http.ResponseWriter, r *http.Request) {
	views, err := h.multisig.ListSignables(r.Context(), chi.URLParam(r, "walletID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Map(views, convertSignable))
}

func (h *Handler) signableProof(r *http.Request) (aggregator.SignableSignatureParams, error) {
	var req ProofRequest
	if err := decodeJSON(r, &req); err != nil {
		return aggregator.SignableSignatureParams{}, err
	}
	addr, err := h.authorize(r, req.Address)
	if err != nil {
		return aggregator.SignableSignatureParams{}, err
	}
	key, err := decodeHex("key", req.Key)
	if err != nil {
		return aggregator.SignableSignatureParams{}, err
	}
	sig, err := decodeHex("signature", req.Signature)
	if err != nil {
		return aggregator.SignableSignatureParams{}, err
	}
	return aggregator.SignableSignatureParams{
		WalletID:   chi.URLParam(r, "walletID"),
		SignableID: chi.URLParam(r, "signableID"),
		Address:    addr,
		VKey:       key,
		Signature:  sig,
	}, nil
}

func (h *Handler) SubmitSignableSignature(w http.ResponseWriter, r *http.Request) {
	params, err := h.signableProof(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sv, err := h.multisig.SubmitSignableSignature(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convertSignable(sv))
}

func (h *Handler) SubmitSignableRejection(w http.ResponseWriter, r *http.Request) {
	params, err := h.signableProof(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sv, err := h.multisig.SubmitSignableRejection(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convertSignable(sv))
}
