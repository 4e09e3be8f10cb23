package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quorumsig/multisigd/internal/g"
	"github.com/quorumsig/multisigd/pkg/aggregator"
)

func (h *Handler) ProposeTransaction(w http.ResponseWriter, r *http.Request) {
	var req ProposeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	addr, err := h.authorize(r, req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := decodeHex("txCbor", req.TxCbor)
	if err != nil {
		writeError(w, err)
		return
	}
	tv, err := h.multisig.Propose(r.Context(), aggregator.ProposeParams{
		WalletID:    chi.URLParam(r, "walletID"),
		Proposer:    addr,
		TxCbor:      body,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, convertTransaction(tv))
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tv, err := h.multisig.GetTransaction(r.Context(), chi.URLParam(r, "walletID"), chi.URLParam(r, "transactionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convertTransaction(tv))
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	views, err := h.multisig.ListTransactions(r.Context(), chi.URLParam(r, "walletID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Map(views, convertTransaction))
}

func (h *Handler) SubmitSignature(w http.ResponseWriter, r *http.Request) {
	var req SignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	addr, err := h.authorize(r, req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	signed, err := decodeHex("signedTx", req.SignedTx)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.multisig.SubmitSignatureWithRetry(r.Context(), aggregator.SignatureParams{
		WalletID:      chi.URLParam(r, "walletID"),
		TransactionID: chi.URLParam(r, "transactionID"),
		Address:       addr,
		SignedTx:      signed,
	})
	if err != nil {
		writeErrorJSON(w, err, res.Accepted)
		return
	}
	writeJSON(w, http.StatusOK, SignatureResult{
		Accepted:    res.Accepted,
		Finalized:   res.Finalized,
		FinalHash:   res.FinalHash,
		Transaction: convertTransaction(res.View),
	})
}

func (h *Handler) SubmitRejection(w http.ResponseWriter, r *http.Request) {
	var req ProofRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	addr, err := h.authorize(r, req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	key, err := decodeHex("key", req.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	sig, err := decodeHex("signature", req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.multisig.SubmitRejection(r.Context(), aggregator.RejectionParams{
		WalletID:      chi.URLParam(r, "walletID"),
		TransactionID: chi.URLParam(r, "transactionID"),
		Address:       addr,
		VKey:          key,
		Signature:     sig,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RejectionResult{Accepted: res.Accepted, Transaction: convertTransaction(res.View)})
}

func (h *Handler) FinalizeTransaction(w http.ResponseWriter, r *http.Request) {
	var req FinalizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.authorize(r, req.Address); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.multisig.Finalize(r.Context(), chi.URLParam(r, "walletID"), chi.URLParam(r, "transactionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SignatureResult{
		Finalized:   res.Finalized,
		FinalHash:   res.FinalHash,
		Transaction: convertTransaction(res.View),
	})
}
