package api

import (
	"net/http"

	"github.com/quorumsig/multisigd/pkg/authn"
	"github.com/quorumsig/multisigd/pkg/core"
)

func (h *Handler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeError(w, core.Errorf(core.KindNotFound, "authentication is disabled"))
		return
	}
	payload, err := h.auth.GeneratePayload()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChallengeResponse{Payload: payload})
}

func (h *Handler) VerifyProof(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeError(w, core.Errorf(core.KindNotFound, "authentication is disabled"))
		return
	}
	var proof authn.Proof
	if err := decodeJSON(r, &proof); err != nil {
		writeError(w, err)
		return
	}
	addr, err := h.auth.CheckProof(proof)
	if err != nil {
		writeError(w, err)
		return
	}
	token, expires := h.auth.IssueToken(addr)
	writeJSON(w, http.StatusOK, TokenResponse{Address: addr, Token: token, ExpiresAt: expires})
}
