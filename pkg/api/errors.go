package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/quorumsig/multisigd/pkg/core"
)

type errorJSON struct {
	Error     string    `json:"error"`
	Kind      core.Kind `json:"kind"`
	Retryable bool      `json:"retryable"`
	// Accepted is set when a signature was stored but finalization failed.
	Accepted bool `json:"accepted,omitempty"`
}

func statusCode(kind core.Kind) int {
	switch kind {
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindUnauthorized:
		return http.StatusForbidden
	case core.KindNoMatchingWitness:
		return http.StatusUnprocessableEntity
	case core.KindSubmissionFailed:
		return http.StatusBadGateway
	case core.KindSubmissionUnknown:
		return http.StatusGatewayTimeout
	}
	switch kind.Class() {
	case core.ClassValidation:
		return http.StatusBadRequest
	case core.ClassStateConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorJSON(w, err, false)
}

func writeErrorJSON(w http.ResponseWriter, err error, accepted bool) {
	kind := core.KindOf(err)
	msg := err.Error()
	if kind == core.KindInternal {
		msg = "internal error"
	}
	writeJSON(w, statusCode(kind), errorJSON{
		Error:     msg,
		Kind:      kind,
		Retryable: kind.Retryable(),
		Accepted:  accepted,
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.WrapKind(core.KindInvalidInput, err, "request body")
	}
	return nil
}

func decodeHex(field, s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, core.WrapKind(core.KindInvalidInput, err, field)
	}
	return b, nil
}

const maxBodyBytes = 1 << 20
