package core

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind identifies one failure of the multisig engine. The set is closed:
// every error surfaced to a caller carries exactly one Kind.
type Kind uint8

const (
	KindInternal Kind = iota
	KindNotFound
	KindAlreadyFinalized
	KindDuplicateSignature
	KindAlreadyRejected
	KindNoMatchingWitness
	KindMalformedTransaction
	KindBodyMismatch
	KindConcurrentModification
	KindSubmissionFailed
	KindSubmissionUnknown
	KindUnauthorized
	KindInvalidAddress
	KindInvalidKeyHash
	KindNoKeysForRole
	KindInvalidPolicy
	KindInvalidInput
	KindQuorumNotReached
)

var kindNames = map[Kind]string{
	KindInternal:               "Internal",
	KindNotFound:               "NotFound",
	KindAlreadyFinalized:       "AlreadyFinalized",
	KindDuplicateSignature:     "DuplicateSignature",
	KindAlreadyRejected:        "AlreadyRejected",
	KindNoMatchingWitness:      "NoMatchingWitness",
	KindMalformedTransaction:   "MalformedTransaction",
	KindBodyMismatch:           "BodyMismatch",
	KindConcurrentModification: "ConcurrentModification",
	KindSubmissionFailed:       "SubmissionFailed",
	KindSubmissionUnknown:      "SubmissionUnknown",
	KindUnauthorized:           "Unauthorized",
	KindInvalidAddress:         "InvalidAddress",
	KindInvalidKeyHash:         "InvalidKeyHash",
	KindNoKeysForRole:          "NoKeysForRole",
	KindInvalidPolicy:          "InvalidPolicy",
	KindInvalidInput:           "InvalidInput",
	KindQuorumNotReached:       "QuorumNotReached",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	*k = KindInternal
	return nil
}

// Class groups kinds the way callers act on them.
type Class uint8

const (
	ClassInternal Class = iota
	ClassValidation
	ClassAuthorization
	ClassStateConflict
	ClassCryptographic
	ClassExternal
)

func (k Kind) Class() Class {
	switch k {
	case KindMalformedTransaction, KindBodyMismatch, KindInvalidAddress, KindInvalidKeyHash,
		KindNoKeysForRole, KindInvalidPolicy, KindInvalidInput:
		return ClassValidation
	case KindUnauthorized:
		return ClassAuthorization
	case KindNotFound, KindAlreadyFinalized, KindDuplicateSignature, KindAlreadyRejected,
		KindConcurrentModification, KindQuorumNotReached:
		return ClassStateConflict
	case KindNoMatchingWitness:
		return ClassCryptographic
	case KindSubmissionFailed, KindSubmissionUnknown:
		return ClassExternal
	default:
		return ClassInternal
	}
}

// Retryable reports whether repeating the same request may succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindConcurrentModification, KindSubmissionFailed, KindSubmissionUnknown:
		return true
	default:
		return false
	}
}

// Error is the single error type returned by the engine.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return e.Kind.String() + ": " + e.Msg
	case e.Msg == "":
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind against a bare sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Msg != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrAlreadyFinalized       = &Error{Kind: KindAlreadyFinalized}
	ErrDuplicateSignature     = &Error{Kind: KindDuplicateSignature}
	ErrAlreadyRejected        = &Error{Kind: KindAlreadyRejected}
	ErrNoMatchingWitness      = &Error{Kind: KindNoMatchingWitness}
	ErrMalformedTransaction   = &Error{Kind: KindMalformedTransaction}
	ErrBodyMismatch           = &Error{Kind: KindBodyMismatch}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification}
	ErrSubmissionFailed       = &Error{Kind: KindSubmissionFailed}
	ErrSubmissionUnknown      = &Error{Kind: KindSubmissionUnknown}
	ErrUnauthorized           = &Error{Kind: KindUnauthorized}
	ErrInvalidAddress         = &Error{Kind: KindInvalidAddress}
	ErrInvalidKeyHash         = &Error{Kind: KindInvalidKeyHash}
	ErrNoKeysForRole          = &Error{Kind: KindNoKeysForRole}
	ErrInvalidPolicy          = &Error{Kind: KindInvalidPolicy}
	ErrInvalidInput           = &Error{Kind: KindInvalidInput}
	ErrQuorumNotReached       = &Error{Kind: KindQuorumNotReached}
)

// ErrStale is returned by a storage when a conditional write finds that the
// record no longer matches the snapshot the writer read.
var ErrStale = errors.New("stale snapshot")

func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func WrapKind(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind carried by err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsRetryable(err error) bool {
	return err != nil && KindOf(err).Retryable()
}
