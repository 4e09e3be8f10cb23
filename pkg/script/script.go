// Package script builds the native multisig scripts a wallet's addresses and
// role identifiers are derived from.
package script

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-faster/errors"
	"golang.org/x/exp/slices"

	"github.com/quorumsig/multisigd/pkg/core"
)

// Kind is the native script constructor tag used on the wire.
type Kind uint8

const (
	KindSig     Kind = 0
	KindAll     Kind = 1
	KindAny     Kind = 2
	KindAtLeast Kind = 3
)

// Script is a native script. Sig scripts carry a key hash, the other kinds
// carry sub-scripts and AtLeast also carries Required.
type Script struct {
	Kind     Kind
	KeyHash  core.KeyHash
	Required int
	Scripts  []Script
}

var encMode, _ = cbor.CoreDetEncOptions().EncMode()

// Clone returns a deep copy of s.
func (s Script) Clone() Script {
	if s.Scripts == nil {
		return s
	}
	out := s
	out.Scripts = make([]Script, len(s.Scripts))
	for i, sub := range s.Scripts {
		out.Scripts[i] = sub.Clone()
	}
	return out
}

// Build turns the keys of one role into a canonical script under policy.
// Keys are sorted by hash so the result does not depend on input order.
func Build(keys []core.ParticipantKey, role core.Role, policy core.Policy) (Script, error) {
	var hashes []core.KeyHash
	for _, k := range keys {
		if k.Role == role {
			hashes = append(hashes, k.KeyHash)
		}
	}
	if len(hashes) == 0 {
		return Script{}, core.Errorf(core.KindNoKeysForRole, "no %s keys", role)
	}
	slices.SortFunc(hashes, func(a, b core.KeyHash) int { return a.Compare(b) })
	hashes = slices.Compact(hashes)

	subs := make([]Script, 0, len(hashes))
	for _, h := range hashes {
		subs = append(subs, Script{Kind: KindSig, KeyHash: h})
	}
	policy = policy.Clamp(len(subs))
	if err := policy.Validate(len(subs)); err != nil {
		return Script{}, err
	}
	switch policy.Kind() {
	case core.PolicyAll:
		return Script{Kind: KindAll, Scripts: subs}, nil
	case core.PolicyAny:
		return Script{Kind: KindAny, Scripts: subs}, nil
	case core.PolicyAtLeast:
		return Script{Kind: KindAtLeast, Required: policy.Required(), Scripts: subs}, nil
	}
	return Script{}, core.Errorf(core.KindInvalidPolicy, "unsupported policy %v", policy)
}

func (s Script) wire() (any, error) {
	if s.Kind == KindSig {
		return []any{uint64(KindSig), s.KeyHash[:]}, nil
	}
	subs := make([]any, 0, len(s.Scripts))
	for _, sub := range s.Scripts {
		w, err := sub.wire()
		if err != nil {
			return nil, err
		}
		subs = append(subs, w)
	}
	switch s.Kind {
	case KindAll, KindAny:
		return []any{uint64(s.Kind), subs}, nil
	case KindAtLeast:
		return []any{uint64(KindAtLeast), uint64(s.Required), subs}, nil
	}
	return nil, errors.Errorf("unknown script kind %d", s.Kind)
}

// MarshalCBOR encodes the script in its ledger form.
func (s Script) MarshalCBOR() ([]byte, error) {
	w, err := s.wire()
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(w)
}

// Hash is Blake2b-224 over the native script tag followed by the CBOR script.
func (s Script) Hash() (core.ScriptHash, error) {
	b, err := s.MarshalCBOR()
	if err != nil {
		return core.ScriptHash{}, errors.Wrap(err, "encode script")
	}
	return core.ScriptHash(core.Blake2b224(append([]byte{0x00}, b...))), nil
}

type jsonScript struct {
	Type     string       `json:"type"`
	KeyHash  string       `json:"keyHash,omitempty"`
	Required int          `json:"required,omitempty"`
	Scripts  []jsonScript `json:"scripts,omitempty"`
}

func (s Script) toJSON() jsonScript {
	var out jsonScript
	switch s.Kind {
	case KindSig:
		return jsonScript{Type: "sig", KeyHash: s.KeyHash.Hex()}
	case KindAll:
		out.Type = "all"
	case KindAny:
		out.Type = "any"
	case KindAtLeast:
		out.Type = "atLeast"
		out.Required = s.Required
	}
	for _, sub := range s.Scripts {
		out.Scripts = append(out.Scripts, sub.toJSON())
	}
	return out
}

// MarshalJSON renders the script in the JSON form accepted by ledger CLIs.
func (s Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.toJSON())
}

func (s *Script) UnmarshalJSON(b []byte) error {
	var js jsonScript
	if err := json.Unmarshal(b, &js); err != nil {
		return err
	}
	parsed, err := fromJSON(js)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func fromJSON(js jsonScript) (Script, error) {
	var s Script
	switch js.Type {
	case "sig":
		kh, err := core.ParseKeyHash(js.KeyHash)
		if err != nil {
			return s, err
		}
		return Script{Kind: KindSig, KeyHash: kh}, nil
	case "all":
		s.Kind = KindAll
	case "any":
		s.Kind = KindAny
	case "atLeast":
		s.Kind = KindAtLeast
		s.Required = js.Required
	default:
		return s, core.Errorf(core.KindInvalidInput, "unknown script type %q", js.Type)
	}
	for _, sub := range js.Scripts {
		parsed, err := fromJSON(sub)
		if err != nil {
			return s, err
		}
		s.Scripts = append(s.Scripts, parsed)
	}
	return s, nil
}
