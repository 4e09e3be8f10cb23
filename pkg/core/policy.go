package core

import (
	"fmt"
	"strconv"
	"strings"
)

// PolicyKind is the closed set of quorum rules.
type PolicyKind uint8

const (
	PolicyAll PolicyKind = iota + 1
	PolicyAny
	PolicyAtLeast
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyAll:
		return "all"
	case PolicyAny:
		return "any"
	case PolicyAtLeast:
		return "atLeast"
	}
	return "unknown"
}

// Policy decides how many signatures finalize a transaction. The zero value
// is invalid; use All, Any or AtLeast.
type Policy struct {
	kind     PolicyKind
	required int
}

func All() Policy { return Policy{kind: PolicyAll} }

func Any() Policy { return Policy{kind: PolicyAny} }

func AtLeast(n int) Policy { return Policy{kind: PolicyAtLeast, required: n} }

func (p Policy) Kind() PolicyKind { return p.kind }

// Required is the number embedded in an AtLeast policy, zero otherwise.
func (p Policy) Required() int { return p.required }

// Validate checks the policy against the number of signers it applies to.
func (p Policy) Validate(total int) error {
	switch p.kind {
	case PolicyAll, PolicyAny:
		return nil
	case PolicyAtLeast:
		if p.required < 1 || p.required > total {
			return Errorf(KindInvalidPolicy, "atLeast(%d) over %d signers", p.required, total)
		}
		return nil
	}
	return Errorf(KindInvalidPolicy, "unknown policy kind %d", p.kind)
}

// Clamp lowers the AtLeast requirement to the number of signers.
func (p Policy) Clamp(total int) Policy {
	if p.kind == PolicyAtLeast && p.required > total {
		p.required = total
	}
	return p
}

// Threshold is the number of signatures that satisfies the policy.
func (p Policy) Threshold(total int) int {
	switch p.kind {
	case PolicyAll:
		return total
	case PolicyAny:
		return 1
	case PolicyAtLeast:
		return p.Clamp(total).required
	}
	return total + 1
}

// Evaluate reports whether signedCount signatures out of totalSigners reach quorum.
func (p Policy) Evaluate(totalSigners, signedCount int) bool {
	switch p.kind {
	case PolicyAny:
		return signedCount >= 1
	case PolicyAll:
		return totalSigners > 0 && signedCount == totalSigners
	case PolicyAtLeast:
		return signedCount >= p.required
	}
	return false
}

// Reachable reports whether quorum can still be met once rejectedCount
// signers declined.
func (p Policy) Reachable(totalSigners, rejectedCount int) bool {
	return p.Clamp(totalSigners).Evaluate(totalSigners, totalSigners-rejectedCount)
}

func (p Policy) String() string {
	if p.kind == PolicyAtLeast {
		return fmt.Sprintf("atLeast:%d", p.required)
	}
	return p.kind.String()
}

func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(s)
	kind, n, _ := strings.Cut(s, ":")
	switch strings.ToLower(kind) {
	case "all":
		return All(), nil
	case "any":
		return Any(), nil
	case "atleast":
		required, err := strconv.Atoi(n)
		if err != nil {
			return Policy{}, WrapKind(KindInvalidPolicy, err, s)
		}
		return AtLeast(required), nil
	}
	return Policy{}, Errorf(KindInvalidPolicy, "unknown policy %q", s)
}

func (p Policy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Policy) UnmarshalText(b []byte) error {
	policy, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = policy
	return nil
}
