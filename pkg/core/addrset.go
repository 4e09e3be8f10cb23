package core

import (
	"encoding/json"

	"golang.org/x/exp/slices"
)

// AddressSet is an insertion-ordered set of addresses. Values are immutable:
// Add returns a new set and never touches the receiver's backing array.
type AddressSet struct {
	items []Address
}

func NewAddressSet(items ...Address) AddressSet {
	var s AddressSet
	for _, a := range items {
		s, _ = s.Add(a)
	}
	return s
}

func (s AddressSet) Len() int { return len(s.items) }

func (s AddressSet) Contains(a Address) bool {
	return slices.Contains(s.items, a)
}

// Add appends a to the set. The second result is false when a is already present.
func (s AddressSet) Add(a Address) (AddressSet, bool) {
	if s.Contains(a) {
		return s, false
	}
	items := make([]Address, len(s.items), len(s.items)+1)
	copy(items, s.items)
	return AddressSet{items: append(items, a)}, true
}

// Items returns a copy of the addresses in insertion order.
func (s AddressSet) Items() []Address {
	return slices.Clone(s.items)
}

func (s AddressSet) Equal(o AddressSet) bool {
	return slices.Equal(s.items, o.items)
}

func (s AddressSet) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

func (s *AddressSet) UnmarshalJSON(b []byte) error {
	var items []Address
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	*s = NewAddressSet(items...)
	return nil
}
