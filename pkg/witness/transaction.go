// Package witness parses signed transactions and proves which keys signed them.
package witness

import (
	"bytes"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/quorumsig/multisigd/pkg/core"
)

const (
	vkeyWitnessesKey = 0
	setTag           = 258

	cborMajorMap = 5
	cborMajorTag = 6
)

var encMode, _ = cbor.CoreDetEncOptions().EncMode()

// VKeyWitness is a verification key and its signature over the transaction id.
type VKeyWitness struct {
	_         struct{} `cbor:",toarray"`
	VKey      []byte
	Signature []byte
}

// Transaction is a decoded signed transaction. The body is kept as the raw
// bytes it was received in so its id never changes on re-encoding.
type Transaction struct {
	body       cbor.RawMessage
	witnessSet map[uint64]cbor.RawMessage
	witnesses  []VKeyWitness
	tagged     bool
	rest       []cbor.RawMessage
}

// Decode parses b as [body, witness_set, is_valid?, auxiliary_data?].
func Decode(b []byte) (*Transaction, error) {
	var elems []cbor.RawMessage
	if err := cbor.Unmarshal(b, &elems); err != nil {
		return nil, core.WrapKind(core.KindMalformedTransaction, err, "decode transaction")
	}
	if len(elems) < 2 || len(elems) > 4 {
		return nil, core.Errorf(core.KindMalformedTransaction, "transaction has %d elements", len(elems))
	}
	if len(elems[0]) == 0 || elems[0][0]>>5 != cborMajorMap {
		return nil, core.Errorf(core.KindMalformedTransaction, "transaction body is not a map")
	}
	tx := &Transaction{
		body: elems[0],
		rest: elems[2:],
	}
	if err := cbor.Unmarshal(elems[1], &tx.witnessSet); err != nil {
		return nil, core.WrapKind(core.KindMalformedTransaction, err, "decode witness set")
	}
	if tx.witnessSet == nil {
		tx.witnessSet = map[uint64]cbor.RawMessage{}
	}
	raw, ok := tx.witnessSet[vkeyWitnessesKey]
	if !ok {
		return tx, nil
	}
	if len(raw) > 0 && raw[0]>>5 == cborMajorTag {
		var tag cbor.RawTag
		if err := cbor.Unmarshal(raw, &tag); err != nil {
			return nil, core.WrapKind(core.KindMalformedTransaction, err, "decode witness tag")
		}
		if tag.Number != setTag {
			return nil, core.Errorf(core.KindMalformedTransaction, "unexpected witness tag %d", tag.Number)
		}
		raw = tag.Content
		tx.tagged = true
	}
	if err := cbor.Unmarshal(raw, &tx.witnesses); err != nil {
		return nil, core.WrapKind(core.KindMalformedTransaction, err, "decode vkey witnesses")
	}
	return tx, nil
}

// ID is the Blake2b-256 hash of the raw body, the value every witness signs.
func (t *Transaction) ID() core.TxHash {
	return core.TxHash(blake2b.Sum256(t.body))
}

func (t *Transaction) Body() []byte {
	return bytes.Clone(t.body)
}

func (t *Transaction) Witnesses() []VKeyWitness {
	out := make([]VKeyWitness, len(t.witnesses))
	copy(out, t.witnesses)
	return out
}

// AddWitnesses appends witnesses whose verification key is not present yet
// and returns how many were added.
func (t *Transaction) AddWitnesses(ws ...VKeyWitness) int {
	added := 0
	for _, w := range ws {
		if t.hasKey(w.VKey) {
			continue
		}
		t.witnesses = append(t.witnesses, VKeyWitness{VKey: bytes.Clone(w.VKey), Signature: bytes.Clone(w.Signature)})
		added++
	}
	return added
}

// SetWitness stores w, replacing any witness with the same verification key.
func (t *Transaction) SetWitness(w VKeyWitness) {
	kept := t.witnesses[:0:0]
	for _, cur := range t.witnesses {
		if !bytes.Equal(cur.VKey, w.VKey) {
			kept = append(kept, cur)
		}
	}
	t.witnesses = append(kept, VKeyWitness{VKey: bytes.Clone(w.VKey), Signature: bytes.Clone(w.Signature)})
}

func (t *Transaction) hasKey(vkey []byte) bool {
	for _, w := range t.witnesses {
		if bytes.Equal(w.VKey, vkey) {
			return true
		}
	}
	return false
}

// Encode serializes the transaction keeping the original body bytes.
func (t *Transaction) Encode() ([]byte, error) {
	ws := make(map[uint64]cbor.RawMessage, len(t.witnessSet)+1)
	for k, v := range t.witnessSet {
		ws[k] = v
	}
	if len(t.witnesses) > 0 {
		var list any = t.witnesses
		if t.tagged {
			list = cbor.Tag{Number: setTag, Content: t.witnesses}
		}
		raw, err := encMode.Marshal(list)
		if err != nil {
			return nil, core.WrapKind(core.KindInternal, err, "encode vkey witnesses")
		}
		ws[vkeyWitnessesKey] = raw
	}
	wsRaw, err := encMode.Marshal(ws)
	if err != nil {
		return nil, core.WrapKind(core.KindInternal, err, "encode witness set")
	}
	elems := make([]cbor.RawMessage, 0, 2+len(t.rest))
	elems = append(elems, t.body, wsRaw)
	elems = append(elems, t.rest...)
	return encMode.Marshal(elems)
}
