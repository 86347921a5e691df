package hashtree

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// selfDescribeTag is the CBOR "self-describe" tag (RFC 8949 §3.4.6),
// prepended to the IC-Certificate header's tree field so a generic
// CBOR decoder can recognize the payload without out-of-band typing.
var selfDescribeTag = []byte{0xd9, 0xd9, 0xf7}

// toWire mirrors the tagged-array encoding of each HashTree variant:
// [0], [1,left,right], [2,label,tree], [3,data], [4,hash].
func toWire(n *Node) []interface{} {
	switch n.Kind {
	case KindEmpty:
		return []interface{}{uint64(0)}
	case KindFork:
		return []interface{}{uint64(1), toWire(n.Left), toWire(n.Right)}
	case KindLabeled:
		return []interface{}{uint64(2), n.Label, toWire(n.Sub)}
	case KindLeaf:
		return []interface{}{uint64(3), n.Data}
	case KindPruned:
		h := make([]byte, len(n.Hash))
		copy(h, n.Hash[:])
		return []interface{}{uint64(4), h}
	default:
		panic(fmt.Sprintf("hashtree: unknown node kind %d", n.Kind))
	}
}

// Serialize encodes n as a self-describe-tagged CBOR array tree, the
// format carried in the IC-Certificate response header's "tree" field.
func Serialize(n *Node) ([]byte, error) {
	body, err := cbor.Marshal(toWire(n))
	if err != nil {
		return nil, fmt.Errorf("hashtree: marshal witness: %w", err)
	}
	out := make([]byte, 0, len(selfDescribeTag)+len(body))
	out = append(out, selfDescribeTag...)
	out = append(out, body...)
	return out, nil
}

// Deserialize decodes the format Serialize produces. It is used by
// this package's tests to round-trip witnesses; production resolution
// only ever serializes outbound.
func Deserialize(wire []byte) (*Node, error) {
	if len(wire) >= len(selfDescribeTag) && string(wire[:len(selfDescribeTag)]) == string(selfDescribeTag) {
		wire = wire[len(selfDescribeTag):]
	}
	var raw []interface{}
	if err := cbor.Unmarshal(wire, &raw); err != nil {
		return nil, fmt.Errorf("hashtree: unmarshal witness: %w", err)
	}
	return fromWire(raw)
}

func fromWire(raw []interface{}) (*Node, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("hashtree: empty wire node")
	}
	tag, ok := toUint64(raw[0])
	if !ok {
		return nil, fmt.Errorf("hashtree: malformed node tag")
	}

	switch tag {
	case 0:
		return newEmpty(), nil
	case 1:
		if len(raw) != 3 {
			return nil, fmt.Errorf("hashtree: malformed fork node")
		}
		left, err := fromWireAny(raw[1])
		if err != nil {
			return nil, err
		}
		right, err := fromWireAny(raw[2])
		if err != nil {
			return nil, err
		}
		return newFork(left, right), nil
	case 2:
		if len(raw) != 3 {
			return nil, fmt.Errorf("hashtree: malformed labeled node")
		}
		label, ok := raw[1].([]byte)
		if !ok {
			return nil, fmt.Errorf("hashtree: malformed label")
		}
		sub, err := fromWireAny(raw[2])
		if err != nil {
			return nil, err
		}
		return newLabeled(label, sub), nil
	case 3:
		if len(raw) != 2 {
			return nil, fmt.Errorf("hashtree: malformed leaf node")
		}
		data, ok := raw[1].([]byte)
		if !ok {
			return nil, fmt.Errorf("hashtree: malformed leaf data")
		}
		return newLeaf(data), nil
	case 4:
		if len(raw) != 2 {
			return nil, fmt.Errorf("hashtree: malformed pruned node")
		}
		h, ok := raw[1].([]byte)
		if !ok || len(h) != 32 {
			return nil, fmt.Errorf("hashtree: malformed pruned digest")
		}
		var digest [32]byte
		copy(digest[:], h)
		return newPruned(digest), nil
	default:
		return nil, fmt.Errorf("hashtree: unknown node tag %d", tag)
	}
}

func fromWireAny(v interface{}) (*Node, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("hashtree: expected array node")
	}
	return fromWire(arr)
}

func toUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}
