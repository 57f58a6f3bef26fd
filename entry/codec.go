package entry

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/sugawarayuuta/sonnet"
)

// Type tags for the polymorphic value object: raw caller bytes pass
// through untouched, everything else gets marshaled.
const (
	typeTagRawBytes byte = 1
	typeTagMarshaled byte = 2
)

// payload is the normalized on-wire form of a V: either the caller's own
// raw bytes, or a marshaled payload with its type tag.
type payload struct {
	bytes   []byte
	typeTag byte
}

// marshal normalizes v into the chosen wire representation. []byte values
// pass through untouched; everything else is marshaled with sonnet (a
// drop-in, allocation-light encoding/json replacement), matching the
// JSON-RPC payload decoding codewanderer42820-evm_triarb does with the
// same library.
func marshal[V any](v V) (payload, error) {
	if b, ok := any(v).([]byte); ok {
		return payload{bytes: b, typeTag: typeTagRawBytes}, nil
	}
	data, err := sonnet.Marshal(v)
	if err != nil {
		return payload{}, &ErrOffHeapCodec{Err: fmt.Errorf("marshal: %w", err)}
	}
	return payload{bytes: data, typeTag: typeTagMarshaled}, nil
}

// HashKey precomputes the cell's 32-bit hash field by marshaling the key
// to its wire representation and running it through xxhash, truncated to
// 32 bits — a different problem from internal/util.Fnv64a, which a
// registry uses to pick a shard, not to tag a cell. Callers construct
// cells with New(..., HashKey(key), ...).
func HashKey[K comparable](key K) uint32 {
	p, err := marshal(key)
	if err != nil {
		return 0
	}
	return uint32(xxhash.Sum64(p.bytes))
}

// unmarshal recovers a V from its normalized wire representation.
func unmarshal[V any](p payload) (V, error) {
	var out V
	switch p.typeTag {
	case typeTagRawBytes:
		if bp, ok := any(&out).(*[]byte); ok {
			*bp = p.bytes
			return out, nil
		}
		return out, &ErrOffHeapCodec{Err: fmt.Errorf("raw bytes payload for non-[]byte type %T", out)}
	case typeTagMarshaled:
		if err := sonnet.Unmarshal(p.bytes, &out); err != nil {
			return out, &ErrOffHeapCodec{Err: fmt.Errorf("unmarshal: %w", err)}
		}
		return out, nil
	default:
		return out, &ErrOffHeapCodec{Err: fmt.Errorf("unknown type tag %d", p.typeTag)}
	}
}
