package token

import (
	"encoding/binary"
	"errors"
	"fmt"

	"lockcore/value"
)

// ErrTruncated is returned by FromBytes when the input ends in the
// middle of a length-prefixed field.
var ErrTruncated = errors.New("token: truncated RangeToken encoding")

// ValueDecoder reconstructs a domain Value from its serialized bytes.
// Serialization of primitive domain values belongs to whatever storage
// engine embeds this package, so FromBytes accepts the caller's own
// decoder and stays decoupled from any particular Value implementation.
type ValueDecoder func([]byte) (value.Value, error)

// FromBytes parses the wire format back into a RangeToken, using decode
// to reconstruct each value. For any RangeToken rt built via
// ForRead/ForWrite with a Value type whose decoder inverts Bytes(),
// FromBytes(rt.Bytes(), decode).Equal(rt) holds.
func FromBytes(b []byte, decode ValueDecoder) (RangeToken, error) {
	if len(b) < 1+4 {
		return RangeToken{}, ErrTruncated
	}
	opByte := b[0]
	rest := b[1:]

	op, isRead, err := operatorFromByte(opByte)
	if err != nil {
		return RangeToken{}, err
	}

	keyLen, rest, err := readU32(rest)
	if err != nil {
		return RangeToken{}, err
	}
	if uint32(len(rest)) < keyLen {
		return RangeToken{}, ErrTruncated
	}
	key := rest[:keyLen]
	rest = rest[keyLen:]

	var values []value.Value
	for len(rest) > 0 {
		vLen, r2, err := readU32(rest)
		if err != nil {
			return RangeToken{}, err
		}
		if uint32(len(r2)) < vLen {
			return RangeToken{}, ErrTruncated
		}
		raw := r2[:vLen]
		v, err := decode(raw)
		if err != nil {
			return RangeToken{}, fmt.Errorf("token: decoding value: %w", err)
		}
		values = append(values, v)
		rest = r2[vLen:]
	}

	rt := RangeToken{
		key:      append([]byte(nil), key...),
		operator: op,
		isRead:   isRead,
		values:   values,
		ser:      string(b),
	}
	return rt, nil
}

func readU32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, ErrTruncated
	}
	return binary.BigEndian.Uint32(b[:4]), b[4:], nil
}
