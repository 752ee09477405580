package model

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Int is an unsigned integer decoded leniently from JSON. Numbers, numeric
// strings and 0x-prefixed hex are accepted; a missing, null or malformed
// value decodes as unset and reads as zero.
type Int struct {
	v *big.Int
}

// NewInt wraps v.
func NewInt(v *big.Int) Int {
	if v == nil {
		return Int{}
	}
	return Int{v: new(big.Int).Set(v)}
}

// IntFromUint64 wraps v.
func IntFromUint64(v uint64) Int {
	return Int{v: new(big.Int).SetUint64(v)}
}

// IsSet reports whether a well-formed value was present.
func (i Int) IsSet() bool {
	return i.v != nil
}

// Big returns a copy of the value, or zero when unset.
func (i Int) Big() *big.Int {
	if i.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(i.v)
}

// Or returns the value, or fallback when unset or zero.
func (i Int) Or(fallback *big.Int) *big.Int {
	if i.v == nil || i.v.Sign() == 0 {
		if fallback == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(fallback)
	}
	return new(big.Int).Set(i.v)
}

func (i Int) String() string {
	return i.Big().String()
}

func (i Int) MarshalJSON() ([]byte, error) {
	if i.v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(i.v.String())
}

// UnmarshalJSON never fails; see the type comment.
func (i *Int) UnmarshalJSON(data []byte) error {
	i.v = parseLenientUint(data)
	return nil
}

func parseLenientUint(data []byte) *big.Int {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	s := string(raw)
	if raw[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return nil
		}
		s = strings.TrimSpace(unquoted)
	}
	if s == "" {
		return nil
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok || v.Sign() < 0 {
			return nil
		}
		return v
	}
	if v, ok := new(big.Int).SetString(s, 10); ok {
		if v.Sign() < 0 {
			return nil
		}
		return v
	}

	// Exponent or fractional notation is accepted only when it denotes an integer.
	f, _, err := big.ParseFloat(s, 10, 256, big.ToNearestEven)
	if err != nil || f.Sign() < 0 || !f.IsInt() || f.MantExp(nil) > 256 {
		return nil
	}
	v, _ := f.Int(nil)
	return v
}

// Bytes32 is a 32-byte value decoded leniently from a hex string; anything
// else decodes as the zero hash.
type Bytes32 struct {
	common.Hash
	set bool
}

// IsSet reports whether a well-formed hex value was present.
func (b Bytes32) IsSet() bool {
	return b.set
}

func (b Bytes32) MarshalJSON() ([]byte, error) {
	if !b.set {
		return []byte("null"), nil
	}
	return json.Marshal(b.Hash.Hex())
}

// UnmarshalJSON never fails; see the type comment.
func (b *Bytes32) UnmarshalJSON(data []byte) error {
	*b = Bytes32{}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil
	}
	decoded, err := decodeHex(s)
	if err != nil || len(decoded) > common.HashLength {
		return nil
	}
	b.Hash = common.BytesToHash(decoded)
	b.set = true
	return nil
}

func decodeHex(s string) ([]byte, error) {
	body := s[2:]
	if len(body)%2 == 1 {
		body = "0" + body
	}
	return hexutil.Decode("0x" + body)
}
