// Package abi covers the narrow slice of contract ABI encoding this indexer
// needs: event topic hashes, method selectors, static 32-byte words, dynamic
// strings, and decimal scaling. Topic hashes and selectors are computed from
// canonical signatures at startup rather than embedded as literals.
package abi

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

const wordSize = 32

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// EventTopic returns the topic0 hash for a canonical event signature such as
// "TokensPurchased(address,uint256,uint256)".
func EventTopic(signature string) string {
	return "0x" + hex.EncodeToString(keccak256([]byte(signature)))
}

// MethodID returns the 4-byte call selector for a canonical method signature.
func MethodID(signature string) string {
	return "0x" + hex.EncodeToString(keccak256([]byte(signature))[:4])
}

// Decode strips an optional 0x prefix and hex-decodes log or call data.
func Decode(data string) ([]byte, error) {
	trimmed := strings.TrimPrefix(data, "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode abi data: %w", err)
	}
	return raw, nil
}

// Word returns the i-th 32-byte word of decoded data.
func Word(data []byte, i int) ([]byte, error) {
	start := i * wordSize
	if start+wordSize > len(data) {
		return nil, fmt.Errorf("abi data too short: want word %d, have %d bytes", i, len(data))
	}
	return data[start : start+wordSize], nil
}

// WordBig decodes the i-th word as an unsigned big integer.
func WordBig(data []byte, i int) (*big.Int, error) {
	w, err := Word(data, i)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

// WordAddress decodes the i-th word as a lowercase 0x address.
func WordAddress(data []byte, i int) (string, error) {
	w, err := Word(data, i)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(w[12:]), nil
}

// WordString decodes the i-th word as an offset to a dynamic string and
// returns the string it points at.
func WordString(data []byte, i int) (string, error) {
	offset, err := WordBig(data, i)
	if err != nil {
		return "", err
	}
	if !offset.IsInt64() {
		return "", fmt.Errorf("abi string offset out of range")
	}
	start := offset.Int64()
	if start < 0 || start+wordSize > int64(len(data)) {
		return "", fmt.Errorf("abi string offset %d out of bounds", start)
	}
	length := new(big.Int).SetBytes(data[start : start+wordSize])
	if !length.IsInt64() {
		return "", fmt.Errorf("abi string length out of range")
	}
	n := length.Int64()
	body := start + wordSize
	if body+n > int64(len(data)) {
		return "", fmt.Errorf("abi string of length %d overruns data", n)
	}
	return string(data[body : body+n]), nil
}

// TopicAddress decodes an indexed address topic (a left-padded 32-byte word).
func TopicAddress(topic string) (string, error) {
	trimmed := strings.TrimPrefix(topic, "0x")
	if len(trimmed) != 2*wordSize {
		return "", fmt.Errorf("topic is not a 32-byte word: %q", topic)
	}
	return "0x" + strings.ToLower(trimmed[24:]), nil
}

// EncodeUint64 encodes a value as one left-padded call-data word, without a
// 0x prefix so it can be appended after a method selector.
func EncodeUint64(v uint64) string {
	return fmt.Sprintf("%064x", v)
}

// ScaleDecimals converts a raw integer amount to a float at the given decimal
// scale. Precision loss past float64 is acceptable for derived analytics; the
// raw value is stored alongside.
func ScaleDecimals(raw *big.Int, decimals int) float64 {
	if raw == nil || raw.Sign() == 0 {
		return 0
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), scale).Float64()
	return out
}
