// Package base62 encodes unsigned integers with the alphabet 0-9a-zA-Z.
package base62

import (
	"errors"
	"math"
)

// Alphabet lists digits first, then lowercase, then uppercase letters.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const base = uint64(len(Alphabet))

var (
	ErrEmpty        = errors.New("base62: empty string")
	ErrInvalidChar  = errors.New("base62: invalid character")
	ErrOverflow     = errors.New("base62: value overflows uint64")
	ErrNonCanonical = errors.New("base62: leading zero")
)

// Encode returns the natural base62 representation of n. Zero encodes as "0".
func Encode(n uint64) string {
	if n == 0 {
		return Alphabet[:1]
	}

	// 11 digits hold any uint64.
	var buf [11]byte

	i := len(buf)
	for n > 0 {
		i--
		buf[i] = Alphabet[n%base]
		n /= base
	}

	return string(buf[i:])
}

// Decode is the inverse of Encode. Only the form Encode produces is accepted,
// so a leading '0' is rejected unless it is the whole string.
func Decode(s string) (uint64, error) {
	if s == "" {
		return 0, ErrEmpty
	}

	if len(s) > 1 && s[0] == Alphabet[0] {
		return 0, ErrNonCanonical
	}

	var n uint64

	for i := 0; i < len(s); i++ {
		d, ok := digit(s[i])
		if !ok {
			return 0, ErrInvalidChar
		}

		if n > (math.MaxUint64-d)/base {
			return 0, ErrOverflow
		}

		n = n*base + d
	}

	return n, nil
}

func digit(c byte) (uint64, bool) {
	switch {
	case c >= '0' && c <= '9':
		return uint64(c - '0'), true
	case c >= 'a' && c <= 'z':
		return uint64(c-'a') + 10, true
	case c >= 'A' && c <= 'Z':
		return uint64(c-'A') + 36, true
	default:
		return 0, false
	}
}
