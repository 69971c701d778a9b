// Package shortcode allocates collision-free short codes and validates custom ones.
package shortcode

import (
	"crypto/rand"
	"math/big"
)

// Alphabet excludes 0/1 and the look-alike letters I, O and l.
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz"

// fallbackAlphabet is the unconstrained URL-safe set used when the store cannot be consulted.
const fallbackAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

const (
	MinLength = 3
	MaxLength = 20
)

// Random draws length characters from alphabet using crypto/rand.
func Random(alphabet string, length int) (string, error) {
	b := make([]byte, length)
	limit := big.NewInt(int64(len(alphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}

// InAlphabet reports whether every character of code belongs to Alphabet.
func InAlphabet(code string) bool {
	for i := 0; i < len(code); i++ {
		if !isAlphabetByte(code[i]) {
			return false
		}
	}
	return true
}

var alphabetSet = func() [256]bool {
	var set [256]bool
	for i := 0; i < len(Alphabet); i++ {
		set[Alphabet[i]] = true
	}
	return set
}()

func isAlphabetByte(c byte) bool {
	return alphabetSet[c]
}
