package random

import (
	"crypto/rand"
	"math/big"
)

var (
	allowedLetters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	lowerAlnum     = []rune("abcdefghijklmnopqrstuvwxyz0123456789")
)

// Letters returns n random ASCII letters.
func Letters(n uint) (string, error) {
	return pick(allowedLetters, n)
}

// Suffix returns n random lowercase letters and digits, safe for file names.
func Suffix(n uint) (string, error) {
	return pick(lowerAlnum, n)
}

func pick(alphabet []rune, n uint) (string, error) {
	out := make([]rune, n)
	upper := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, upper)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
