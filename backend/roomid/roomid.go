// Package roomid generates short random room identifiers.
package roomid

import (
	"errors"

	"github.com/pion/randutil"
)

const (
	DefaultLength = 6

	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var (
	ErrInvalidLength = errors.New("invalid room id length")
	ErrGenerate      = errors.New("cannot generate room id")
)

// Generate returns a lowercase base36 token of the given length
// drawn from crypto/rand.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}
	id, err := randutil.GenerateCryptoRandomString(length, alphabet)
	if err != nil {
		return "", errors.Join(ErrGenerate, err)
	}
	return id, nil
}
