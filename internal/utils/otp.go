package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	resetCodeMin  = 100000
	resetCodeSpan = 900000 // codes cover [100000, 999999]
)

// GenerateResetCode returns a six digit decimal code drawn uniformly from a
// cryptographically secure source.
func GenerateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(resetCodeSpan))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+resetCodeMin, 10), nil
}
