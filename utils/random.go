package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateToken returns an unguessable hex token of 2n characters.
// Used for active-session ownership tokens and promotion-lock fencing.
func GenerateToken(n int) (string, error) {
	byt := make([]byte, n)

	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	return hex.EncodeToString(byt), nil
}

// MustToken is GenerateToken for call sites that cannot propagate an
// error; crypto/rand only fails when the OS entropy source is broken.
func MustToken(n int) string {
	token, err := GenerateToken(n)
	if err != nil {
		panic(err)
	}
	return token
}
