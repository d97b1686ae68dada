// Package passwordhash implements the client-salted SHA-256 scheme
// metadata.User.PasswordHash is documented to store: a random salt
// generated per password, hashed alongside the password itself, and
// serialized as "salt:digest" hex.
package passwordhash

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const saltSize = 16

// ErrMalformed indicates a stored hash isn't in the "salt:digest" form
// this package produces.
var ErrMalformed = errors.New("passwordhash: malformed hash")

// Hash salts and hashes password, returning the serialized form stored
// in metadata.User.PasswordHash.
func Hash(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return encode(salt, password), nil
}

// Verify reports whether password matches a hash produced by Hash.
func Verify(hash, password string) (bool, error) {
	salt, digest, err := decode(hash)
	if err != nil {
		return false, err
	}
	want := digestOf(salt, password)
	return subtle.ConstantTimeCompare(want, digest) == 1, nil
}

func encode(salt []byte, password string) string {
	digest := digestOf(salt, password)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(digest)
}

func digestOf(salt []byte, password string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	return h.Sum(nil)
}

func decode(hash string) (salt, digest []byte, err error) {
	parts := strings.SplitN(hash, ":", 2)
	if len(parts) != 2 {
		return nil, nil, ErrMalformed
	}
	salt, err = hex.DecodeString(parts[0])
	if err != nil {
		return nil, nil, ErrMalformed
	}
	digest, err = hex.DecodeString(parts[1])
	if err != nil {
		return nil, nil, ErrMalformed
	}
	return salt, digest, nil
}
