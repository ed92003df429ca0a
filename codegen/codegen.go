// Package codegen provides short-code generation and custom-alias
// validation. Generators should be safe for concurrent use.
package codegen

import (
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	alphanumChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// MaxAliasLength bounds user-supplied custom aliases.
	MaxAliasLength = 32
)

// Generator generates short codes.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

// alphanumGenerator implements Generator over [A-Za-z0-9] using a
// cryptographically strong random source, so codes are not guessable
// from prior output.
type alphanumGenerator struct{}

// NewAlphanum returns a new alphanumeric code generator.
func NewAlphanum() Generator {
	return &alphanumGenerator{}
}

// Generate generates a random alphanumeric string of the specified length.
func (g *alphanumGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	for i := range b {
		b[i] = alphanumChars[int(b[i])%len(alphanumChars)]
	}

	return string(b), nil
}

// Validate checks a user-supplied custom alias against the same character
// class generated codes use, plus the alias length cap.
func Validate(candidate string) error {
	if candidate == "" {
		return errors.New("alias cannot be empty")
	}
	if len(candidate) > MaxAliasLength {
		return fmt.Errorf("alias too long (maximum %d characters)", MaxAliasLength)
	}
	for _, c := range candidate {
		if !isAlphanum(c) {
			return errors.New("alias contains invalid characters (only alphanumeric allowed)")
		}
	}
	return nil
}

func isAlphanum(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	default:
		return false
	}
}
