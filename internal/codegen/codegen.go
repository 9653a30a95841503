// Package codegen produces random short codes.
package codegen

import (
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"
)

// Base62 is the default mixed-case alphanumeric alphabet.
const Base62 = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultLength gives 62^7 (about 3.5e12) combinations.
const DefaultLength = 7

// Generator proposes candidate short codes.
type Generator interface {
	Generate() string
}

// NanoID generates codes with a crypto-random nanoid generator.
type NanoID struct {
	gen    func() string
	length int
}

// New creates a NanoID generator. Zero values fall back to Base62 / DefaultLength.
func New(alphabet string, length int) (*NanoID, error) {
	if alphabet == "" {
		alphabet = Base62
	}
	if length <= 0 {
		length = DefaultLength
	}
	for _, c := range alphabet {
		if !IsAlphanumeric(c) {
			return nil, fmt.Errorf("codegen: alphabet must be alphanumeric, got %q", c)
		}
	}

	gen, err := nanoid.CustomASCII(alphabet, length)
	if err != nil {
		return nil, fmt.Errorf("codegen: %w", err)
	}
	return &NanoID{gen: gen, length: length}, nil
}

// Generate returns a fresh candidate.
func (n *NanoID) Generate() string {
	return n.gen()
}

// Length is the length of every generated code.
func (n *NanoID) Length() int {
	return n.length
}

// IsAlphanumeric reports whether c is in [0-9A-Za-z].
func IsAlphanumeric(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// IsAlphanumericString reports whether s is non-empty and only contains [0-9A-Za-z].
func IsAlphanumericString(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !IsAlphanumeric(c) {
			return false
		}
	}
	return true
}
