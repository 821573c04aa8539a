// Package idgen mints ids for nodes created in the explorer before the
// backend confirms them.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// NodePrefix is prepended to every generated node id.
const NodePrefix = "n-"

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	length   = 10

	// maxAttempts bounds the retries of Unique.
	maxAttempts = 8
)

// Func generates one id.
type Func func() (string, error)

// NodeID returns a new random node id.
func NodeID() (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return NodePrefix + id, nil
}

// Unique draws ids from gen until one is not taken.
func Unique(gen Func, taken func(string) bool) (string, error) {
	if gen == nil {
		gen = NodeID
	}
	for range maxAttempts {
		id, err := gen()
		if err != nil {
			return "", err
		}
		if taken == nil || !taken(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("idgen: no free id after %d attempts", maxAttempts)
}
