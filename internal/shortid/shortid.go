// Package shortid generates the public locators of uploaded files: a few
// random lowercase alphanumerics followed by the original file extension.
package shortid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var ErrExhausted = errors.New("no free short id found")

// ExistsFunc reports whether a short id is already taken.
type ExistsFunc func(ctx context.Context, shortID string) (bool, error)

type Generator struct {
	length      int
	maxAttempts int
	exists      ExistsFunc
}

func NewGenerator(length, maxAttempts int, exists ExistsFunc) *Generator {
	return &Generator{length: length, maxAttempts: maxAttempts, exists: exists}
}

// Next returns a candidate that did not resolve to a record when checked.
// The caller still inserts under the unique constraint.
func (g *Generator) Next(ctx context.Context, fileName string) (string, error) {
	suffix := Extension(fileName)

	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		id, err := gonanoid.Generate(Alphabet, g.length)
		if err != nil {
			return "", fmt.Errorf("failed to generate short id: %w", err)
		}
		candidate := id + suffix

		taken, err := g.exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", ErrExhausted
}

// Extension returns ".ext" for names with an extension and "" otherwise.
// Dotfiles such as ".env" have no extension.
func Extension(fileName string) string {
	i := strings.LastIndex(fileName, ".")
	if i <= 0 || i == len(fileName)-1 {
		return ""
	}
	ext := strings.ToLower(fileName[i+1:])
	if strings.ContainsAny(ext, "/\\ ?#%") {
		return ""
	}
	return "." + ext
}

// Base strips an extension suffix: "ab12.txt" becomes "ab12".
func Base(shortID string) string {
	if i := strings.Index(shortID, "."); i >= 0 {
		return shortID[:i]
	}
	return shortID
}
