package ast

import (
	"crypto/sha256"
	"fmt"
)

// HashContent returns a hash for change detection.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum[:])
}
