package sections

import (
	"errors"
	"fmt"

	"go.lsp.dev/protocol"
)

// ErrCollaboratorUnavailable matches every failure of a folding range or
// symbol provider, including malformed answers.
var ErrCollaboratorUnavailable = errors.New("section collaborator unavailable")

// ErrMalformedRange is wrapped when a provider returns a range that ends
// before it starts.
var ErrMalformedRange = errors.New("malformed folding range")

// Collaborator names used in CollaboratorError.
const (
	CollaboratorFoldingRanges = "folding ranges"
	CollaboratorSymbols       = "document symbols"
)

// CollaboratorError reports a provider failure for a document.
type CollaboratorError struct {
	Collaborator string
	URI          protocol.DocumentURI
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s for %s: %v", e.Collaborator, e.URI, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCollaboratorUnavailable) match any collaborator error.
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaboratorUnavailable
}
