// internal/browser/errors.go
package browser

import "errors"

// Identifier resolution failures. An action target must match exactly one
// live element; anything else is reported rather than guessed around.
var (
	ErrNoMatch   = errors.New("no element matches identifier")
	ErrAmbiguous = errors.New("identifier matches multiple elements")
)
