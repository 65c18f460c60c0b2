// internal/browser/scripts/embed.go

// Package scripts holds the JavaScript injected into every page: the
// persistent instrumentation (network tracking, hover-listener marking) and
// the per-call snapshot and stamping routines.
package scripts

import (
	_ "embed"
	"fmt"
)

//go:embed instrument.js
var instrument string

//go:embed snapshot.js
var snapshot string

//go:embed stamp.js
var stamp string

// Instrument returns the persistent page instrumentation script. It must be
// installed before navigation so it runs ahead of page scripts.
func Instrument() (string, error) {
	if instrument == "" {
		return "", fmt.Errorf("embedded instrument.js is empty or failed to load")
	}
	return instrument, nil
}

// Snapshot returns the self-contained snapshot expression. Evaluating it
// yields a JSON string describing the current DOM tree.
func Snapshot() (string, error) {
	if snapshot == "" {
		return "", fmt.Errorf("embedded snapshot.js is empty or failed to load")
	}
	return snapshot, nil
}

// Stamp builds an expression that applies the given stamp list (a JSON array)
// to the live DOM, writing semantic identifier attributes by ordinal.
func Stamp(stampsJSON string) (string, error) {
	if stamp == "" {
		return "", fmt.Errorf("embedded stamp.js is empty or failed to load")
	}
	return fmt.Sprintf("(%s)(%s)", stamp, stampsJSON), nil
}
