package tabra

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed or missing input for a single field.
type ValidationError struct {
	Field  string // Offending field name.
	Reason string // Human-readable reason.
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing type, card or filial.
type NotFoundError struct {
	Resource string // Resource kind: "type", "card", "filial".
	Key      string // Identifier that failed to resolve.
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

// ConflictError reports a state conflict: an already-used card, a
// uniqueness violation, or a barcode batch that failed validation.
// Failed operations leave state unchanged, so conflicts are safe to
// retry after the caller re-reads the current state.
type ConflictError struct {
	Reason   string   // Human-readable conflict description.
	Barcodes []string // Barcodes that caused the conflict, when applicable.
}

func (e *ConflictError) Error() string {
	if len(e.Barcodes) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Barcodes, ", "))
}

// InsufficientStockError reports that the depot holds fewer cards than requested.
type InsufficientStockError struct {
	Available int // Unused depot cards of the requested type.
	Requested int // Quantity the caller asked for.
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, available %d", e.Requested, e.Available)
}

// ForbiddenError reports a filial acting outside its own stock scope.
type ForbiddenError struct {
	Reason string // Human-readable reason.
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

// ExhaustedError reports that a bounded generation retry budget ran out.
// It signals an operational problem and should be alerted on, not retried.
type ExhaustedError struct {
	What     string // What was being generated, e.g. "barcode".
	Attempts int    // Attempts made before giving up.
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s generation exhausted after %d attempts", e.What, e.Attempts)
}
