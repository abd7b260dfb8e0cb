// Package toolflowerr defines the error kinds shared across the engine.
package toolflowerr

import "errors"

// Sentinel error kinds. Layers wrap these with fmt.Errorf("...: %w", Kind)
// so callers can still errors.Is against the kind after context is added.
var (
	ErrUnsuitableSource = errors.New("unsuitable source")
	ErrExternalFetch    = errors.New("external fetch failed")
	ErrSourceDecode     = errors.New("source decode failed")
	ErrBadParameter     = errors.New("bad parameter")
	ErrMissingKeyColumn = errors.New("missing key column")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrInvalidRegex     = errors.New("invalid regexp")
	ErrNoInputs         = errors.New("no inputs")
	ErrSingleInput      = errors.New("single input")
	ErrMissingArtifact  = errors.New("missing artifact")
	ErrCancelled        = errors.New("run cancelled")
	ErrPersistence      = errors.New("persistence error")
)
