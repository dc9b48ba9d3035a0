package answer

import "errors"

// Classified failure kinds for the answer path. Every error returned by
// Generator.Answer wraps exactly one of these; check with errors.Is().
// All are terminal for the current request: no automatic retry happens at
// this layer. The HTTP boundary maps ErrValidation to a client error and
// the rest to server errors.
var (
	// ErrValidation indicates bad input. No external collaborator was called.
	ErrValidation = errors.New("validation error")

	// ErrRetrieval indicates the context-fetch collaborator failed.
	ErrRetrieval = errors.New("retrieval error")

	// ErrGeneration indicates the model collaborator failed.
	ErrGeneration = errors.New("generation error")

	// ErrConfiguration indicates missing required config at construction.
	ErrConfiguration = errors.New("configuration error")
)
