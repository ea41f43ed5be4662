package parties

import "github.com/pkg/errors"

// Common party-resolution errors
var (
	ErrNotFound       = errors.New("record not found")
	ErrAmbiguousMatch = errors.New("ambiguous company match")
)
