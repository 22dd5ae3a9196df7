// Package blob stores a single JSON document in an externally readable location.
package blob

import (
	"context"
	"errors"
)

// ErrBlobNotFound means the document does not exist yet.
var ErrBlobNotFound = errors.New("blob not found")

// Blob reads and replaces one document.
type Blob interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, content []byte) error
}
