package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores. Validation
// failures use pkg/domain-errors instead.
var (
	// ErrNotFound means the store holds nothing under the key.
	ErrNotFound = errors.New("not found")
	// ErrUnsupported means the store cannot answer this kind of query.
	ErrUnsupported = errors.New("unsupported")
)
