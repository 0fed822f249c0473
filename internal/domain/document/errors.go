package document

import "errors"

// Error taxonomy at the core boundary. Collaborator errors are converted
// to one of these before they leave a service operation.
var (
	// ErrNotFound reports that the lookup target is absent.
	ErrNotFound = errors.New("document not found")

	// ErrForbidden reports an ownership check failure. It never degrades
	// to a partial result.
	ErrForbidden = errors.New("forbidden")

	// ErrStoreUnavailable reports a transient relational-store failure.
	// The core does not retry; the initiating action is left
	// re-triggerable.
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrBlobUnavailable reports a transient blob-store failure.
	ErrBlobUnavailable = errors.New("blob store unavailable")
)
