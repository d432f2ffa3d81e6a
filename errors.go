package lakota

import "errors"

// Sentinel errors returned by store operations. Wrapped with fmt.Errorf
// ("%w: ...") at call sites that need to add context.
var (
	// ErrNotFound is returned when a pod key, revision, or label is absent.
	ErrNotFound = errors.New("lakota: not found")

	// ErrSchemaMismatch is returned when a frame does not conform to a
	// collection's schema, or a pull tries to merge collections with
	// differing schemas for the same label.
	ErrSchemaMismatch = errors.New("lakota: schema mismatch")

	// ErrInvalidRange is returned when a commit update is attempted with
	// start > stop.
	ErrInvalidRange = errors.New("lakota: invalid range")

	// ErrDuplicateLabel is returned when creating a collection with an
	// existing label and raiseIfExists is set.
	ErrDuplicateLabel = errors.New("lakota: duplicate label")

	// ErrInvalidLabel is returned for an empty or whitespace-only label.
	ErrInvalidLabel = errors.New("lakota: invalid label")

	// ErrCorruptPayload is returned when a commit fails to decode or a
	// revision filename is malformed.
	ErrCorruptPayload = errors.New("lakota: corrupt payload")

	// ErrUnsupported is returned when a codec or pod scheme is not
	// registered.
	ErrUnsupported = errors.New("lakota: unsupported")

	// ErrClosed reports an operation on a closed pod or repository. No
	// operation in this package returns it: pods and repositories have
	// no close step.
	ErrClosed = errors.New("lakota: closed")

	// ErrExists reports a refusal to overwrite an existing entry. No
	// operation in this package returns it; a collection rename to an
	// existing name returns ErrDuplicateLabel.
	ErrExists = errors.New("lakota: already exists")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
