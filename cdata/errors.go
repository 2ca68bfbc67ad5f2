package cdata

import "errors"

// Bridge errors. All failures are detected synchronously during an export
// or import call and wrapped around one of these sentinels; nothing is
// retried and nothing is downgraded.
var (
	// ErrUnsupportedType indicates a data type with no format-token mapping.
	ErrUnsupportedType = errors.New("cdata: unsupported data type")

	// ErrMalformedFormat indicates a received format string that cannot be
	// parsed.
	ErrMalformedFormat = errors.New("cdata: malformed format string")

	// ErrChildArity indicates a format token whose implied child count
	// disagrees with the child schemas that accompany it.
	ErrChildArity = errors.New("cdata: format child count mismatch")

	// ErrStructuralMismatch indicates an ArrowArray whose child count,
	// buffer count or dictionary pairing disagrees with its schema.
	ErrStructuralMismatch = errors.New("cdata: structural mismatch")

	// ErrInvalidSchema indicates an ArrowSchema with internally
	// inconsistent flags or dictionary pairing.
	ErrInvalidSchema = errors.New("cdata: invalid schema")

	// ErrReleasedSchema indicates an operation on an ArrowSchema whose
	// release callback has already run.
	ErrReleasedSchema = errors.New("cdata: schema already released")

	// ErrUseAfterRelease indicates an operation on an ArrowArray whose
	// release callback has already run.
	ErrUseAfterRelease = errors.New("cdata: use after release")

	// ErrBoundsViolation indicates declared lengths, offsets or null
	// counts that cannot describe a valid array.
	ErrBoundsViolation = errors.New("cdata: length/offset out of bounds")
)
