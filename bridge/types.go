package bridge

// supportedABIVersion is the engine FFI contract this loader speaks.
// Libraries reporting anything else are rejected at load time.
const supportedABIVersion = 1

// ErrorCode mirrors the status codes returned by the engine FFI surface.
type ErrorCode int32

const (
	ErrOK              ErrorCode = 0
	ErrUnknown         ErrorCode = 1
	ErrInvalidArgument ErrorCode = 2
	ErrAbiMismatch     ErrorCode = 3
	ErrArrowImport     ErrorCode = 4
	ErrArrowExport     ErrorCode = 5
	ErrExecution       ErrorCode = 6
	ErrUnsupported     ErrorCode = 7
	ErrOom             ErrorCode = 8
)
