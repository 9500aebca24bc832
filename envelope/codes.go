package envelope

// Error codes carried in ErrorInfo.Code. Both ends of a connection must
// recognize these.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnsupportedVersion = "UNSUPPORTED_VERSION"
	CodeAuthRequired       = "AUTH_REQUIRED"
	CodeAuthFailed         = "AUTH_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeReadOnly           = "READ_ONLY"
	CodePathTraversal      = "PATH_TRAVERSAL"
	CodeIOError            = "IO_ERROR"
	CodeIntegrityFailed    = "INTEGRITY_FAILED"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidRange       = "INVALID_RANGE"
)
