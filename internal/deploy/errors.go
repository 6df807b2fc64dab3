package deploy

import "fmt"

// Machine-readable error codes surfaced to the command boundary.
const (
	CodeDeploymentTimedOut     = "deploymentTimedOut"
	CodeDeploymentFailed       = "deploymentFailed"
	CodeInvalidDeployStage     = "invalidDeployStage"
	CodeMissingDeployDirectory = "missingDeployDirectory"
	CodeMissingIndexFile       = "missingIndexFile"
	CodeStaticGeneratorConfig  = "staticGeneratorConfigInDeployDir"
	CodeUploadAccessDenied     = "uploadAccessDenied"
	CodeUnknownVersionStatus   = "unknownVersionStatus"
)

// Error is a deploy pipeline error with a machine-readable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a coded error with a formatted message.
func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode returns the deploy error code of err, or "" if err is not a *Error.
func ErrorCode(err error) string {
	for err != nil {
		if de, ok := err.(*Error); ok {
			return de.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
