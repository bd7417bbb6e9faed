package middleware

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/errdef"
)

// CodeOf maps an error kind to its connect code.
func CodeOf(err error) connect.Code {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return connectErr.Code()
	case errdef.IsValidation(err):
		return connect.CodeInvalidArgument
	case errdef.IsNotFound(err):
		return connect.CodeNotFound
	case errdef.IsConflict(err):
		return connect.CodeAlreadyExists
	case errdef.IsForbidden(err):
		return connect.CodePermissionDenied
	case errdef.IsTransientStore(err):
		return connect.CodeUnavailable
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	default:
		return connect.CodeInternal
	}
}

// ConnectError converts err to a connect error carrying the matching code.
// It returns nil for nil.
func ConnectError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	return connect.NewError(CodeOf(err), err)
}
