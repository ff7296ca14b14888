package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kdlbs/procd/internal/process"
)

// toStatus maps the daemon's error taxonomy onto the standard RPC
// codes. Errors that carry a synthesized ProcessInfo
// (SpawnFailedError, FailedToStartError) are handled by the caller
// before reaching here; they are not RPC errors, they are successful
// responses carrying a Failed ProcessInfo.
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	var valErr *process.ValidationError
	if errors.As(err, &valErr) {
		return status.Error(codes.InvalidArgument, valErr.Error())
	}

	var notFound *process.NotFoundError
	if errors.As(err, &notFound) {
		return status.Error(codes.NotFound, notFound.Error())
	}

	if errors.Is(err, process.ErrAlreadyExists) {
		return status.Error(codes.AlreadyExists, err.Error())
	}

	if errors.Is(err, errInvalidTimeFilter) || errors.Is(err, errInvalidPattern) {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	if errors.Is(err, errLogsNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}

	return status.Error(codes.Internal, err.Error())
}
