package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kdlbs/procd/internal/process"
)

func TestToStatus_DeadlineExceeded(t *testing.T) {
	err := toStatus(context.DeadlineExceeded)
	st, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.DeadlineExceeded, st.Code())
}

func TestToStatus_ValidationError(t *testing.T) {
	err := toStatus(&process.ValidationError{Msg: "bad name"})
	st, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
}

func TestToStatus_AlreadyExists(t *testing.T) {
	err := toStatus(process.ErrAlreadyExists)
	st, ok := status.FromError(err)
	assert.True(t, ok)
	assert.Equal(t, codes.AlreadyExists, st.Code())
}
