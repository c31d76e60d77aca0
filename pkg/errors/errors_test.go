package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	req := require.New(t)

	req.Equal(Code(""), CodeOf(nil))
	req.Equal(CodeNotFound, CodeOf(ErrRoomNotFound))
	req.Equal(CodePermissionDenied, CodeOf(fmt.Errorf("mark read: %w", ErrNotParticipant)))
	req.Equal(CodeInternal, CodeOf(stderrors.New("connection reset")))
}

func TestAppError_IsMatchesSentinel(t *testing.T) {
	req := require.New(t)

	wrapped := fmt.Errorf("append: %w", ErrEmptyMessage)
	req.ErrorIs(wrapped, ErrEmptyMessage)
	req.NotErrorIs(wrapped, ErrRoomNotFound)

	cause := stderrors.New("disk full")
	err := Internal("append message failed", cause)
	req.ErrorIs(err, cause)
	req.Equal("append message failed: disk full", err.Error())
}
