package errors

import (
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryError_Unwrap(t *testing.T) {
	cause := pkgerrors.New("connection refused")
	err := StoreUnavailable("insert failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "insert failed")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{EmbeddingUnavailable("down", nil), ErrCodeEmbeddingUnavailable},
		{ExtractionUnavailable("down", nil), ErrCodeExtractionUnavailable},
		{StoreUnavailable("down", nil), ErrCodeStoreUnavailable},
		{InvalidArgument("bad limit"), ErrCodeInvalidArgument},
		{RecordNotFound("abc"), ErrCodeRecordNotFound},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeOf(tt.err))
	}

	assert.Empty(t, CodeOf(pkgerrors.New("plain")), "untyped errors carry no code")
	assert.Empty(t, CodeOf(nil))
}

func TestCodeOf_WrappedError(t *testing.T) {
	inner := InvalidArgument("bad limit")
	wrapped := fmt.Errorf("handling request: %w", inner)

	assert.Equal(t, ErrCodeInvalidArgument, CodeOf(wrapped))
}

func TestRecordNotFound_Message(t *testing.T) {
	err := RecordNotFound("rec-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rec-123")
}
