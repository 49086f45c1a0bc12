package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	msg    string
	fields map[string]interface{}
}

func (r *recordingLogger) Error(msg string, fields map[string]interface{}) {
	r.msg = msg
	r.fields = fields
}

func TestNewConfigMissingError_NamesEverySetting(t *testing.T) {
	err := NewConfigMissingError([]string{"EMAIL_USER", "EMAIL_PASS", "DESTINO"})

	assert.Equal(t, ErrCodeConfigMissing, err.Code)
	assert.False(t, err.Retryable)
	assert.Contains(t, err.Error(), "EMAIL_USER, EMAIL_PASS, DESTINO")
	assert.False(t, err.Timestamp.IsZero())
}

func TestStandardError_UnwrapKeepsCause(t *testing.T) {
	wrapped := NewSMTPError("auth", io.ErrUnexpectedEOF)

	assert.True(t, stderrors.Is(wrapped, io.ErrUnexpectedEOF))

	outer := fmt.Errorf("send report: %w", wrapped)
	stdErr, ok := AsStandardError(outer)
	require.True(t, ok)
	assert.Equal(t, ErrCodeSMTPError, stdErr.Code)
	assert.Equal(t, "auth", stdErr.Metadata["stage"])
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"standard error", NewQueryExecutionFailedError("registros_laborales", io.EOF), ErrCodeQueryExecutionFailed},
		{"wrapped standard error", fmt.Errorf("x: %w", NewConfigInvalidError("bad")), ErrCodeConfigInvalid},
		{"generic error", fmt.Errorf("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeOf(tt.err))
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "CONFIGURATION", GetErrorCategory(ErrCodeConfigMissing))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDatabaseConnectionFailed))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "DELIVERY", GetErrorCategory(ErrCodeSMTPError))
	assert.Equal(t, "OBSERVABILITY", GetErrorCategory(ErrCodeMetricsWriteFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestErrorHandler_HandleRunError(t *testing.T) {
	t.Run("nil error exits zero", func(t *testing.T) {
		log := &recordingLogger{}
		assert.Equal(t, 0, NewErrorHandler(log).HandleRunError("run-1", nil))
		assert.Empty(t, log.msg)
	})

	t.Run("standard error is logged with its code", func(t *testing.T) {
		log := &recordingLogger{}
		code := NewErrorHandler(log).HandleRunError("run-2", NewConfigMissingError([]string{"DESTINO"}))

		assert.Equal(t, 1, code)
		assert.Equal(t, "Report run failed", log.msg)
		assert.Equal(t, "CONFIG_MISSING", log.fields["errorCode"])
		assert.Equal(t, "run-2", log.fields["runId"])
		assert.Equal(t, []string{"DESTINO"}, log.fields["missing"])
	})

	t.Run("foreign error is normalized", func(t *testing.T) {
		log := &recordingLogger{}
		code := NewErrorHandler(log).HandleRunError("run-3", fmt.Errorf("disk on fire"))

		assert.Equal(t, 1, code)
		assert.Equal(t, "INTERNAL_ERROR", log.fields["errorCode"])
		assert.Equal(t, "disk on fire", log.fields["details"])
	})
}
