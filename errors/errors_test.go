package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "plain",
			err:  errors.New(errors.CodeNotFound, "summary file not found"),
			want: "summary file not found",
		},
		{
			name: "formatted",
			err:  errors.Newf(errors.CodeInvalidInput, "bad flag %d", 3),
			want: "bad flag 3",
		},
		{
			name: "wrapped with sorted context",
			err: errors.WrapWithContext(
				stderrors.New("exit status 1"),
				errors.CodeExecutionFailed,
				"command failed",
				map[string]interface{}{"program": "dvc", "args": "status"},
			),
			want: "command failed [args=status program=dvc]: exit status 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, errors.Wrap(nil, errors.CodeInternal, "ignored"))
	assert.NoError(t, errors.WrapWithContext(nil, errors.CodeInternal, "ignored", nil))
}

func TestCodeMatching(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := errors.Wrap(cause, errors.CodeNetwork, "search runs")
	outer := fmt.Errorf("weight validation: %w", err)

	assert.Equal(t, errors.CodeNetwork, errors.CodeOf(outer))
	assert.True(t, errors.HasCode(outer, errors.CodeNetwork))
	assert.False(t, errors.HasCode(outer, errors.CodeNotFound))
	assert.True(t, errors.Is(outer, cause))

	var coded *errors.Error
	require.True(t, errors.As(outer, &coded))
	assert.Equal(t, "search runs", coded.Message)
}

func TestCodeOfUncoded(t *testing.T) {
	assert.Equal(t, errors.CodeUnknown, errors.CodeOf(stderrors.New("plain")))
	assert.Equal(t, errors.CodeUnknown, errors.CodeOf(nil))
}
