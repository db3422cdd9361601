package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"codeberg.org/mutker/sensormon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Invalid interval value", f.New(errors.ErrInvalidInterval).Error())
	assert.Equal(t, "custom", f.WithMessage(errors.ErrInternal, "custom").Error())
	assert.Equal(t, "Invalid log level: loud", f.WithData(errors.ErrInvalidLogLevel, "loud").Error())
	assert.Equal(t, "unregistered_code", f.New("unregistered_code").Error())

	wrapped := f.Wrap(errors.ErrTimeout, stderrors.New("deadline"))
	assert.Equal(t, "Operation timed out: deadline", wrapped.Error())
}

func TestWrapPreservesChain(t *testing.T) {
	f := errors.New()
	root := stderrors.New("root cause")
	err := fmt.Errorf("outer: %w", f.Wrap(errors.ErrOperationFailed, root))

	assert.True(t, errors.Is(err, root))
	assert.True(t, errors.HasCode(err, errors.ErrOperationFailed))
	assert.False(t, errors.HasCode(err, errors.ErrTimeout))

	code, ok := errors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrOperationFailed, code)
}

func TestIsComparesCodes(t *testing.T) {
	f := errors.New()
	sentinel := f.New(errors.ErrResourceNotFound)
	err := f.WithData(errors.ErrResourceNotFound, "pump")

	assert.True(t, errors.Is(err, sentinel))
	assert.False(t, errors.Is(err, f.New(errors.ErrResourceBusy)))
}

func TestWithMessageKeepsCode(t *testing.T) {
	err := errors.New().New(errors.ErrInvalidPolicy).WithMessage("bad policy")

	assert.Equal(t, errors.ErrInvalidPolicy, err.Code())
	assert.Equal(t, "bad policy", err.Error())
	assert.Nil(t, err.GetData())
}
