package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/hoststat/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	assert.Equal(t, "Invalid configuration", errFactory.New(errors.ErrInvalidConfig).Error())
	assert.Equal(t, "custom", errFactory.WithMessage(errors.ErrInternal, "custom").Error())
	assert.Equal(t, "Operation failed: boom",
		errFactory.Wrap(errors.ErrOperationFailed, fmt.Errorf("boom")).Error())
	assert.Equal(t, "unknown_code", errFactory.New(errors.ErrorCode("unknown_code")).Error())
}

func TestHasCode(t *testing.T) {
	errFactory := errors.New()
	inner := errFactory.New(errors.ErrTimeout)
	outer := errFactory.Wrap(errors.ErrOperationFailed, fmt.Errorf("context: %w", inner))

	assert.True(t, errors.HasCode(outer, errors.ErrOperationFailed))
	assert.True(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.False(t, errors.HasCode(outer, errors.ErrInternal))
	assert.False(t, errors.HasCode(fmt.Errorf("plain"), errors.ErrInternal))
	assert.True(t, errors.Is(outer, inner))
}
