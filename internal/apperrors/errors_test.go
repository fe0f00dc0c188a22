package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorFormatting(t *testing.T) {
	cause := errors.New("element not found")
	err := NewTransientPageError("wait table", cause)

	assert.Equal(t, "[TRANSIENT_PAGE] wait table: element not found", err.Error())
	assert.ErrorIs(t, err, cause)

	noCause := NewInvalidArgumentError("symbol is required")
	assert.Equal(t, "[INVALID_ARGUMENT] symbol is required", noCause.Error())
}

func TestTypeOfWrapped(t *testing.T) {
	err := fmt.Errorf("crawl summary: %w", NewSessionStaleError("context destroyed", nil))

	assert.Equal(t, TypeSessionStale, TypeOf(err))
	assert.True(t, IsSessionStale(err))
	assert.False(t, IsTransientPage(err))
	assert.Equal(t, ErrorType(""), TypeOf(errors.New("plain")))
}

func TestWithContext(t *testing.T) {
	err := NewStorageError("write failed", nil).WithContext("path", "/tmp/x.csv")
	assert.Equal(t, "/tmp/x.csv", err.Context["path"])
	assert.True(t, IsStorage(err))
}
