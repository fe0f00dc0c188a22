package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/go-rod/rod/lib/cdp"
	"github.com/stretchr/testify/assert"

	"stock-crawler/internal/apperrors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.ErrorType
	}{
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), apperrors.TypeTransientPage},
		{"context destroyed", cdp.ErrCtxDestroyed, apperrors.TypeSessionStale},
		{"object not found", cdp.ErrObjNotFound, apperrors.TypeSessionStale},
		{"connection closed", io.EOF, apperrors.TypeSessionStale},
		{"unknown", errors.New("element not interactable"), apperrors.TypeTransientPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperrors.TypeOf(classify("op", tt.err)))
		})
	}
}

func TestClassifyKeepsCancellation(t *testing.T) {
	err := classify("op", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, apperrors.ErrorType(""), apperrors.TypeOf(err))
	assert.NoError(t, classify("op", nil))
}
