package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithMessagesMatchesKind(t *testing.T) {
	err := fmt.Errorf("publish: %w", WithMessages(ErrAmbiguous, "More than one instance found"))
	assert.True(t, errors.Is(err, ErrAmbiguous))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, []string{"More than one instance found"}, MessagesOf(err))
}

func TestMessagesOfPlainError(t *testing.T) {
	assert.Equal(t, []string{"boom"}, MessagesOf(errors.New("boom")))
	assert.Nil(t, MessagesOf(nil))
}

func TestMessagesErrorString(t *testing.T) {
	assert.Equal(t, "not found", WithMessages(ErrNotFound).Error())
	assert.Equal(t, "not found: x", WithMessages(ErrNotFound, "x", "y").Error())
}
