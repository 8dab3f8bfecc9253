package errkind

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := InvalidArgument("world name is empty (x=%d)", 3)
	assert.True(t, IsInvalidArgument(err))
	assert.False(t, IsCollaboratorUnavailable(err))
	assert.Equal(t, "invalid argument: world name is empty (x=3)", err.Error())

	wrapped := fmt.Errorf("load world: %w", CollaboratorUnavailable("world %q not found", "nether"))
	assert.True(t, IsCollaboratorUnavailable(wrapped))
	assert.True(t, errors.Is(wrapped, ErrCollaboratorUnavailable))
	assert.False(t, IsInvalidArgument(wrapped))
}
