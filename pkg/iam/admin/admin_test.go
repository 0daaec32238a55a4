package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBypassAccount_IsUsable(t *testing.T) {
	enabled := &BypassAccount{Disabled: false}
	assert.True(t, enabled.IsUsable())

	disabled := &BypassAccount{Disabled: true}
	assert.False(t, disabled.IsUsable())
}
