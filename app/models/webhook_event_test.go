package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventStatusTerminal(t *testing.T) {
	assert.True(t, EventProcessed.Terminal())
	assert.True(t, EventIgnored.Terminal())
	assert.False(t, EventReceived.Terminal())
	assert.False(t, EventFailed.Terminal())
	assert.False(t, EventStatus("bogus").Terminal())
}

func TestTruncateEventError(t *testing.T) {
	assert.Equal(t, "", TruncateEventError(""))
	assert.Equal(t, "short", TruncateEventError("short"))

	exact := strings.Repeat("a", MaxEventErrorLen)
	assert.Equal(t, exact, TruncateEventError(exact))

	long := strings.Repeat("b", MaxEventErrorLen+50)
	got := TruncateEventError(long)
	assert.Len(t, got, MaxEventErrorLen)
	assert.Equal(t, long[:MaxEventErrorLen], got)
}
