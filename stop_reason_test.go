package taskchat_test

import (
	"testing"

	"github.com/fwojciec/taskchat"
	"github.com/stretchr/testify/assert"
)

func TestStopReason_Complete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reason taskchat.StopReason
		want   bool
	}{
		{taskchat.StopEndTurn, true},
		{taskchat.StopToolUse, true},
		{taskchat.StopLength, false},
		{taskchat.StopError, false},
		{taskchat.StopAborted, false},
		{taskchat.StopUnknown, false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.reason.Complete())
		})
	}
}
