package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegister(t *testing.T) {
	s := New(zap.NewNop())

	require.NoError(t, s.Register("reconciliation", "@every 1h", func() {}))
	require.NoError(t, s.Register("disabled", "", func() {}))

	assert.Len(t, s.cron.Entries(), 1)
}

func TestRegisterRejectsBadSchedule(t *testing.T) {
	s := New(zap.NewNop())

	err := s.Register("reconciliation", "every hour please", func() {})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconciliation")
	assert.Empty(t, s.cron.Entries())
}

func TestStartStop(t *testing.T) {
	s := New(zap.NewNop())
	require.NoError(t, s.Register("noop", "@every 1h", func() {}))

	s.Start()
	ctx := s.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
