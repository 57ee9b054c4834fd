package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{4, 8 * time.Minute},
		{7, time.Hour},
		{40, time.Hour},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, backoffDelay(time.Minute, tc.attempt), "attempt %d", tc.attempt)
	}
}

func TestNewReplayerDefaults(t *testing.T) {
	r := NewReplayer(nil, 0, 0, nil)
	require.Equal(t, 5, r.maxRetries)
	require.Equal(t, time.Minute, r.baseDelay)
	require.NotNil(t, r.logger)
}
