package cache

import (
	"context"
	"testing"

	"github.com/agendobot/metrics/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNoRedisAddrDegradesToNoop(t *testing.T) {
	snapshots := New(Params{Config: config.Config{}, Log: zap.NewNop()})

	require.NoError(t, snapshots.SetPlatform(context.Background(), "30d", []byte(`{"revenue":1}`)))
	require.NoError(t, snapshots.SetTenant(context.Background(), "42", "30d", []byte(`{}`)))

	payload, ok, err := snapshots.GetPlatform(context.Background(), "30d")
	require.NoError(t, err)
	assert.False(t, ok, "noop cache never serves hits")
	assert.Nil(t, payload)
}

func TestSnapshotKeys(t *testing.T) {
	assert.Equal(t, "metrics:platform:30d", platformKey("30d"))
	assert.Equal(t, "metrics:tenant:42:7d", tenantKey("42", "7d"))
}
