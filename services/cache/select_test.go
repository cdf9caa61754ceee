package cache

import (
	"testing"
	"time"

	"github.com/minlano/ssg-price-tracker/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectDefaultsToMemory(t *testing.T) {
	svc := Select(&config.Config{CacheMaxEntries: 10})
	assert.IsType(t, (*MemoryService)(nil), svc)
}

func TestSelectFallsBackWhenBackendsUnreachable(t *testing.T) {
	svc := Select(&config.Config{
		RedisAddr:       "127.0.0.1:1",
		MemcacheAddr:    "127.0.0.1:1",
		CacheMaxEntries: 10,
	})
	require.IsType(t, (*MemoryService)(nil), svc)

	// the fallback still serves the advisory contract
	require.NoError(t, svc.Set("key", []byte("value"), time.Minute))
	data, ok, err := svc.Get("key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), data)
}
