package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/ordermanagement/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCache_ReturnsClosableClient(t *testing.T) {
	mr := miniredis.RunT(t)

	c, client := openCache(context.Background(), &Config{RedisAddr: mr.Addr()})
	require.NotNil(t, client)
	assert.IsType(t, &cache.RedisCache{}, c)

	require.NoError(t, client.Close())
	assert.Error(t, client.Ping(context.Background()).Err(), "client is closed on shutdown")
}

func TestOpenCache_FallsBackToNoop(t *testing.T) {
	c, client := openCache(context.Background(), &Config{})
	assert.Nil(t, client)
	assert.Equal(t, cache.NoopCache{}, c)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c, client = openCache(context.Background(), &Config{RedisAddr: addr})
	assert.Nil(t, client)
	assert.Equal(t, cache.NoopCache{}, c)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)

	t.Setenv("STORE", "sqlite")
	_, err = loadConfig()
	assert.Error(t, err)
}
