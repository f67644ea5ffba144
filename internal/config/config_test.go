package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("WORKER_COUNT", "")
	t.Setenv("SEED_CATALOG", "")

	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.False(t, cfg.SeedCatalog)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("SEED_CATALOG", "true")
	t.Setenv("WORKER_COUNT", "-3")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.SeedCatalog)
	assert.Equal(t, 4, cfg.WorkerCount)
}
