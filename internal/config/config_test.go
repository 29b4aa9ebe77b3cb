package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("SCHEDULE_TIMEZONE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.Schedule.HorizonMonths)
	assert.Equal(t, time.UTC, cfg.Schedule.Location)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("LOCK_DRIVER", "memory")
	t.Setenv("SCHEDULE_TIMEZONE", "Africa/Lagos")
	t.Setenv("HORIZON_MONTHS", "6")
	t.Setenv("HORIZON_SWEEP_INTERVAL", "90")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "Africa/Lagos", cfg.Schedule.Location.String())
	assert.Equal(t, 6, cfg.Schedule.HorizonMonths)
	assert.Equal(t, 90*time.Second, cfg.Schedule.SweepInterval)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"SCHEDULE_TIMEZONE": "Nowhere/City",
		"HORIZON_MONTHS":    "0",
		"STORAGE_DRIVER":    "sqlite",
		"LOCK_DRIVER":       "etcd",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestProductionRequiresJWTSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	_, err = Load()
	require.NoError(t, err)
}
