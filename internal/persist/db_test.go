package persist

import (
	"testing"
	"time"

	"github.com/aimloc/server/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig(config.DatabaseConfig{
		DSN:             "postgres://aimloc@db:5432/aim",
		ApplicationName: "aimloc-test",
		MaxOpenConns:    6,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, "aimloc-test", cfg.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, int32(6), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, time.Minute, cfg.MaxConnLifetime)
	assert.Equal(t, "db", cfg.ConnConfig.Host)

	// idle above the cap is ignored rather than rejected by the pool
	cfg, err = poolConfig(config.DatabaseConfig{DSN: "postgres://db/aim", MaxOpenConns: 2, MaxIdleConns: 5})
	require.NoError(t, err)
	assert.Zero(t, cfg.MinConns)

	_, err = poolConfig(config.DatabaseConfig{DSN: "postgres://db:notaport/aim"})
	assert.ErrorContains(t, err, "parse audit dsn")
}
