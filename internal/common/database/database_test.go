package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takeymahesh06/silaiwala/internal/common/config"
)

type countingLogger struct{ warns int }

func (l *countingLogger) Warn(string, map[string]interface{}) { l.warns++ }

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		log := &countingLogger{}
		calls := 0
		err := RetryWithBackoff(func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, 5, time.Millisecond, log, "redis ping")

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, log.warns)
	})

	t.Run("gives up and wraps the last error", func(t *testing.T) {
		sentinel := errors.New("no route to host")
		err := RetryWithBackoff(func() error { return sentinel }, 3, time.Millisecond, &countingLogger{}, "postgres ping")

		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel)
		assert.Contains(t, err.Error(), "postgres ping failed after 3 attempts")
	})
}

func TestRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	c := NewRedis(config.RedisConfig{Address: mr.Addr()})
	defer c.Close()
	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestPostgresClient_PingAndClose(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectClose()

	c := &PostgresClient{DB: db}
	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgres_DoesNotDial(t *testing.T) {
	c, err := NewPostgres(config.PostgresConfig{
		Host: "127.0.0.1", Port: 1, User: "u", Database: "d", SSLMode: "disable",
		MaxConnections: 2, MaxIdle: 1,
	})
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}
