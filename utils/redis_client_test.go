package utils

import (
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisHealthCheck(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")
	require.NoError(t, RedisHealthCheck(db))

	mock.ExpectPing().SetErr(errors.New("connection refused"))
	err := RedisHealthCheck(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")

	assert.NoError(t, mock.ExpectationsWereMet())
}
