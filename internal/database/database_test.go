package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestOpenGormSQLite(t *testing.T) {
	db, err := OpenGorm(DialectSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), zerolog.Nop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestOpenGormRejectsUnknownDialect(t *testing.T) {
	_, err := OpenGorm("mysql", "dsn", zerolog.Nop())
	require.ErrorContains(t, err, "unsupported gorm dialect")

	_, err = OpenGorm(DialectPostgres, "", zerolog.Nop())
	require.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	mini := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), "redis://"+mini.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mini.Close()
	_, err = ConnectRedis(context.Background(), "redis://"+mini.Addr()+"/0")
	require.Error(t, err)
}
