package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/metrics"
)

func TestRedisConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *RedisConfig
		wantErr bool
	}{
		{name: "defaults applied", cfg: &RedisConfig{Addr: "localhost:6379"}},
		{name: "custom values", cfg: &RedisConfig{Name: "probe", Addr: "10.0.0.5:6379", Password: "x", DB: 1, MaxRetries: -1}},
		{name: "empty address", cfg: &RedisConfig{}, wantErr: true},
		{name: "negative db", cfg: &RedisConfig{Addr: "localhost:6379", DB: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, tt.cfg.Name)
			assert.Greater(t, tt.cfg.PoolSize, 0)
			assert.NotZero(t, tt.cfg.MaxRetries)
			assert.Greater(t, tt.cfg.ConnectTimeout, time.Duration(0))
		})
	}
}

func TestEtcdConfigValidation(t *testing.T) {
	cfg := &EtcdConfig{Endpoints: []string{"localhost:2379"}}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 10*time.Second, cfg.KeepAliveTime)

	err := (&EtcdConfig{}).validate()
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := NewRedis(nil)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewEtcd(nil)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestRedisConnectUnreachable(t *testing.T) {
	// 端口 1 在测试环境中不会有 Redis 监听
	conn, err := NewRedis(&RedisConfig{
		Name:           "unreachable",
		Addr:           "127.0.0.1:1",
		MaxRetries:     -1,
		DialTimeout:    200 * time.Millisecond,
		ConnectTimeout: 500 * time.Millisecond,
	}, WithLogger(clog.Discard()), WithMeter(metrics.Discard()))
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "unreachable", conn.Name())
	assert.False(t, conn.IsHealthy())

	err = conn.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.False(t, conn.IsHealthy())

	err = conn.HealthCheck(context.Background())
	assert.ErrorIs(t, err, ErrHealthCheck)
}

func TestRedisCloseIdempotent(t *testing.T) {
	conn, err := NewRedis(&RedisConfig{Addr: "127.0.0.1:1"})
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsHealthy())

	err = conn.Connect(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEtcdCloseWithoutConnect(t *testing.T) {
	conn, err := NewEtcd(&EtcdConfig{Endpoints: []string{"127.0.0.1:1"}})
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Connect(context.Background()), ErrClosed)
}

func TestWithLoggerNilIgnored(t *testing.T) {
	o := applyOptions([]Option{WithLogger(nil)})
	assert.NotNil(t, o.logger)
	assert.NotNil(t, o.meter)
}
