package redis_client

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PoolSize scales with the CPU count, capped at 256.
func PoolSize() int {
	n := runtime.NumCPU() * 4
	if n > 256 {
		n = 256
	}
	return n
}

// NewRedisClient dials host:port and fails unless the server answers PING.
func NewRedisClient(ctx context.Context, host string, port int) (*redis.Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	rc := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: PoolSize(),
		// syncmsg blocks on XREAD for a few seconds
		ReadTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		err = fmt.Errorf("redis %s: %w", addr, err)
		zap.L().Error("redis_connect", zap.Error(err))
		return nil, err
	}
	zap.L().Debug("redis_connected", zap.String("addr", addr))
	return rc, nil
}
