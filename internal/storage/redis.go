package storage

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Host             string        `mapstructure:"host" json:"host"`
	Port             int           `mapstructure:"port" json:"port"`
	Password         string        `mapstructure:"password" json:"-"`
	DB               int           `mapstructure:"db" json:"db"`
	PoolSize         int           `mapstructure:"pool_size" json:"pool_size"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" json:"operation_timeout"`
}

func (c RedisConfig) GetRedisAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type Redis struct {
	Client redis.UniversalClient
}

// Connects and pings. The client is shared by every request.
func NewRedis(ctx context.Context, addr, password string, db, poolSize int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	r := &Redis{Client: client}
	if err := r.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, errors.WithMessagef(err, "connect to redis at %s", addr)
	}

	return r, nil
}

func NewRedisFromClient(client redis.UniversalClient) *Redis {
	return &Redis{Client: client}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
