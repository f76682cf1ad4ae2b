package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormChecker struct {
	db *gorm.DB
}

func NewGormChecker(db *gorm.DB) Checker { return &gormChecker{db: db} }

func (c *gormChecker) Name() string { return "database" }

func (c *gormChecker) Check(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

type redisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) Checker { return &redisChecker{client: client} }

func (c *redisChecker) Name() string { return "redis" }

func (c *redisChecker) Check(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
