package health

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
)

// Service encapsulates health-related checks.
type Service struct {
	DB    *sql.DB
	Redis *redis.Client
}

// NewService constructs a new health service. Either dependency may be nil
// when the deployment runs without it.
func NewService(db *sql.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, Redis: rdb}
}

// Status reports overall liveness plus per-dependency reachability.
func (s *Service) Status() map[string]any {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := map[string]any{"ok": true}
	if s.DB != nil {
		status["database"] = s.DB.PingContext(ctx) == nil
	}
	if s.Redis != nil {
		status["redis"] = s.Redis.Ping(ctx).Err() == nil
	}
	return status
}
