package sysconfig

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	cacheKey = "system_config"
	cacheTTL = 15 * time.Second
)

// Service serves the runtime config, fronting Postgres with a short
// Redis cache. The config is read on every reserve, so a stale window
// of cacheTTL is the accepted trade for not hammering the row.
// A nil redis client disables caching entirely.
type Service struct {
	repo *Repository
	rdb  *redis.Client
}

func NewService(repo *Repository, rdb *redis.Client) *Service {
	return &Service{repo: repo, rdb: rdb}
}

func (s *Service) Get(ctx context.Context) (*Config, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var cfg Config
			if err := json.Unmarshal(raw, &cfg); err == nil {
				return &cfg, nil
			}
			// Corrupt cache entry; fall through to the database.
		}
	}

	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		raw, err := json.Marshal(cfg)
		if err == nil {
			if err := s.rdb.Set(ctx, cacheKey, raw, cacheTTL).Err(); err != nil {
				log.Warn().Err(err).Msg("Failed to cache system config")
			}
		}
	}

	return cfg, nil
}

// Update writes the config and drops the cache so admin changes take
// effect on the next read.
func (s *Service) Update(ctx context.Context, cfg *Config) error {
	if err := s.repo.Update(ctx, cfg); err != nil {
		return err
	}

	if s.rdb != nil {
		if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate system config cache")
		}
	}

	return nil
}
