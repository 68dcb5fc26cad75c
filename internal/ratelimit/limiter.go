package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/verdantgrid/h2ledger/internal/config"
)

const keyMutation = "credits:mutation:%s"

// MutationLimiter throttles mutating ledger calls per actor. It is nil
// (and pass-through) when no redis address is configured.
type MutationLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewMutationLimiter(cfg config.Config) (*MutationLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled() {
		return nil, nil
	}

	if limitCfg.MutationRate <= 0 || limitCfg.MutationBurst <= 0 {
		return nil, fmt.Errorf("mutation rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     limitCfg.RedisAddr,
		Password: limitCfg.RedisPassword,
		DB:       limitCfg.RedisDB,
	})

	return &MutationLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.MutationRate,
		burst:   limitCfg.MutationBurst,
	}, nil
}

func (l *MutationLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *MutationLimiter) Allow(ctx context.Context, actor string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyMutation, strings.TrimSpace(actor)), l.rate, l.burst)
}
