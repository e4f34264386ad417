package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/shopfloor/moldtrack/internal/config"
)

const (
	keyRecordingMold   = "recording:mold:%s"
	keyRecordingGlobal = "recording:global"
)

// RecordingLimiter throttles the production recording endpoint, per mold
// and fleet-wide. A nil limiter (rate limiting disabled) allows everything.
type RecordingLimiter struct {
	enabled bool

	bucket *TokenBucket

	moldRate    float64
	moldBurst   int
	globalRate  float64
	globalBurst int
}

func NewRecordingLimiter(cfg config.Config) (*RecordingLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.MoldRate <= 0 || limitCfg.MoldBurst <= 0 {
		return nil, errors.New("mold rate limit must be positive")
	}
	if limitCfg.GlobalRate <= 0 || limitCfg.GlobalBurst <= 0 {
		return nil, errors.New("global rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &RecordingLimiter{
		enabled:     true,
		bucket:      NewTokenBucket(client),
		moldRate:    limitCfg.MoldRate,
		moldBurst:   limitCfg.MoldBurst,
		globalRate:  limitCfg.GlobalRate,
		globalBurst: limitCfg.GlobalBurst,
	}, nil
}

func (l *RecordingLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *RecordingLimiter) AllowMold(ctx context.Context, moldID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyRecordingMold, strings.TrimSpace(moldID)), l.moldRate, l.moldBurst)
}

func (l *RecordingLimiter) AllowGlobal(ctx context.Context) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, keyRecordingGlobal, l.globalRate, l.globalBurst)
}
