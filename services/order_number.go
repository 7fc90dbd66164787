package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crm-backend/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const orderNumberPrefix = "ORD"

// OrderPeriod is the part of the order number that resets the sequence.
func OrderPeriod(t time.Time) string {
	return t.Format("2006")
}

func FormatOrderNumber(period string, seq int) string {
	return fmt.Sprintf("%s%04d", periodPrefix(period), seq)
}

func periodPrefix(period string) string {
	return orderNumberPrefix + "-" + period + "-"
}

// ParseOrderSequence extracts the numeric suffix of an order number.
func ParseOrderSequence(number string) (int, bool) {
	idx := strings.LastIndexByte(number, '-')
	if idx < 0 || idx == len(number)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(number[idx+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// OrderSequencer hands out the next sequence number within a period. The
// number is a candidate only: callers insert under a unique index and retry
// on collision.
type OrderSequencer interface {
	Next(ctx context.Context, tx *gorm.DB, period string) (int, error)
}

// LastNumberSequencer continues from the most recent order of the period.
type LastNumberSequencer struct{}

func (LastNumberSequencer) Next(ctx context.Context, tx *gorm.DB, period string) (int, error) {
	last, err := lastSequence(ctx, tx, period)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// lastSequence looks at soft-deleted orders too, their numbers still hold the
// unique index.
func lastSequence(ctx context.Context, tx *gorm.DB, period string) (int, error) {
	var last models.Order
	err := tx.WithContext(ctx).Unscoped().
		Select("id", "order_number").
		Where("order_number LIKE ?", periodPrefix(period)+"%").
		Order("id DESC").
		Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read last order number: %w", err)
	}
	seq, ok := ParseOrderSequence(last.OrderNumber)
	if !ok {
		return 0, fmt.Errorf("malformed order number %q", last.OrderNumber)
	}
	return seq, nil
}

// RedisSequencer keeps one INCR counter per period. A missing counter is
// seeded from the database so it never restarts below persisted numbers.
type RedisSequencer struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisSequencer(client *redis.Client) *RedisSequencer {
	return &RedisSequencer{
		client:    client,
		keyPrefix: "crm:order_seq:",
		ttl:       400 * 24 * time.Hour,
	}
}

func (s *RedisSequencer) key(period string) string {
	return s.keyPrefix + period
}

func (s *RedisSequencer) Next(ctx context.Context, tx *gorm.DB, period string) (int, error) {
	key := s.key(period)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("check order sequence: %w", err)
	}
	if exists == 0 {
		last, err := lastSequence(ctx, tx, period)
		if err != nil {
			return 0, err
		}
		if err := s.client.SetNX(ctx, key, last, s.ttl).Err(); err != nil {
			return 0, fmt.Errorf("seed order sequence: %w", err)
		}
	}

	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment order sequence: %w", err)
	}
	return int(n), nil
}
