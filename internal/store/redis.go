package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lotteryplus/internal/models"

	"github.com/redis/go-redis/v9"
)

const statusSnapshotKey = "lottery:status"

type RedisStore struct {
	Client *redis.Client
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client}
}

func (s *RedisStore) Close() error {
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

func invoiceKey(invoiceID string) string {
	return fmt.Sprintf("pending_invoice:%s", invoiceID)
}

// StorePendingInvoice caches a reservation's pending payment so the payment
// provider's invoice lifetime is visible without a DB round trip. The ledger
// in Postgres stays authoritative; expiry here reclaims nothing.
func (s *RedisStore) StorePendingInvoice(ctx context.Context, payment *models.Payment, ttl time.Duration) error {
	paymentJSON, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("failed to marshal pending payment: %w", err)
	}

	if err := s.Client.Set(ctx, invoiceKey(payment.InvoiceID), paymentJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set pending invoice in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) GetPendingInvoice(ctx context.Context, invoiceID string) (*models.Payment, error) {
	val, err := s.Client.Get(ctx, invoiceKey(invoiceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending invoice from redis: %w", err)
	}

	var payment models.Payment
	if err := json.Unmarshal([]byte(val), &payment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending payment from redis: %w", err)
	}
	return &payment, nil
}

func (s *RedisStore) DeletePendingInvoice(ctx context.Context, invoiceID string) error {
	err := s.Client.Del(ctx, invoiceKey(invoiceID)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to delete pending invoice from redis: %w", err)
	}
	return nil
}

func (s *RedisStore) StoreStatusSnapshot(ctx context.Context, snapshot []byte, ttl time.Duration) error {
	if err := s.Client.Set(ctx, statusSnapshotKey, snapshot, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set status snapshot in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) GetStatusSnapshot(ctx context.Context) ([]byte, error) {
	val, err := s.Client.Get(ctx, statusSnapshotKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get status snapshot from redis: %w", err)
	}
	return val, nil
}

func (s *RedisStore) DeleteStatusSnapshot(ctx context.Context) error {
	err := s.Client.Del(ctx, statusSnapshotKey).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete status snapshot from redis: %w", err)
	}
	return nil
}
