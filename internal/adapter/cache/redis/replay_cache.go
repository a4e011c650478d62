// Package redis caches recorded investments by idempotency key so that
// client retries can be answered without touching the ledger.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
	"github.com/rebuildfund/rebuildfund-backend/internal/platform/logger"
)

const keyPrefix = "rebuildfund:idem:"

// Options configures the client
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ReplayCache implements domain.ReplayCache on redis
type ReplayCache struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	ttl time.Duration
}

// NewReplayCache dials redis and checks the connection
func NewReplayCache(ctx context.Context, opts Options, log *logger.Logger) (*ReplayCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("missing redis addr")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewReplayCacheWithClient(rdb, opts.TTL, log), nil
}

// NewReplayCacheWithClient wraps an existing client
func NewReplayCacheWithClient(rdb goredis.UniversalClient, ttl time.Duration, log *logger.Logger) *ReplayCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ReplayCache{
		log: log.With("service", "RedisReplayCache"),
		rdb: rdb,
		ttl: ttl,
	}
}

// Get returns nil, nil on a miss
func (c *ReplayCache) Get(ctx context.Context, investorID uuid.UUID, key string) (*domain.Investment, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(investorID, key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	inv, err := decode(raw)
	if err != nil {
		// a corrupt entry is a miss; the ledger stays authoritative
		c.log.Warn("bad replay cache payload", "investor_id", investorID, "error", err)
		return nil, nil
	}
	return inv, nil
}

// Put stores inv under its investor and key
func (c *ReplayCache) Put(ctx context.Context, inv *domain.Investment) error {
	raw, err := encode(inv)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, cacheKey(inv.InvestorID, inv.IdempotencyKey), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks connectivity for health reporting
func (c *ReplayCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the client
func (c *ReplayCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func cacheKey(investorID uuid.UUID, key string) string {
	return keyPrefix + investorID.String() + ":" + key
}

type record struct {
	ID             uuid.UUID       `json:"id"`
	InvestorID     uuid.UUID       `json:"investor_id"`
	ProjectID      uuid.UUID       `json:"project_id"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	TransactionRef string          `json:"transaction_ref"`
	PaymentMethod  string          `json:"payment_method"`
	IdempotencyKey string          `json:"idempotency_key"`
	RequestHash    string          `json:"request_hash"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func encode(inv *domain.Investment) ([]byte, error) {
	return json.Marshal(record{
		ID:             inv.ID,
		InvestorID:     inv.InvestorID,
		ProjectID:      inv.ProjectID,
		Amount:         inv.Amount,
		Status:         string(inv.Status),
		TransactionRef: inv.TransactionRef,
		PaymentMethod:  inv.PaymentMethod,
		IdempotencyKey: inv.IdempotencyKey,
		RequestHash:    inv.RequestHash,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	})
}

func decode(raw []byte) (*domain.Investment, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	if r.ID == uuid.Nil || r.InvestorID == uuid.Nil {
		return nil, errors.New("replay record missing ids")
	}
	return &domain.Investment{
		ID:             r.ID,
		InvestorID:     r.InvestorID,
		ProjectID:      r.ProjectID,
		Amount:         r.Amount,
		Status:         domain.InvestmentStatus(r.Status),
		TransactionRef: r.TransactionRef,
		PaymentMethod:  r.PaymentMethod,
		IdempotencyKey: r.IdempotencyKey,
		RequestHash:    r.RequestHash,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}
