package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pos-ledger/internal/models"

	"github.com/go-redis/redis/v8"
)

const productKeyPrefix = "product:barcode:"

// Client caches products by barcode for the sale counter's scanner
// lookups. The entity store stays the source of truth; every cache
// miss or failure falls back to it.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis and verifies the connection.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CacheProduct stores one product under its barcode.
func (c *Client) CacheProduct(ctx context.Context, product *models.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, productKeyPrefix+product.Barcode, data, 0).Err()
}

// GetProductByBarcode returns a cached product, or nil on a miss.
func (c *Client) GetProductByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	data, err := c.rdb.Get(ctx, productKeyPrefix+barcode).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, fmt.Errorf("corrupt cached product: %w", err)
	}
	return &product, nil
}

// SyncProducts replaces the cached product set with the given one.
func (c *Client) SyncProducts(ctx context.Context, products []models.Product) error {
	pipe := c.rdb.Pipeline()
	for i := range products {
		data, err := json.Marshal(&products[i])
		if err != nil {
			return err
		}
		pipe.Set(ctx, productKeyPrefix+products[i].Barcode, data, 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}
