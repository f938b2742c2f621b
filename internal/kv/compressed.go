package kv

import (
	"context"
	"fmt"

	"github.com/emrgen/mediakit/internal/compress"
)

var _ Store = (*Compressed)(nil)

// Compressed encodes values with a codec before handing them to the
// underlying store.
type Compressed struct {
	store Store
	codec compress.Compress
}

func NewCompressed(store Store, codec compress.Compress) *Compressed {
	return &Compressed{store: store, codec: codec}
}

func (c *Compressed) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	value, err := c.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}

	return value, nil
}

func (c *Compressed) Put(ctx context.Context, key string, value []byte) error {
	data, err := c.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	return c.store.Put(ctx, key, data)
}

func (c *Compressed) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}
