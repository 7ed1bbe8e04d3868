package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/util"

	"go.uber.org/zap"
)

// ErrNotFound is returned by a KV backend when a key was never written
var ErrNotFound = errors.New("key not found")

// Well-known storage keys
const (
	KeyCart  = "cart"
	KeyUser  = "user"
	KeyToken = "token"
)

// FormatVersion is the envelope version written by Save. Envelopes carrying
// another version are treated as absent by Load.
const FormatVersion = 1

// KV is a durable byte-oriented key-value backend
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Persistent serializes typed values into a KV backend
type Persistent struct {
	kv     KV
	logger *zap.Logger
}

// NewPersistent wraps a KV backend
func NewPersistent(kv KV) *Persistent {
	return &Persistent{
		kv:     kv,
		logger: util.GetLogger(),
	}
}

// Save serializes v and durably writes it under key
func (p *Persistent) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	raw, err := json.Marshal(envelope{Version: FormatVersion, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", key, err)
	}

	if err := p.kv.Put(ctx, key, raw); err != nil {
		util.PersistFailedTotal.WithLabelValues(key).Inc()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Load decodes the last value saved under key into v. It reports false when
// the key was never written, cannot be read, or holds data that does not
// parse; callers treat all of these as absent.
func (p *Persistent) Load(ctx context.Context, key string, v any) bool {
	raw, err := p.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		p.logger.Warn("Failed to read persisted value", zap.String("key", key), zap.Error(err))
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		p.logger.Warn("Discarding corrupt persisted value", zap.String("key", key), zap.Error(err))
		return false
	}
	if env.Version != FormatVersion || len(env.Data) == 0 {
		p.logger.Warn("Discarding persisted value with unknown format",
			zap.String("key", key),
			zap.Int("version", env.Version))
		return false
	}

	if err := json.Unmarshal(env.Data, v); err != nil {
		p.logger.Warn("Discarding corrupt persisted value", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Remove deletes the given keys
func (p *Persistent) Remove(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := p.kv.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes the underlying backend
func (p *Persistent) Close() error {
	return p.kv.Close()
}
