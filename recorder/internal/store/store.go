// Package store is the recorder's key-value storage port. Values are JSON
// documents addressed by (scope, key); the module context maps module-local
// keys to the module's scope and global keys to the empty scope.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("store: not found")

// GlobalScope is the scope shared by every module.
const GlobalScope = ""

// UpdateFunc receives the current value (ok is false when absent) and
// returns the value to write.
type UpdateFunc func(old []byte, ok bool) ([]byte, error)

// Store persists raw values. Implementations must be safe for concurrent
// use and Update must be atomic with respect to other writers.
type Store interface {
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Set(ctx context.Context, scope, key string, value []byte) error
	Update(ctx context.Context, scope, key string, fn UpdateFunc) error
}

// Context binds a Store to a module name.
type Context struct {
	Module string
	store  Store
}

// NewContext returns the storage context for module.
func NewContext(module string, s Store) *Context {
	return &Context{Module: module, store: s}
}

func (c *Context) scope(global bool) string {
	if global {
		return GlobalScope
	}
	return c.Module
}

// SetStorage JSON-encodes value and writes it under key.
func (c *Context) SetStorage(ctx context.Context, key string, value any, global bool) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	if err := c.store.Set(ctx, c.scope(global), key, data); err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

// GetVariable reads key into a T. When the key is absent it returns def,
// writing def first when create is set.
func GetVariable[T any](ctx context.Context, c *Context, key string, def T, create, global bool) (T, error) {
	data, err := c.store.Get(ctx, c.scope(global), key)
	if errors.Is(err, ErrNotFound) {
		if create {
			if err := c.SetStorage(ctx, key, def, global); err != nil {
				return def, err
			}
		}
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("store: get %s: %w", key, err)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return def, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return v, nil
}

// UpdateVariable atomically replaces the T stored under key with fn's
// result. fn receives def when the key is absent.
func UpdateVariable[T any](ctx context.Context, c *Context, key string, def T, global bool, fn func(T) (T, error)) error {
	err := c.store.Update(ctx, c.scope(global), key, func(old []byte, ok bool) ([]byte, error) {
		cur := def
		if ok {
			var v T
			if err := json.Unmarshal(old, &v); err != nil {
				return nil, fmt.Errorf("decode: %w", err)
			}
			cur = v
		}
		next, err := fn(cur)
		if err != nil {
			return nil, err
		}
		return json.Marshal(next)
	})
	if err != nil {
		return fmt.Errorf("store: update %s: %w", key, err)
	}
	return nil
}
