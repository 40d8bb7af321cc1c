package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetJSON reads (namespace, key) and unmarshals it into dst. ok is false
// (and dst untouched) if the key is absent.
func GetJSON(ctx context.Context, kv KV, namespace, key string, dst any) (ok bool, err error) {
	raw, ok, err := kv.Get(ctx, namespace, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("storage: decode %s/%s: %w", namespace, key, err)
	}
	return true, nil
}

// PutJSON marshals v and writes it to (namespace, key).
func PutJSON(ctx context.Context, kv KV, namespace, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s/%s: %w", namespace, key, err)
	}
	return kv.Put(ctx, namespace, key, raw)
}
