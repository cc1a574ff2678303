package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// Loader computes the value for a key when a read-through lookup misses or
// the cache cannot be used.
type Loader func(ctx context.Context) (any, error)

// Cache is a named key-value cache.
//
// Contract:
//   - A nil *ValueWrapper means "absent". A present entry may hold a null
//     value, which is distinct from a miss.
//   - Implementations backed by a remote store may return an error from any
//     operation except Name and NativeCache.
//   - GetOrLoad reports a loader failure as *ValueRetrievalError so callers
//     can tell it apart from a store failure.
type Cache interface {
	// Name returns the cache name.
	Name() string

	// NativeCache returns the underlying store handle.
	NativeCache() any

	// Get returns the entry for key, or nil on miss.
	Get(ctx context.Context, key string) (*ValueWrapper, error)

	// GetTyped decodes the entry for key into dst, a non-nil pointer.
	// It returns false on miss.
	GetTyped(ctx context.Context, key string, dst any) (bool, error)

	// GetOrLoad returns the entry for key, computing and storing it with
	// loader on miss.
	GetOrLoad(ctx context.Context, key string, loader Loader) (*ValueWrapper, error)

	// Put stores value under key, replacing any existing entry.
	Put(ctx context.Context, key string, value any) error

	// PutIfAbsent stores value only if key has no entry. It returns the
	// existing entry when there was one, nil otherwise.
	PutIfAbsent(ctx context.Context, key string, value any) (*ValueWrapper, error)

	// Evict removes the entry for key. Idempotent.
	Evict(ctx context.Context, key string) error

	// Clear removes every entry of this cache.
	Clear(ctx context.Context) error
}

// Manager looks up or creates named caches.
type Manager interface {
	// GetCache returns the cache called name. The second result is false
	// when the manager has no such cache and will not create one.
	GetCache(name string) (Cache, bool)

	// CacheNames lists the caches the manager knows about.
	CacheNames(ctx context.Context) ([]string, error)
}

// Codec turns values into bytes and back.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec encodes values as JSON.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

var defaultCodec Codec = JSONCodec{}

// ValueWrapper holds a cached value. It carries either the encoded bytes
// read from a store or a live value produced by a Loader.
type ValueWrapper struct {
	raw   []byte
	value any
	live  bool
	codec Codec
}

// NewRawValue wraps encoded bytes read from a store.
func NewRawValue(raw []byte, codec Codec) *ValueWrapper {
	if codec == nil {
		codec = defaultCodec
	}
	return &ValueWrapper{raw: raw, codec: codec}
}

// NewValue wraps a live value.
func NewValue(v any, codec Codec) *ValueWrapper {
	if codec == nil {
		codec = defaultCodec
	}
	return &ValueWrapper{value: v, live: true, codec: codec}
}

// Bytes returns the encoded form of the value.
func (w *ValueWrapper) Bytes() ([]byte, error) {
	if !w.live {
		return w.raw, nil
	}
	return w.codec.Marshal(w.value)
}

// Decode stores the value in dst, which must be a non-nil pointer. Live
// values assignable to *dst are assigned directly; anything else goes
// through the codec.
func (w *ValueWrapper) Decode(dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("cache: decode target must be a non-nil pointer, got %T", dst)
	}

	if !w.live {
		return w.codec.Unmarshal(w.raw, dst)
	}

	elem := rv.Elem()
	if w.value == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}

	vv := reflect.ValueOf(w.value)
	if vv.Type().AssignableTo(elem.Type()) {
		elem.Set(vv)
		return nil
	}

	data, err := w.codec.Marshal(w.value)
	if err != nil {
		return err
	}
	return w.codec.Unmarshal(data, dst)
}

// IsNull reports whether the wrapper holds a null value.
func (w *ValueWrapper) IsNull() bool {
	if w.live {
		if w.value == nil {
			return true
		}
		rv := reflect.ValueOf(w.value)
		switch rv.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
			return rv.IsNil()
		}
		return false
	}
	return len(w.raw) == 0 || string(w.raw) == "null"
}

// ErrNilLoader is returned by GetOrLoad when no loader is supplied.
var ErrNilLoader = errors.New("cache: loader is nil")
