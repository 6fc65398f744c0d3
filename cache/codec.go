package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// value frame flags
const (
	frameCompressed byte = 1 << 0
	frameEncrypted  byte = 1 << 1
)

// valueCodec serializes values to msgpack and optionally compresses and
// encrypts the payload. A one-byte header records which transforms were
// applied so decode stays self-describing.
type valueCodec struct {
	compress bool
	aead     cipher.AEAD
}

func newValueCodec(cfg *Configuration) (*valueCodec, error) {
	vc := &valueCodec{compress: cfg.Compression}
	if cfg.Encryption {
		keyHex, ok := cfg.Setting("encryption.key")
		if !ok {
			return nil, errors.New("cache: encryption enabled but encryption.key setting is missing")
		}
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, errors.Wrap(err, "cache: invalid encryption.key")
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, errors.Wrap(err, "cache: invalid encryption.key")
		}
		vc.aead, err = cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
	}
	return vc, nil
}

func (vc *valueCodec) encode(val any) ([]byte, error) {
	payload, err := msgpack.Marshal(val)
	if err != nil {
		return nil, errors.Wrap(err, "cache: failed to marshal value")
	}
	var flags byte
	if vc.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		payload = buf.Bytes()
		flags |= frameCompressed
	}
	if vc.aead != nil {
		nonce := make([]byte, vc.aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return nil, err
		}
		payload = vc.aead.Seal(nonce, nonce, payload, nil)
		flags |= frameEncrypted
	}
	return append([]byte{flags}, payload...), nil
}

// decode reverses encode and returns the raw msgpack payload; GetAs
// performs the final unmarshal.
func (vc *valueCodec) decode(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, errors.New("cache: empty value frame")
	}
	flags, payload := frame[0], frame[1:]
	if flags&frameEncrypted != 0 {
		if vc.aead == nil {
			return nil, errors.New("cache: value is encrypted but encryption is not configured")
		}
		ns := vc.aead.NonceSize()
		if len(payload) < ns {
			return nil, errors.New("cache: truncated encrypted value")
		}
		var err error
		payload, err = vc.aead.Open(nil, payload[:ns], payload[ns:], nil)
		if err != nil {
			return nil, errors.Wrap(err, "cache: failed to decrypt value")
		}
	}
	if flags&frameCompressed != 0 {
		zr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, errors.Wrap(err, "cache: failed to decompress value")
		}
		payload, err = io.ReadAll(zr)
		if err != nil {
			return nil, errors.Wrap(err, "cache: failed to decompress value")
		}
		if err := zr.Close(); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// codecCache applies the value codec around a delegate. Keyed operations
// pass through untouched; values are encoded on the way in and decoded to
// msgpack bytes on the way out. Counter operations bypass the codec since
// counters are stored as raw integers at the backend.
type codecCache struct {
	delegate Cache
	codec    *valueCodec
}

var _ Cache = (*codecCache)(nil)

func newCodecCache(delegate Cache, cfg *Configuration) (Cache, error) {
	codec, err := newValueCodec(cfg)
	if err != nil {
		return nil, err
	}
	return &codecCache{delegate: delegate, codec: codec}, nil
}

func (c *codecCache) Put(ctx context.Context, key string, val any, ttl time.Duration) error {
	data, err := c.codec.encode(val)
	if err != nil {
		return err
	}
	return c.delegate.Put(ctx, key, data, ttl)
}

func (c *codecCache) Get(ctx context.Context, key string) (bool, any, error) {
	found, val, err := c.delegate.Get(ctx, key)
	if !found || err != nil {
		return found, nil, err
	}
	frame, ok := val.([]byte)
	if !ok {
		return false, nil, errors.Newf("cache: expected encoded value, got %T", val)
	}
	payload, err := c.codec.decode(frame)
	if err != nil {
		return false, nil, err
	}
	return true, payload, nil
}

func (c *codecCache) Remove(ctx context.Context, key string) (bool, error) {
	return c.delegate.Remove(ctx, key)
}

func (c *codecCache) Clear(ctx context.Context) error {
	return c.delegate.Clear(ctx)
}

func (c *codecCache) Contains(ctx context.Context, key string) (bool, error) {
	return c.delegate.Contains(ctx, key)
}

func (c *codecCache) PutAll(ctx context.Context, entries map[string]any, ttl time.Duration) error {
	encoded := make(map[string]any, len(entries))
	for k, v := range entries {
		data, err := c.codec.encode(v)
		if err != nil {
			return err
		}
		encoded[k] = data
	}
	return c.delegate.PutAll(ctx, encoded, ttl)
}

func (c *codecCache) GetAll(ctx context.Context, keys []string) (map[string]any, error) {
	found, err := c.delegate.GetAll(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(found))
	for k, v := range found {
		frame, ok := v.([]byte)
		if !ok {
			return nil, errors.Newf("cache: expected encoded value, got %T", v)
		}
		payload, err := c.codec.decode(frame)
		if err != nil {
			return nil, err
		}
		out[k] = payload
	}
	return out, nil
}

func (c *codecCache) PutIfAbsent(ctx context.Context, key string, val any, ttl time.Duration) (bool, error) {
	data, err := c.codec.encode(val)
	if err != nil {
		return false, err
	}
	return c.delegate.PutIfAbsent(ctx, key, data, ttl)
}

func (c *codecCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return c.delegate.Increment(ctx, key, delta)
}

func (c *codecCache) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	return c.delegate.Decrement(ctx, key, delta)
}

func (c *codecCache) Statistics(ctx context.Context) (*Statistics, error) {
	return c.delegate.Statistics(ctx)
}

func (c *codecCache) Close(ctx context.Context) error {
	return c.delegate.Close(ctx)
}
