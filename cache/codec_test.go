package cache

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vmihailenco/msgpack/v5"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestCodecPlain(t *testing.T) {
	vc, err := newValueCodec(&Configuration{})
	assert.NoError(t, err)

	frame, err := vc.encode("hello")
	assert.NoError(t, err)
	assert.Equal(t, byte(0), frame[0])

	payload, err := vc.decode(frame)
	assert.NoError(t, err)

	var s string
	assert.NoError(t, msgpack.Unmarshal(payload, &s))
	assert.Equal(t, "hello", s)
}

func TestCodecCompression(t *testing.T) {
	vc, err := newValueCodec(&Configuration{Compression: true})
	assert.NoError(t, err)

	long := bytes.Repeat([]byte("abcdef"), 1000)
	frame, err := vc.encode(string(long))
	assert.NoError(t, err)
	assert.Equal(t, frameCompressed, frame[0]&frameCompressed)
	assert.Less(t, len(frame), len(long))

	payload, err := vc.decode(frame)
	assert.NoError(t, err)

	var s string
	assert.NoError(t, msgpack.Unmarshal(payload, &s))
	assert.Equal(t, string(long), s)
}

func TestCodecEncryption(t *testing.T) {
	cfg := &Configuration{
		Encryption: true,
		Settings:   map[string]string{"encryption.key": testKeyHex},
	}
	vc, err := newValueCodec(cfg)
	assert.NoError(t, err)

	frame, err := vc.encode("secret")
	assert.NoError(t, err)
	assert.Equal(t, frameEncrypted, frame[0]&frameEncrypted)
	assert.NotContains(t, string(frame), "secret")

	payload, err := vc.decode(frame)
	assert.NoError(t, err)

	var s string
	assert.NoError(t, msgpack.Unmarshal(payload, &s))
	assert.Equal(t, "secret", s)
}

func TestCodecCompressionAndEncryption(t *testing.T) {
	cfg := &Configuration{
		Compression: true,
		Encryption:  true,
		Settings:    map[string]string{"encryption.key": testKeyHex},
	}
	vc, err := newValueCodec(cfg)
	assert.NoError(t, err)

	frame, err := vc.encode("payload")
	assert.NoError(t, err)
	assert.Equal(t, frameCompressed|frameEncrypted, frame[0])

	payload, err := vc.decode(frame)
	assert.NoError(t, err)

	var s string
	assert.NoError(t, msgpack.Unmarshal(payload, &s))
	assert.Equal(t, "payload", s)
}

func TestCodecWrongKey(t *testing.T) {
	enc, err := newValueCodec(&Configuration{
		Encryption: true,
		Settings:   map[string]string{"encryption.key": testKeyHex},
	})
	assert.NoError(t, err)
	frame, err := enc.encode("secret")
	assert.NoError(t, err)

	dec, err := newValueCodec(&Configuration{
		Encryption: true,
		Settings:   map[string]string{"encryption.key": "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"},
	})
	assert.NoError(t, err)

	_, err = dec.decode(frame)
	assert.Error(t, err)
}

func TestCodecInvalidKey(t *testing.T) {
	_, err := newValueCodec(&Configuration{
		Encryption: true,
		Settings:   map[string]string{"encryption.key": "not-hex"},
	})
	assert.Error(t, err)

	// Wrong length for AES.
	_, err = newValueCodec(&Configuration{
		Encryption: true,
		Settings:   map[string]string{"encryption.key": "0001"},
	})
	assert.Error(t, err)

	// Missing entirely.
	_, err = newValueCodec(&Configuration{Encryption: true, Settings: map[string]string{}})
	assert.Error(t, err)
}

func TestCodecDecodeMalformed(t *testing.T) {
	vc, err := newValueCodec(&Configuration{})
	assert.NoError(t, err)

	_, err = vc.decode(nil)
	assert.Error(t, err)

	// Encrypted flag without encryption configured.
	_, err = vc.decode([]byte{frameEncrypted, 0x01})
	assert.Error(t, err)

	// Compressed flag over garbage.
	_, err = vc.decode([]byte{frameCompressed, 0x01, 0x02})
	assert.Error(t, err)
}

func TestCodecCacheCountersBypass(t *testing.T) {
	ctx := context.Background()
	backend := newFakeCache()
	c, err := newCodecCache(backend, &Configuration{Compression: true})
	assert.NoError(t, err)

	n, err := c.Increment(ctx, "counter", 5)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// The backend holds a raw integer, not an encoded frame.
	found, val, err := backend.Get(ctx, "counter")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(5), val)
}

func TestCodecCacheGetAs(t *testing.T) {
	ctx := context.Background()
	c, err := newCodecCache(newFakeCache(), &Configuration{Compression: true})
	assert.NoError(t, err)

	type payload struct {
		Name  string `msgpack:"name"`
		Count int    `msgpack:"count"`
	}
	in := payload{Name: "widget", Count: 3}
	assert.NoError(t, c.Put(ctx, "key", in, 0))

	found, out, err := GetAs[payload](ctx, c, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}
