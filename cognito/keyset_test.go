package cognito

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWK_RSAPublicKey(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)

	t.Run("round trips modulus and exponent", func(t *testing.T) {
		key, err := toJWK(publicKey, "kid").RSAPublicKey()
		require.NoError(t, err)
		assert.Equal(t, 0, publicKey.N.Cmp(key.N))
		assert.Equal(t, publicKey.E, key.E)
	})

	t.Run("rejects non-RSA key types", func(t *testing.T) {
		jwk := toJWK(publicKey, "kid")
		jwk.Kty = "EC"
		_, err := jwk.RSAPublicKey()
		assert.Error(t, err)
	})

	t.Run("accepts a zero padded four byte exponent", func(t *testing.T) {
		jwk := toJWK(publicKey, "kid")
		jwk.E = "AAEAAQ"
		key, err := jwk.RSAPublicKey()
		require.NoError(t, err)
		assert.Equal(t, 65537, key.E)
	})

	t.Run("rejects an exponent wider than four bytes", func(t *testing.T) {
		jwk := toJWK(publicKey, "kid")
		jwk.E = "AQAAAAE"
		_, err := jwk.RSAPublicKey()
		assert.ErrorContains(t, err, "exponent too large")
	})

	t.Run("rejects bad encoding", func(t *testing.T) {
		jwk := toJWK(publicKey, "kid")
		jwk.N = "!!!"
		_, err := jwk.RSAPublicKey()
		assert.Error(t, err)
	})
}

func TestKeySetCache_Get(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)
	server := newJWKSServer(t, toJWK(publicKey, "a"), toJWK(publicKey, "b"))
	cache := NewKeySetCache(server.URL, time.Second)

	first, err := cache.Get(context.Background())
	require.NoError(t, err)

	ids := first.KeyIDs()
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "b"}, ids)
	_, ok := first.Lookup("a")
	assert.True(t, ok)

	second, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, first == second)
	assert.Equal(t, int64(1), server.hits.Load())
}

func TestKeySetCache_InvalidateAndRefresh(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)
	server := newJWKSServer(t, toJWK(publicKey, "a"))
	cache := NewKeySetCache(server.URL, time.Second)

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	cache.Invalidate()
	assert.False(t, cache.Stats().Cached)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), server.hits.Load())

	server.jwks.Store(&JWKS{Keys: []JWK{toJWK(publicKey, "c")}})
	refreshed, err := cache.Refresh(context.Background())
	require.NoError(t, err)
	_, ok := refreshed.Lookup("c")
	assert.True(t, ok)
	assert.Equal(t, int64(3), server.hits.Load())
}

func TestKeySetCache_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
		},
		{
			name: "empty key set",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"keys":[]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			cache := NewKeySetCache(server.URL, time.Second)
			_, err := cache.Get(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrJWKSFetchFailed)

			stats := cache.Stats()
			assert.False(t, stats.Cached)
			assert.Equal(t, uint64(1), stats.Fetches)
			assert.Equal(t, uint64(1), stats.Failures)
		})
	}
}

func TestKeySetCache_FetchOutlivesCanceledCaller(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)
	server := newJWKSServer(t, toJWK(publicKey, "a"))
	cache := NewKeySetCache(server.URL, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ks, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ks.Len())
}

func TestKeySetCache_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	cache := NewKeySetCache(server.URL, 20*time.Millisecond)

	start := time.Now()
	_, err := cache.Get(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}
