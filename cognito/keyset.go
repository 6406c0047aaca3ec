package cognito

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrJWKSFetchFailed is returned when JWKS fetching fails
var ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")

// JWKS represents the JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// RSAPublicKey converts the JWK modulus and exponent to an RSA public key
func (k JWK) RSAPublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "" && k.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}
	if len(nBytes) == 0 || len(eBytes) == 0 {
		return nil, errors.New("empty modulus or exponent")
	}
	if len(eBytes) > 4 {
		return nil, fmt.Errorf("exponent too large: %d bytes", len(eBytes))
	}

	var e int
	for _, b := range eBytes {
		e = e*256 + int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

// KeySet is an immutable snapshot of a fetched JWKS indexed by kid
type KeySet struct {
	keys      map[string]JWK
	FetchedAt time.Time
}

func newKeySet(jwks *JWKS, fetchedAt time.Time) *KeySet {
	keys := make(map[string]JWK, len(jwks.Keys))
	for _, k := range jwks.Keys {
		keys[k.Kid] = k
	}
	return &KeySet{keys: keys, FetchedAt: fetchedAt}
}

// Lookup returns the key with the given kid
func (s *KeySet) Lookup(kid string) (JWK, bool) {
	k, ok := s.keys[kid]
	return k, ok
}

// Len returns the number of keys in the set
func (s *KeySet) Len() int {
	return len(s.keys)
}

// KeyIDs returns the kids in the set, in no particular order
func (s *KeySet) KeyIDs() []string {
	ids := make([]string, 0, len(s.keys))
	for kid := range s.keys {
		ids = append(ids, kid)
	}
	return ids
}

// CacheStats is a point-in-time view of the key set cache
type CacheStats struct {
	Cached    bool      `json:"jwks_cached"`
	Keys      int       `json:"jwks_keys_count"`
	FetchedAt time.Time `json:"jwks_fetched_at,omitempty"`
	Fetches   uint64    `json:"jwks_fetches"`
	Failures  uint64    `json:"jwks_fetch_failures"`
}

// KeySetCache holds the most recently fetched key set for one JWKS URL.
//
// The cache is populated lazily and never expires on its own. Concurrent
// cold-start callers share a single in-flight fetch, and the stored snapshot
// is swapped atomically so readers never observe a partial set.
type KeySetCache struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration

	current atomic.Pointer[KeySet]
	group   singleflight.Group

	fetches  atomic.Uint64
	failures atomic.Uint64
}

// NewKeySetCache creates an empty cache for the given JWKS URL
func NewKeySetCache(jwksURL string, timeout time.Duration) *KeySetCache {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &KeySetCache{
		url:        jwksURL,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// URL returns the JWKS endpoint this cache fetches from
func (c *KeySetCache) URL() string {
	return c.url
}

// Get returns the cached key set, fetching it first if the cache is empty
func (c *KeySetCache) Get(ctx context.Context) (*KeySet, error) {
	if ks := c.current.Load(); ks != nil {
		return ks, nil
	}
	return c.load(ctx, false)
}

// Refresh fetches the key set unconditionally and replaces the cached one.
// A refresh that overlaps an in-flight fetch joins it instead of starting another.
func (c *KeySetCache) Refresh(ctx context.Context) (*KeySet, error) {
	return c.load(ctx, true)
}

// Invalidate drops the cached key set; the next Get fetches again
func (c *KeySetCache) Invalidate() {
	c.current.Store(nil)
}

// Stats returns cache statistics
func (c *KeySetCache) Stats() CacheStats {
	stats := CacheStats{
		Fetches:  c.fetches.Load(),
		Failures: c.failures.Load(),
	}
	if ks := c.current.Load(); ks != nil {
		stats.Cached = true
		stats.Keys = ks.Len()
		stats.FetchedAt = ks.FetchedAt
	}
	return stats
}

func (c *KeySetCache) load(ctx context.Context, force bool) (*KeySet, error) {
	v, err, _ := c.group.Do(c.url, func() (interface{}, error) {
		// Double-check inside the flight: a previous flight may have filled the cache
		if !force {
			if ks := c.current.Load(); ks != nil {
				return ks, nil
			}
		}

		ks, err := c.fetch(ctx)
		if err != nil {
			c.failures.Add(1)
			return nil, err
		}
		c.current.Store(ks)
		return ks, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*KeySet), nil
}

// fetch runs detached from the caller's cancellation: every request waiting
// on the flight depends on its outcome, not only the one that started it.
func (c *KeySetCache) fetch(ctx context.Context) (*KeySet, error) {
	c.fetches.Add(1)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("%w: failed to decode JWKS: %v", ErrJWKSFetchFailed, err)
	}
	if len(jwks.Keys) == 0 {
		return nil, fmt.Errorf("%w: key set is empty", ErrJWKSFetchFailed)
	}

	return newKeySet(&jwks, time.Now()), nil
}
