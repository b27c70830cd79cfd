package token

import (
	"context"
	"sync"
	"time"

	"formcloud-bridge/internal/routing"
)

// Token is a cached bearer token with fetch metadata.
// Tokens are owned exclusively by the Manager; other components only ever
// see the token value through the Authorization header the dispatcher sets.
type Token struct {
	// Value is the bearer token string
	Value string `json:"value"`
	// FetchedAt is when the token was obtained from the auth endpoint
	FetchedAt time.Time `json:"fetched_at"`
	// Variant records which auth flow produced the token
	Variant routing.ApiVariant `json:"variant"`
}

// Cache is the storage contract for cached tokens, keyed by credential
// identity. Implementations must be safe for concurrent use.
//
// Load returns (nil, nil) when no token is cached for the identity.
type Cache interface {
	Load(ctx context.Context, identity string) (*Token, error)
	Save(ctx context.Context, identity string, token *Token) error
	Delete(ctx context.Context, identity string) error
}

// MemoryCache implements Cache using an in-process map with thread safety.
// This is the default cache: tokens are fetched lazily per process and lost
// on restart, which matches the remote token lifetime of a few minutes.
type MemoryCache struct {
	tokens map[string]*Token
	mu     sync.RWMutex
}

// NewMemoryCache creates a new thread-safe in-memory token cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		tokens: make(map[string]*Token),
	}
}

// Load retrieves a cached token, returning nil when none is cached.
func (c *MemoryCache) Load(_ context.Context, identity string) (*Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	token, exists := c.tokens[identity]
	if !exists {
		return nil, nil
	}
	return token, nil
}

// Save stores a token, overwriting any previous value for the identity.
func (c *MemoryCache) Save(_ context.Context, identity string, token *Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[identity] = token
	return nil
}

// Delete removes a cached token. Deleting an absent token is not an error.
func (c *MemoryCache) Delete(_ context.Context, identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, identity)
	return nil
}
