package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formcloud-bridge/internal/common/errors"
	"formcloud-bridge/internal/common/logging"
	"formcloud-bridge/internal/models"
	"formcloud-bridge/internal/routing"
)

func testCredentials(authURL string) models.Credentials {
	return models.Credentials{
		AuthURL:      authURL,
		RestURL:      "https://rest.example.com",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(NewMemoryCache(), 3, 10*time.Millisecond, logging.GetGlobalLogger())
}

func TestGetTokenEnhancedFlow(t *testing.T) {
	var fetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		json.NewEncoder(w).Encode(map[string]string{"access_token": "enhanced-token"})
	}))
	defer srv.Close()

	m := newTestManager(t)
	creds := testCredentials(srv.URL)

	tok, err := m.GetToken(context.Background(), creds, routing.VariantEnhanced)
	require.NoError(t, err)
	assert.Equal(t, "enhanced-token", tok.Value)
	assert.Equal(t, routing.VariantEnhanced, tok.Variant)

	// Second call must hit the cache
	tok2, err := m.GetToken(context.Background(), creds, routing.VariantEnhanced)
	require.NoError(t, err)
	assert.Equal(t, "enhanced-token", tok2.Value)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))
}

func TestGetTokenLegacyFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client-id", r.PostForm.Get("clientId"))
		assert.Equal(t, "client-secret", r.PostForm.Get("clientSecret"))
		assert.Empty(t, r.PostForm.Get("grant_type"))

		json.NewEncoder(w).Encode(map[string]string{"accessToken": "legacy-token"})
	}))
	defer srv.Close()

	m := newTestManager(t)
	tok, err := m.GetToken(context.Background(), testCredentials(srv.URL), routing.VariantLegacy)
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", tok.Value)
	assert.Equal(t, routing.VariantLegacy, tok.Variant)
}

func TestGetTokenFailures(t *testing.T) {
	t.Run("rejected request is an auth error and is not cached", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		m := newTestManager(t)
		creds := testCredentials(srv.URL)

		_, err := m.GetToken(context.Background(), creds, routing.VariantEnhanced)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeAuth))

		cached, cacheErr := m.cache.Load(context.Background(), creds.Identity())
		require.NoError(t, cacheErr)
		assert.Nil(t, cached)
	})

	t.Run("missing token field is an auth error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"unexpected": "shape"})
		}))
		defer srv.Close()

		m := newTestManager(t)
		_, err := m.GetToken(context.Background(), testCredentials(srv.URL), routing.VariantEnhanced)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		var fetches int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&fetches, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		m := newTestManager(t)
		_, err := m.GetToken(context.Background(), testCredentials(srv.URL), routing.VariantEnhanced)
		require.Error(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&fetches))
	})
}

func TestGetTokenSingleFlight(t *testing.T) {
	var fetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		time.Sleep(20 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]string{"access_token": "shared-token"})
	}))
	defer srv.Close()

	m := NewManager(NewMemoryCache(), 10, 10*time.Millisecond, logging.GetGlobalLogger())
	creds := testCredentials(srv.URL)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := 0; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := m.GetToken(context.Background(), creds, routing.VariantEnhanced)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = tok.Value
		}(i)
	}
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, "shared-token", v)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))
}

func TestResetToken(t *testing.T) {
	var fetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&fetches, 1)
		json.NewEncoder(w).Encode(map[string]string{"access_token": "token-" + string(rune('0'+n))})
	}))
	defer srv.Close()

	m := newTestManager(t)
	creds := testCredentials(srv.URL)
	ctx := context.Background()

	tok1, err := m.GetToken(ctx, creds, routing.VariantEnhanced)
	require.NoError(t, err)

	require.NoError(t, m.ResetToken(ctx, creds))

	tok2, err := m.GetToken(ctx, creds, routing.VariantEnhanced)
	require.NoError(t, err)
	assert.NotEqual(t, tok1.Value, tok2.Value)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	loaded, err := c.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	tok := &Token{Value: "v", FetchedAt: time.Now(), Variant: routing.VariantEnhanced}
	require.NoError(t, c.Save(ctx, "id", tok))

	loaded, err = c.Load(ctx, "id")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "v", loaded.Value)

	require.NoError(t, c.Delete(ctx, "id"))
	loaded, err = c.Load(ctx, "id")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
