// Package token maintains the bearer tokens used to authenticate against
// the regional event APIs. Tokens are fetched lazily, cached per credential
// identity, and reused until a dispatch is rejected, at which point the
// pipeline resets the cached token and a fresh one is fetched on the next
// request.
//
// Concurrent requests for the same identity are collapsed: one caller
// performs the fetch while late arrivals wait, bounded by the configured
// attempt count and wait interval, and then read the shared result from
// the cache.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"formcloud-bridge/internal/circuitbreaker"
	"formcloud-bridge/internal/common/errors"
	"formcloud-bridge/internal/common/httpx"
	"formcloud-bridge/internal/common/logging"
	"formcloud-bridge/internal/common/utils"
	"formcloud-bridge/internal/models"
	"formcloud-bridge/internal/routing"
)

// Manager acquires and caches bearer tokens for the regional auth endpoints.
// It is safe for concurrent use.
type Manager struct {
	cache       Cache
	httpClient  *http.Client
	breaker     *circuitbreaker.GoBreakerAdapter
	maxAttempts int
	wait        time.Duration
	logger      logging.Logger

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHTTPClient overrides the HTTP client used for token requests.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) {
		m.httpClient = client
	}
}

// NewManager creates a token manager.
//
// maxAttempts and wait bound both the fetch retry loop and how long a
// caller waits on another caller's in-flight fetch.
func NewManager(cache Cache, maxAttempts int, wait time.Duration, logger logging.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	m := &Manager{
		cache:       cache,
		httpClient:  httpx.NewClientWithTimeout(30 * time.Second),
		breaker:     circuitbreaker.NewGoBreaker("token-fetch", circuitbreaker.TokenFetchConfig, logger),
		maxAttempts: maxAttempts,
		wait:        wait,
		logger:      logger,
		inflight:    make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetToken returns a valid token for the credential tuple, fetching one if
// none is cached.
//
// At most one fetch per identity runs at a time. A caller that finds a
// fetch already in flight waits for it and re-reads the cache; if the
// fetch failed, nothing is cached and the waiter claims the fetch itself.
// Waiting is bounded by maxAttempts intervals of the configured wait.
//
// Failed fetches are never cached.
func (m *Manager) GetToken(ctx context.Context, creds models.Credentials, variant routing.ApiVariant) (*Token, error) {
	identity := creds.Identity()

	for attempt := 1; ; attempt++ {
		if cached, err := m.cache.Load(ctx, identity); err != nil {
			m.logger.Warn("Token cache read failed, fetching directly",
				logging.Field{Key: "identity", Value: identity},
				logging.Err(err),
			)
		} else if cached != nil && cached.Value != "" {
			return cached, nil
		}

		m.mu.Lock()
		waiter, busy := m.inflight[identity]
		if !busy {
			done := make(chan struct{})
			m.inflight[identity] = done
			m.mu.Unlock()

			token, err := m.fetch(ctx, creds, variant)

			m.mu.Lock()
			if m.inflight[identity] == done {
				delete(m.inflight, identity)
			}
			m.mu.Unlock()
			close(done)

			if err != nil {
				return nil, err
			}
			if saveErr := m.cache.Save(ctx, identity, token); saveErr != nil {
				m.logger.Warn("Failed to cache token",
					logging.Field{Key: "identity", Value: identity},
					logging.Err(saveErr),
				)
			}
			m.logger.Info("Token acquired",
				logging.Field{Key: "identity", Value: identity},
				logging.Field{Key: "variant", Value: string(variant)},
			)
			return token, nil
		}
		m.mu.Unlock()

		if attempt >= m.maxAttempts {
			return nil, errors.AuthError("token fetch still in progress after maximum wait", nil).
				WithContext("identity", identity)
		}

		select {
		case <-ctx.Done():
			return nil, errors.AuthError("token wait cancelled", ctx.Err())
		case <-waiter:
		case <-time.After(m.wait):
		}
	}
}

// ResetToken drops the cached token for a credential tuple and clears any
// in-flight fetch marker, so the next GetToken performs a fresh fetch.
func (m *Manager) ResetToken(ctx context.Context, creds models.Credentials) error {
	identity := creds.Identity()

	m.mu.Lock()
	delete(m.inflight, identity)
	m.mu.Unlock()

	if err := m.cache.Delete(ctx, identity); err != nil {
		return errors.AuthError("failed to reset token", err).WithContext("identity", identity)
	}

	m.logger.Info("Token reset",
		logging.Field{Key: "identity", Value: identity},
	)
	return nil
}

// fetch performs the bounded retry loop around a single token request.
func (m *Manager) fetch(ctx context.Context, creds models.Credentials, variant routing.ApiVariant) (*Token, error) {
	var token *Token

	retryCfg := utils.RetryConfig{
		MaxAttempts: m.maxAttempts,
		Wait:        m.wait,
	}

	err := utils.Retry(ctx, retryCfg, func() error {
		return m.breaker.Execute(ctx, func() error {
			fetched, fetchErr := m.requestToken(ctx, creds, variant)
			if fetchErr != nil {
				return fetchErr
			}
			token = fetched
			return nil
		})
	})
	if err != nil {
		m.logger.Error("Token fetch failed", err,
			logging.Field{Key: "identity", Value: creds.Identity()},
			logging.Field{Key: "variant", Value: string(variant)},
		)
		if errors.IsType(err, errors.ErrTypeAuth) {
			return nil, err
		}
		return nil, errors.AuthError("token fetch failed", err)
	}
	return token, nil
}

// requestToken performs one POST to the auth endpoint and decodes the
// variant-specific response shape.
//
// Legacy sends clientId/clientSecret and reads accessToken; enhanced sends
// a client_credentials grant and reads access_token.
func (m *Manager) requestToken(ctx context.Context, creds models.Credentials, variant routing.ApiVariant) (*Token, error) {
	form := url.Values{}
	responseField := "access_token"
	if variant == routing.VariantLegacy {
		form.Set("clientId", creds.ClientID)
		form.Set("clientSecret", creds.ClientSecret)
		responseField = "accessToken"
	} else {
		form.Set("grant_type", "client_credentials")
		form.Set("client_id", creds.ClientID)
		form.Set("client_secret", creds.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.AuthURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.AuthError("failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, errors.AuthError("token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.AuthError("failed to read token response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.AuthError("token endpoint rejected the request", nil).
			WithCode(strconv.Itoa(resp.StatusCode))
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errors.AuthError("token response is not valid JSON", err)
	}

	value, _ := decoded[responseField].(string)
	if value == "" {
		return nil, errors.AuthError(fmt.Sprintf("token response missing %s", responseField), nil)
	}

	return &Token{
		Value:     value,
		FetchedAt: time.Now(),
		Variant:   variant,
	}, nil
}
