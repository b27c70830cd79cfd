// Package dispatch posts event envelopes to the regional event APIs with
// bearer authentication, a circuit breaker, and a dry-run mode that reports
// the request instead of sending it.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"formcloud-bridge/internal/circuitbreaker"
	"formcloud-bridge/internal/common/errors"
	"formcloud-bridge/internal/common/httpx"
	"formcloud-bridge/internal/common/logging"
	"formcloud-bridge/internal/models"
	"formcloud-bridge/internal/routing"
	"formcloud-bridge/internal/token"
)

// eventPath is the event endpoint path relative to the regional REST base.
const eventPath = "interaction/v1/events"

// ResultKind classifies a dispatch attempt for the pipeline.
type ResultKind int

const (
	// ResultSuccess means the POST completed with a 2xx status; Body holds
	// the decoded response when one was decodable
	ResultSuccess ResultKind = iota
	// ResultDryRun means sending was disabled; URL and Payload describe the
	// request that would have been made
	ResultDryRun
	// ResultAuthFailure means no token could be obtained; nothing was posted
	ResultAuthFailure
	// ResultAuthRejected means the remote service refused the token with a
	// 401; the caller may reset the token and retry once
	ResultAuthRejected
	// ResultTransportFailure means the POST failed at the network or HTTP
	// status level
	ResultTransportFailure
)

// Result reports one dispatch attempt.
type Result struct {
	Kind ResultKind
	// Body is the decoded 2xx response, nil when the body was empty or not
	// valid JSON
	Body map[string]interface{}
	// Code is the HTTP status code string, or "unknown" for network errors
	Code string
	// Reason is supplemental failure text
	Reason string
	// Err is the underlying error for auth and transport failures
	Err error
	// URL and Payload describe the request in dry-run mode
	URL     string
	Payload string
}

// Detail renders a transport failure as "code: reason", omitting the reason
// when it is empty or already embedded in the code text.
func (r *Result) Detail() string {
	if r.Reason == "" || strings.Contains(r.Code, r.Reason) {
		return r.Code
	}
	return r.Code + ": " + r.Reason
}

// Dispatcher posts envelopes to one regional endpoint per call.
// It is safe for concurrent use.
type Dispatcher struct {
	tokens     *token.Manager
	httpClient *http.Client
	breaker    *circuitbreaker.GoBreakerAdapter
	doNotSend  bool
	logger     logging.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for event posts.
func WithHTTPClient(client *http.Client) DispatcherOption {
	return func(d *Dispatcher) {
		d.httpClient = client
	}
}

// NewDispatcher creates a dispatcher. When doNotSend is set, Send builds
// the request and reports it without posting.
func NewDispatcher(tokens *token.Manager, doNotSend bool, logger logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	d := &Dispatcher{
		tokens:     tokens,
		httpClient: httpx.NewClientWithTimeout(30 * time.Second),
		breaker:    circuitbreaker.NewGoBreaker("event-post", circuitbreaker.EventPostConfig, logger),
		doNotSend:  doNotSend,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send posts the envelope to the region's event endpoint.
//
// The result kind tells the caller what happened: a token acquisition
// failure reports ResultAuthFailure without posting anything, a 401 from
// the remote reports ResultAuthRejected so the caller can reset the token
// and retry, and network or non-2xx failures report ResultTransportFailure
// with a code and reason.
func (d *Dispatcher) Send(ctx context.Context, creds models.Credentials, variant routing.ApiVariant, envelope *models.EventEnvelope) *Result {
	endpoint := eventEndpoint(creds.RestURL)

	payload, err := json.Marshal(envelope)
	if err != nil {
		return &Result{
			Kind:   ResultTransportFailure,
			Code:   "unknown",
			Reason: "envelope serialization failed",
			Err:    errors.TransportError("unknown", err),
		}
	}

	if d.doNotSend {
		d.logger.Info("Dispatch suppressed, reporting request",
			logging.Field{Key: "url", Value: endpoint},
		)
		return &Result{
			Kind:    ResultDryRun,
			URL:     endpoint,
			Payload: string(payload),
		}
	}

	bearer, err := d.tokens.GetToken(ctx, creds, variant)
	if err != nil {
		return &Result{
			Kind: ResultAuthFailure,
			Err:  err,
		}
	}

	var result *Result
	err = d.breaker.Execute(ctx, func() error {
		var postErr error
		result, postErr = d.post(ctx, endpoint, bearer.Value, payload)
		return postErr
	})
	if err != nil {
		// Breaker open or network failure without an HTTP status
		return &Result{
			Kind:   ResultTransportFailure,
			Code:   "unknown",
			Reason: err.Error(),
			Err:    err,
		}
	}
	return result
}

// ResetToken drops the cached token for the credential tuple.
func (d *Dispatcher) ResetToken(ctx context.Context, creds models.Credentials) error {
	return d.tokens.ResetToken(ctx, creds)
}

// post performs the HTTP exchange and classifies the response.
//
// It returns an error only for failures the circuit breaker should count;
// HTTP-level rejections are classified into the result instead so a 401 or
// remote validation error does not trip the breaker.
func (d *Dispatcher) post(ctx context.Context, endpoint, bearer string, payload []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.TransportError("unknown", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, errors.TransportError("unknown", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.TransportError(strconv.Itoa(resp.StatusCode), err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		d.logger.Warn("Event endpoint rejected the token",
			logging.Field{Key: "url", Value: endpoint},
		)
		return &Result{
			Kind: ResultAuthRejected,
			Code: strconv.Itoa(resp.StatusCode),
		}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Result{
			Kind:   ResultTransportFailure,
			Code:   strconv.Itoa(resp.StatusCode),
			Reason: reasonFromBody(body),
		}, nil
	}

	var decoded map[string]interface{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			decoded = nil
		}
	}

	return &Result{
		Kind: ResultSuccess,
		Code: strconv.Itoa(resp.StatusCode),
		Body: decoded,
	}, nil
}

// eventEndpoint joins the regional REST base with the event path.
func eventEndpoint(restURL string) string {
	return strings.TrimRight(restURL, "/") + "/" + eventPath
}

// reasonFromBody extracts a short failure reason from an error response body.
func reasonFromBody(body []byte) string {
	reason := strings.TrimSpace(string(body))
	if len(reason) > 200 {
		reason = reason[:200]
	}
	return reason
}
