package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// InitiateRequest is the body of a transaction initiation call.
type InitiateRequest struct {
	Amount  json.Number `json:"amount"`
	Email   string      `json:"email"`
	OrderID string      `json:"orderId"`
}

// InitiateResponse carries the gateway transaction token.
type InitiateResponse struct {
	Token string `json:"token"`
}

// Initiator requests a transaction token for an order.
type Initiator interface {
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error)
}

// InitiatorFunc adapts a function to Initiator.
type InitiatorFunc func(ctx context.Context, req InitiateRequest) (InitiateResponse, error)

func (f InitiatorFunc) Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	return f(ctx, req)
}

// ErrInitiateStatus is returned for non-2xx initiation responses.
var ErrInitiateStatus = errors.New("checkout: initiation rejected")

// HTTPInitiator calls the initiation endpoint over HTTP with the shopper's session token.
type HTTPInitiator struct {
	URL          string
	SessionToken string
	Client       *http.Client
	Timeout      time.Duration
}

// NewHTTPInitiator returns an initiator with an instrumented client bounded by timeout.
func NewHTTPInitiator(url, sessionToken string, timeout time.Duration) HTTPInitiator {
	return HTTPInitiator{
		URL:          url,
		SessionToken: sessionToken,
		Client:       &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Timeout:      timeout,
	}
}

func (h HTTPInitiator) Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return InitiateResponse{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return InitiateResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.OrderID)
	if h.SessionToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.SessionToken)
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return InitiateResponse{}, fmt.Errorf("checkout: initiate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return InitiateResponse{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return InitiateResponse{}, fmt.Errorf("%w: http %d", ErrInitiateStatus, resp.StatusCode)
	}
	var out InitiateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return InitiateResponse{}, fmt.Errorf("checkout: decode initiate response: %w", err)
	}
	if out.Token == "" {
		return InitiateResponse{}, fmt.Errorf("%w: empty token", ErrInitiateStatus)
	}
	return out, nil
}
