package paytm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-checkout/internal/resilience"
)

const (
	// StagingHost is the gateway's staging environment.
	StagingHost = "https://securegw-stage.paytm.in"
	// ProductionHost is the gateway's live environment.
	ProductionHost = "https://securegw.paytm.in"

	initiatePath = "/theia/api/v1/initiateTransaction"
	statusPath   = "/v3/order/status"
)

// ErrGateway wraps failures reported by the gateway itself (as opposed to transport errors).
var ErrGateway = errors.New("paytm: gateway rejected request")

// Doer executes outbound HTTP requests.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client talks to the gateway's server-to-server APIs.
type Client struct {
	MID         string
	MerchantKey string
	Website     string
	Host        string
	CallbackURL string
	Currency    string
	// Initiate is used for initiateTransaction. It should not retry: a retried initiation may
	// issue a second token for the same order.
	Initiate Doer
	// Status is used for order status queries, which are safe to retry.
	Status Doer
}

// NewHTTPClient returns an instrumented http.Client for gateway calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// InitiateRequest describes a checkout attempt.
type InitiateRequest struct {
	OrderID string
	Amount  string
	CustID  string
	Email   string
}

// InitiateResponse carries the transaction token.
type InitiateResponse struct {
	Token      string
	ResultCode string
	ResultMsg  string
}

// StatusResponse is the gateway's authoritative view of an order's payment.
type StatusResponse struct {
	OrderID     string
	TxnID       string
	Status      TxnStatus
	Amount      string
	ResultCode  string
	ResultMsg   string
	RawResponse []byte
}

type resultInfo struct {
	ResultStatus string `json:"resultStatus"`
	ResultCode   string `json:"resultCode"`
	ResultMsg    string `json:"resultMsg"`
}

type signedHead struct {
	Signature string `json:"signature"`
}

type initiateBody struct {
	RequestType string    `json:"requestType"`
	MID         string    `json:"mid"`
	WebsiteName string    `json:"websiteName"`
	OrderID     string    `json:"orderId"`
	CallbackURL string    `json:"callbackUrl,omitempty"`
	TxnAmount   txnAmount `json:"txnAmount"`
	UserInfo    userInfo  `json:"userInfo"`
}

type txnAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type userInfo struct {
	CustID string `json:"custId"`
	Email  string `json:"email,omitempty"`
}

type statusBody struct {
	MID     string `json:"mid"`
	OrderID string `json:"orderId"`
}

// InitiateTransaction requests a transaction token for the order.
func (c Client) InitiateTransaction(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	ctx, span := otel.Tracer("paytm.Client").Start(ctx, "Paytm.InitiateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", req.OrderID))

	if strings.TrimSpace(req.OrderID) == "" {
		return InitiateResponse{}, errors.New("paytm: order id is required")
	}
	currency := c.Currency
	if currency == "" {
		currency = "INR"
	}
	body := initiateBody{
		RequestType: "Payment",
		MID:         c.MID,
		WebsiteName: c.Website,
		OrderID:     req.OrderID,
		CallbackURL: c.CallbackURL,
		TxnAmount:   txnAmount{Value: req.Amount, Currency: currency},
		UserInfo:    userInfo{CustID: req.CustID, Email: req.Email},
	}
	query := url.Values{"mid": {c.MID}, "orderId": {req.OrderID}}
	var out struct {
		Body struct {
			ResultInfo resultInfo `json:"resultInfo"`
			TxnToken   string     `json:"txnToken"`
		} `json:"body"`
	}
	if _, err := c.post(ctx, c.Initiate, initiatePath+"?"+query.Encode(), body, &out); err != nil {
		span.RecordError(err)
		return InitiateResponse{}, err
	}
	info := out.Body.ResultInfo
	if !strings.EqualFold(info.ResultStatus, "S") || out.Body.TxnToken == "" {
		err := fmt.Errorf("%w: %s %s", ErrGateway, info.ResultCode, info.ResultMsg)
		span.RecordError(err)
		return InitiateResponse{ResultCode: info.ResultCode, ResultMsg: info.ResultMsg}, err
	}
	return InitiateResponse{Token: out.Body.TxnToken, ResultCode: info.ResultCode, ResultMsg: info.ResultMsg}, nil
}

// OrderStatus queries the gateway for the order's transaction status.
func (c Client) OrderStatus(ctx context.Context, orderID string) (StatusResponse, error) {
	ctx, span := otel.Tracer("paytm.Client").Start(ctx, "Paytm.OrderStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var out struct {
		Body struct {
			ResultInfo resultInfo  `json:"resultInfo"`
			TxnID      string      `json:"txnId"`
			OrderID    string      `json:"orderId"`
			TxnAmount  json.Number `json:"txnAmount"`
		} `json:"body"`
	}
	raw, err := c.post(ctx, c.Status, statusPath, statusBody{MID: c.MID, OrderID: orderID}, &out)
	if err != nil {
		span.RecordError(err)
		return StatusResponse{}, err
	}
	info := out.Body.ResultInfo
	status := ParseTxnStatus(info.ResultStatus)
	span.SetAttributes(attribute.String("paytm.status", string(status)))
	return StatusResponse{
		OrderID:     out.Body.OrderID,
		TxnID:       out.Body.TxnID,
		Status:      status,
		Amount:      out.Body.TxnAmount.String(),
		ResultCode:  info.ResultCode,
		ResultMsg:   info.ResultMsg,
		RawResponse: raw,
	}, nil
}

func (c Client) post(ctx context.Context, doer Doer, path string, body any, out any) ([]byte, error) {
	if doer == nil {
		return nil, errors.New("paytm: http client not configured")
	}
	encodedBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("paytm: encode body: %w", err)
	}
	signature, err := GenerateSignatureByString(string(encodedBody), c.MerchantKey)
	if err != nil {
		return nil, err
	}
	envelope, err := json.Marshal(struct {
		Body json.RawMessage `json:"body"`
		Head signedHead      `json:"head"`
	}{Body: encodedBody, Head: signedHead{Signature: signature}})
	if err != nil {
		return nil, fmt.Errorf("paytm: encode envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host()+path, bytes.NewReader(envelope))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := doer.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("paytm: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("paytm: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, fmt.Errorf("%w: http %d", ErrGateway, resp.StatusCode)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return raw, fmt.Errorf("paytm: decode response: %w", err)
	}
	return raw, nil
}

func (c Client) host() string {
	host := strings.TrimRight(strings.TrimSpace(c.Host), "/")
	if host == "" {
		return StagingHost
	}
	return host
}

// ScriptURL is the hosted checkout SDK location for the merchant.
func (c Client) ScriptURL() string {
	return ScriptURL(c.host(), c.MID)
}

// ScriptURL builds the hosted checkout SDK URL for mid on host.
func ScriptURL(host, mid string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = StagingHost
	}
	return fmt.Sprintf("%s/merchantpgpui/checkoutjs/merchants/%s.js", host, url.PathEscape(mid))
}

var _ Doer = resilience.HTTPClient{}
