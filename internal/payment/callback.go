package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/events"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/paytm"
)

const (
	orderIDField = "ORDERID"
	// MsgChecksumMismatch is the plain-text body returned for a bad CHECKSUMHASH.
	MsgChecksumMismatch = "Checksum mismatch"
)

var errMalformed = errors.New("payment: malformed callback payload")

// OrderConfirmer settles an order after a verified postback.
type OrderConfirmer interface {
	Confirm(ctx context.Context, orderID string) (Outcome, error)
}

// Callback handles the gateway's payment postback.
type Callback struct {
	Verifier paytm.Verifier
	// Replay, when set, acknowledges repeated postbacks without processing them again.
	Replay    redis.Cmdable
	ReplayTTL time.Duration
	Confirmer OrderConfirmer
	// Reconcile receives order.reconcile tasks when confirmation fails.
	Reconcile Publisher
	MaxBody   int64
	Logger    zerolog.Logger
}

type callbackPayload struct {
	// data is echoed back as received.
	data   any
	params map[string]string
}

// Handle verifies CHECKSUMHASH and acknowledges the postback.
func (h Callback) Handle(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.Verifier.MerchantKey) == "" {
		obs.CountCallback("not_configured")
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "callback unavailable", nil)
		return
	}
	payload, err := h.parse(r)
	if err != nil {
		obs.CountCallback("malformed")
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid callback payload", nil)
		return
	}
	checksum := payload.params[paytm.ChecksumField]
	fields := make(map[string]string, len(payload.params))
	for k, v := range payload.params {
		if k != paytm.ChecksumField {
			fields[k] = v
		}
	}
	ok, err := h.Verifier.Verify(fields, checksum)
	if err != nil || !ok {
		obs.CountCallback("checksum_mismatch")
		h.Logger.Warn().Err(err).Str("order_id", fields[orderIDField]).Msg("callback checksum mismatch")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, MsgChecksumMismatch)
		return
	}

	result := "verified"
	ctx := r.Context()
	if h.isReplay(ctx, fields, checksum) {
		result = "replay"
	} else if orderID := strings.TrimSpace(fields[orderIDField]); orderID != "" && h.Confirmer != nil {
		h.confirm(ctx, orderID)
	}
	obs.CountCallback(result)
	common.JSON(w, http.StatusOK, map[string]any{"status": "success", "data": payload.data})
}

func (h Callback) isReplay(ctx context.Context, fields map[string]string, checksum string) bool {
	if h.Replay == nil {
		return false
	}
	ttl := h.ReplayTTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	key := fmt.Sprintf("cb:paytm:%s", common.Sha256Hex(paytm.StringByParams(fields)+"|"+checksum))
	first, err := h.Replay.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		// confirmation is idempotent, so process rather than drop the postback
		h.Logger.Error().Err(err).Msg("callback replay store")
		return false
	}
	if !first {
		h.Logger.Info().Str("order_id", fields[orderIDField]).Msg("callback replay acknowledged")
	}
	return !first
}

func (h Callback) confirm(ctx context.Context, orderID string) {
	logger := h.Logger.With().Str("order_id", orderID).Logger()
	out, err := h.Confirmer.Confirm(ctx, orderID)
	if err == nil {
		logger.Info().
			Str("status", string(out.Order.Status)).
			Str("gateway_status", string(out.GatewayStatus)).
			Bool("transitioned", out.Transitioned).
			Msg("callback confirmed")
		return
	}
	if errors.Is(err, order.ErrNotFound) {
		logger.Warn().Msg("callback for unknown order")
		return
	}
	logger.Error().Err(err).Msg("callback confirmation failed")
	if h.Reconcile == nil {
		return
	}
	if _, emitErr := h.Reconcile.Emit(ctx, events.TopicOrderReconcile, orderID, events.OrderPayload{
		OrderID: orderID,
		Reason:  err.Error(),
	}); emitErr != nil {
		logger.Error().Err(emitErr).Msg("enqueue reconcile")
	}
}

func (h Callback) parse(r *http.Request) (callbackPayload, error) {
	limit := h.MaxBody
	if limit <= 0 {
		limit = 1 << 20
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return callbackPayload{}, err
	}
	if int64(len(body)) > limit {
		return callbackPayload{}, errMalformed
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return parseJSON(body)
	}
	return parseForm(body)
}

func parseForm(body []byte) (callbackPayload, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return callbackPayload{}, errMalformed
	}
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return callbackPayload{data: params, params: params}, nil
}

func parseJSON(body []byte) (callbackPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil || data == nil {
		return callbackPayload{}, errMalformed
	}
	params := make(map[string]string, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case nil:
			params[k] = ""
		case string:
			params[k] = val
		case json.Number:
			params[k] = val.String()
		case bool:
			params[k] = fmt.Sprint(val)
		default:
			return callbackPayload{}, errMalformed
		}
	}
	return callbackPayload{data: data, params: params}, nil
}
