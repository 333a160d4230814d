package storefront_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/auth"
	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/checkout"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/storefront"
	"github.com/noah-isme/toko-checkout/internal/widget"
)

type staticCarts struct{ c cart.Cart }

func (s staticCarts) Load(context.Context, string) (cart.Cart, error) { return s.c, nil }

type initiateCall struct {
	sess     auth.Session
	delivery *order.Delivery
	req      checkout.InitiateRequest
}

func newHandler(c cart.Cart, calls *[]initiateCall, err error) *storefront.Handler {
	return &storefront.Handler{
		Carts: staticCarts{c: c},
		Initiators: func(_ *http.Request, sess auth.Session, delivery *order.Delivery) checkout.Initiator {
			return checkout.InitiatorFunc(func(_ context.Context, req checkout.InitiateRequest) (checkout.InitiateResponse, error) {
				*calls = append(*calls, initiateCall{sess: sess, delivery: delivery, req: req})
				if err != nil {
					return checkout.InitiateResponse{}, err
				}
				return checkout.InitiateResponse{Token: "tok-abc"}, nil
			})
		},
		Script:     widget.SDKScript("", "MID123"),
		City:       "Mumbai",
		State:      "Maharashtra",
		Logger:     zerolog.Nop(),
		NewOrderID: func() string { return "ORDER_1" },
	}
}

func withSession(r *http.Request) *http.Request {
	return r.WithContext(auth.WithSession(r.Context(), auth.Session{UserID: "user-1", Email: "a@b.c"}))
}

func sampleCart() cart.Cart {
	c := cart.Cart{}
	c.Add("tee-m", 2, decimal.RequireFromString("499"), "Tee", "M", "")
	return c
}

func postForm(h http.HandlerFunc, values url.Values, session bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if session {
		req = withSession(req)
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func completeForm() url.Values {
	return url.Values{
		"name":    {"Asha"},
		"email":   {"asha@example.com"},
		"phone":   {"9999999999"},
		"zipcode": {"400001"},
		"address": {"1 Marine Drive"},
		"city":    {"Elsewhere"},
	}
}

func TestShowRedirectsWithoutSession(t *testing.T) {
	var calls []initiateCall
	h := newHandler(sampleCart(), &calls, nil)

	rr := httptest.NewRecorder()
	h.Show(rr, httptest.NewRequest(http.MethodGet, "/checkout", nil))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login?next=%2Fcheckout", rr.Header().Get("Location"))
}

func TestShowRendersCartAndSDK(t *testing.T) {
	var calls []initiateCall
	h := newHandler(sampleCart(), &calls, nil)

	rr := httptest.NewRecorder()
	h.Show(rr, withSession(httptest.NewRequest(http.MethodGet, "/checkout", nil)))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Equal(t, 1, strings.Count(body, `id="paytm-checkout-js"`))
	require.Contains(t, body, "merchants/MID123.js")
	require.Contains(t, body, "Total: Rs 998")
	require.Contains(t, body, "Pay Rs 998")
	require.Contains(t, body, `value="Mumbai" readonly`)
	require.Contains(t, body, `value="a@b.c"`)
	require.NotContains(t, body, "checkout-bootstrap")
	require.NotEmpty(t, rr.Result().Cookies(), "csrf cookie should be issued")
	require.Empty(t, calls)
}

func TestShowEmptyCart(t *testing.T) {
	var calls []initiateCall
	h := newHandler(cart.Cart{}, &calls, nil)

	rr := httptest.NewRecorder()
	h.Show(rr, withSession(httptest.NewRequest(http.MethodGet, "/checkout", nil)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Your cart is empty")
	require.Contains(t, rr.Body.String(), "Total: Rs 0")
}

func TestSubmitIncompleteForm(t *testing.T) {
	var calls []initiateCall
	h := newHandler(sampleCart(), &calls, nil)

	values := completeForm()
	values.Set("phone", "  ")
	rr := postForm(h.Submit, values, true)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), checkout.MsgMissingFields)
	require.Contains(t, rr.Body.String(), `value="Asha"`)
	require.Empty(t, calls)
}

func TestSubmitStartsWidget(t *testing.T) {
	var calls []initiateCall
	h := newHandler(sampleCart(), &calls, nil)

	rr := postForm(h.Submit, completeForm(), true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, calls, 1)
	require.Equal(t, "user-1", calls[0].sess.UserID)
	require.Equal(t, "998.00", calls[0].req.Amount.String())
	require.Equal(t, "ORDER_1", calls[0].req.OrderID)
	require.Equal(t, "Mumbai", calls[0].delivery.City, "city is pinned by the store")

	body := rr.Body.String()
	require.Contains(t, body, `id="checkout-bootstrap"`)
	require.Contains(t, body, "tok-abc")
	require.Contains(t, body, "ORDER_1")
	require.Contains(t, body, "/checkout/checkout.js")
}

func TestSubmitInitiationFailure(t *testing.T) {
	var calls []initiateCall
	h := newHandler(sampleCart(), &calls, errors.New("gateway down"))

	rr := postForm(h.Submit, completeForm(), true)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Contains(t, rr.Body.String(), checkout.MsgInitiateFailed)
	require.NotContains(t, rr.Body.String(), "checkout-bootstrap")
	require.Len(t, calls, 1)
}

func TestSubmitWithoutSession(t *testing.T) {
	var calls []initiateCall
	h := newHandler(sampleCart(), &calls, nil)

	rr := postForm(h.Submit, completeForm(), false)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Empty(t, calls)
}

func TestMerchantEvent(t *testing.T) {
	var calls []initiateCall
	h := newHandler(sampleCart(), &calls, nil)

	req := httptest.NewRequest(http.MethodPost, storefront.EventsPath, strings.NewReader(`{"eventName":"APP_CLOSED","data":{"x":1}}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.MerchantEvent(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.MerchantEvent(rr, httptest.NewRequest(http.MethodPost, storefront.EventsPath, strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAssetServesScript(t *testing.T) {
	h := &storefront.Handler{}
	rr := httptest.NewRecorder()
	h.Asset(rr, httptest.NewRequest(http.MethodGet, "/checkout/checkout.js", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Type"), "javascript")
	require.Contains(t, rr.Body.String(), "Paytm.CheckoutJS.init")
}
