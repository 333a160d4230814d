package checkout

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/auth"
	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/pricing"
	"github.com/noah-isme/toko-checkout/internal/widget"
)

var (
	// ErrInitiate wraps transaction initiation failures.
	ErrInitiate = errors.New("checkout: could not initiate payment")
	// ErrWidgetUnavailable is returned when the checkout SDK is not loaded.
	ErrWidgetUnavailable = errors.New("checkout: payment widget unavailable")
	// ErrWidgetInit wraps widget init or invoke failures.
	ErrWidgetInit = errors.New("checkout: payment widget failed to start")
)

// LoginRequiredError is returned when the flow runs without a session.
type LoginRequiredError struct {
	Redirect string
}

func (e *LoginRequiredError) Error() string { return "checkout: login required" }

// Flow drives a checkout from form submission to the gateway widget.
type Flow struct {
	Initiator Initiator
	Loader    widget.Loader
	Notifier  Notifier
	Script    widget.Script
	Logger    zerolog.Logger
	City      string
	State     string
	// NewOrderID mints order identifiers. Defaults to order.NewID.
	NewOrderID func() string
}

// Result describes a checkout handed to the widget.
type Result struct {
	OrderID string
	Token   string
	Config  widget.Config
}

// Mount prepares doc for checkout: the SDK script is injected once. Without a session nothing
// is injected and the caller is sent to the login page.
func (f *Flow) Mount(sess *auth.Session, doc widget.Document) error {
	if sess == nil {
		return &LoginRequiredError{Redirect: auth.LoginPath}
	}
	if doc != nil && widget.EnsureScript(doc, f.Script) {
		f.Logger.Debug().Str("script_id", f.Script.ID).Msg("checkout_sdk_injected")
	}
	return nil
}

// Submit validates the form, initiates the transaction for the cart's subtotal, and starts the
// widget. Every failure notifies the shopper and stops the flow; nothing is retried.
func (f *Flow) Submit(ctx context.Context, sess *auth.Session, c cart.Cart, form FormValues) (Result, error) {
	if sess == nil {
		return Result{}, &LoginRequiredError{Redirect: auth.LoginPath}
	}
	form = form.Normalize(f.City, f.State)
	if err := form.Validate(); err != nil {
		f.notify(LevelError, MsgMissingFields)
		return Result{}, err
	}

	orderID := f.newOrderID()
	amount := c.SubTotal()
	log := f.Logger.With().Str("order_id", orderID).Logger()

	resp, err := f.Initiator.Initiate(ctx, InitiateRequest{
		Amount:  json.Number(pricing.GatewayAmount(amount)),
		Email:   form.Email,
		OrderID: orderID,
	})
	if err != nil {
		log.Error().Err(err).Msg("checkout_initiate_failed")
		f.notify(LevelError, MsgInitiateFailed)
		return Result{OrderID: orderID}, errors.Join(ErrInitiate, err)
	}

	w, err := f.loader().Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("checkout_sdk_missing")
		f.notify(LevelError, MsgSDKNotLoaded)
		return Result{OrderID: orderID, Token: resp.Token}, errors.Join(ErrWidgetUnavailable, err)
	}

	cfg := widget.NewConfig(orderID, resp.Token, amount.String())
	if err := w.Init(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("checkout_widget_init_failed")
		f.notify(LevelError, MsgWidgetInitFails)
		return Result{OrderID: orderID, Token: resp.Token}, errors.Join(ErrWidgetInit, err)
	}
	if err := w.Invoke(ctx); err != nil {
		log.Error().Err(err).Msg("checkout_widget_invoke_failed")
		f.notify(LevelError, MsgWidgetInitFails)
		return Result{OrderID: orderID, Token: resp.Token}, errors.Join(ErrWidgetInit, err)
	}
	log.Info().Msg("checkout_widget_invoked")
	return Result{OrderID: orderID, Token: resp.Token, Config: cfg}, nil
}

// MerchantEvent logs an event the widget reports to the merchant.
func (f *Flow) MerchantEvent(name string, data any) {
	f.Logger.Info().Str("event", name).Interface("data", data).Msg("paytm_merchant_event")
}

func (f *Flow) notify(level Level, msg string) {
	if f.Notifier != nil {
		f.Notifier.Notify(Notice{Level: level, Message: msg})
	}
}

func (f *Flow) newOrderID() string {
	if f.NewOrderID != nil {
		return f.NewOrderID()
	}
	return order.NewID()
}

func (f *Flow) loader() widget.Loader {
	if f.Loader == nil {
		return widget.Preloaded{}
	}
	return f.Loader
}
