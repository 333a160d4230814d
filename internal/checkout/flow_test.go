package checkout_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/auth"
	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/checkout"
	"github.com/noah-isme/toko-checkout/internal/widget"
)

type recordingInitiator struct {
	calls []checkout.InitiateRequest
	token string
	err   error
}

func (r *recordingInitiator) Initiate(_ context.Context, req checkout.InitiateRequest) (checkout.InitiateResponse, error) {
	r.calls = append(r.calls, req)
	if r.err != nil {
		return checkout.InitiateResponse{}, r.err
	}
	return checkout.InitiateResponse{Token: r.token}, nil
}

type failingWidget struct{ initErr error }

func (w failingWidget) Init(context.Context, widget.Config) error { return w.initErr }
func (w failingWidget) Invoke(context.Context) error { return nil }

func newFlow(init checkout.Initiator, loader widget.Loader, notices *checkout.Notices) *checkout.Flow {
	flow := &checkout.Flow{
		Initiator: init,
		Loader:    loader,
		Script:    widget.SDKScript("", "MID123"),
		Logger:    zerolog.Nop(),
		City:      "Lahore",
		State:     "Punjab",
	}
	if notices != nil {
		flow.Notifier = notices
	}
	return flow
}

func sampleCart() cart.Cart {
	c := cart.Cart{}
	c.Add("tee-m", 2, decimal.RequireFromString("499"), "Tee", "M", "Black")
	return c
}

func completeForm() checkout.FormValues {
	return checkout.FormValues{
		Name: "Ayesha", Email: "ayesha@example.com", Phone: "03001234567",
		Zipcode: "54000", Address: "12 Mall Road",
	}
}

var session = &auth.Session{UserID: "user-1", Email: "ayesha@example.com"}

func TestSubmitRejectsIncompleteForm(t *testing.T) {
	blanks := []func(*checkout.FormValues){
		func(f *checkout.FormValues) { f.Name = "" },
		func(f *checkout.FormValues) { f.Email = "  " },
		func(f *checkout.FormValues) { f.Phone = "" },
		func(f *checkout.FormValues) { f.Zipcode = "" },
		func(f *checkout.FormValues) { f.Address = "" },
	}
	for _, blank := range blanks {
		init := &recordingInitiator{token: "tok"}
		notices := &checkout.Notices{}
		form := completeForm()
		blank(&form)

		_, err := newFlow(init, widget.Preloaded{Widget: &widget.Page{}}, notices).Submit(context.Background(), session, sampleCart(), form)
		require.True(t, checkout.IsValidationError(err))
		require.Empty(t, init.calls, "no initiation for incomplete forms")
		require.Equal(t, []checkout.Notice{{Level: checkout.LevelError, Message: checkout.MsgMissingFields}}, notices.Drain())
	}
}

func TestSubmitInitiatesOnceAndInvokesWidget(t *testing.T) {
	init := &recordingInitiator{token: "tok-1"}
	page := &widget.Page{}
	notices := &checkout.Notices{}

	res, err := newFlow(init, widget.Preloaded{Widget: page}, notices).Submit(context.Background(), session, sampleCart(), completeForm())
	require.NoError(t, err)
	require.Len(t, init.calls, 1)

	call := init.calls[0]
	require.Equal(t, "998.00", call.Amount.String())
	require.Equal(t, "ayesha@example.com", call.Email)
	require.True(t, strings.HasPrefix(call.OrderID, "ORDER_"))
	require.Equal(t, call.OrderID, res.OrderID)

	cfg, ok := page.Bootstrap()
	require.True(t, ok)
	require.Equal(t, widget.NewConfig(res.OrderID, "tok-1", "998"), cfg)
	require.Empty(t, notices.Drain())
}

func TestSubmitPinsLocation(t *testing.T) {
	init := &recordingInitiator{token: "tok"}
	form := completeForm()
	form.City = "Karachi"
	form.State = "Sindh"
	normalized := form.Normalize("Lahore", "Punjab")
	require.Equal(t, "Lahore", normalized.City)
	require.Equal(t, "Punjab", normalized.State)

	_, err := newFlow(init, widget.Preloaded{Widget: &widget.Page{}}, &checkout.Notices{}).Submit(context.Background(), session, sampleCart(), form)
	require.NoError(t, err)
}

func TestSubmitInitiationFailure(t *testing.T) {
	init := &recordingInitiator{err: errors.New("boom")}
	notices := &checkout.Notices{}
	_, err := newFlow(init, widget.Preloaded{Widget: &widget.Page{}}, notices).Submit(context.Background(), session, sampleCart(), completeForm())
	require.ErrorIs(t, err, checkout.ErrInitiate)
	require.Len(t, init.calls, 1, "initiation is not retried")
	require.Equal(t, checkout.MsgInitiateFailed, notices.Drain()[0].Message)
}

func TestSubmitWidgetMissing(t *testing.T) {
	init := &recordingInitiator{token: "tok"}
	notices := &checkout.Notices{}
	_, err := newFlow(init, widget.Preloaded{}, notices).Submit(context.Background(), session, sampleCart(), completeForm())
	require.ErrorIs(t, err, checkout.ErrWidgetUnavailable)
	require.Equal(t, checkout.MsgSDKNotLoaded, notices.Drain()[0].Message)
}

func TestSubmitWidgetInitFailure(t *testing.T) {
	init := &recordingInitiator{token: "tok"}
	notices := &checkout.Notices{}
	loader := widget.Preloaded{Widget: failingWidget{initErr: errors.New("sdk rejected config")}}
	_, err := newFlow(init, loader, notices).Submit(context.Background(), session, sampleCart(), completeForm())
	require.ErrorIs(t, err, checkout.ErrWidgetInit)
	require.Equal(t, checkout.MsgWidgetInitFails, notices.Drain()[0].Message)
}

func TestSubmitWithScriptLoader(t *testing.T) {
	page := &widget.Page{}
	flow := newFlow(&recordingInitiator{token: "tok"}, nil, &checkout.Notices{})
	flow.Loader = widget.ScriptLoader{Doc: page, Script: flow.Script, New: func() widget.Widget { return page }}

	_, err := flow.Submit(context.Background(), session, sampleCart(), completeForm())
	require.ErrorIs(t, err, checkout.ErrWidgetUnavailable, "script not injected yet")

	require.NoError(t, flow.Mount(session, page))
	_, err = flow.Submit(context.Background(), session, sampleCart(), completeForm())
	require.NoError(t, err)
}

func TestMountRequiresSession(t *testing.T) {
	page := &widget.Page{}
	err := newFlow(&recordingInitiator{}, nil, nil).Mount(nil, page)
	var loginErr *checkout.LoginRequiredError
	require.ErrorAs(t, err, &loginErr)
	require.Equal(t, "/login", loginErr.Redirect)
	require.Empty(t, page.Scripts())

	_, err = newFlow(&recordingInitiator{}, nil, nil).Submit(context.Background(), nil, sampleCart(), completeForm())
	require.ErrorAs(t, err, &loginErr)
}

func TestMountTwiceInjectsOneScript(t *testing.T) {
	page := &widget.Page{}
	flow := newFlow(&recordingInitiator{}, nil, nil)
	require.NoError(t, flow.Mount(session, page))
	require.NoError(t, flow.Mount(session, page))
	require.Len(t, page.Scripts(), 1)
}
