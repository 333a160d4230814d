package widget_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/widget"
)

func TestEnsureScriptIsIdempotent(t *testing.T) {
	page := &widget.Page{}
	script := widget.SDKScript("https://securegw-stage.paytm.in", "MID123")

	require.True(t, widget.EnsureScript(page, script))
	require.False(t, widget.EnsureScript(page, script))

	scripts := page.Scripts()
	require.Len(t, scripts, 1)
	require.Equal(t, widget.ScriptID, scripts[0].ID)
	require.Equal(t, "anonymous", scripts[0].CrossOrigin)
	require.Equal(t, "https://securegw-stage.paytm.in/merchantpgpui/checkoutjs/merchants/MID123.js", scripts[0].Src)
}

func TestConfigShape(t *testing.T) {
	raw, err := json.Marshal(widget.NewConfig("ORDER_1", "tok", "499.00"))
	require.NoError(t, err)
	require.JSONEq(t, `{"root":"","flow":"DEFAULT","data":{"orderId":"ORDER_1","token":"tok","tokenType":"TXN_TOKEN","amount":"499.00"}}`, string(raw))
}

func TestScriptLoaderNeedsScript(t *testing.T) {
	page := &widget.Page{}
	loader := widget.ScriptLoader{
		Doc:    page,
		Script: widget.SDKScript("", "MID123"),
		New:    func() widget.Widget { return page },
	}
	_, err := loader.Load(context.Background())
	require.ErrorIs(t, err, widget.ErrNotLoaded)

	require.True(t, loader.Inject())
	w, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestPreloaded(t *testing.T) {
	_, err := widget.Preloaded{}.Load(context.Background())
	require.ErrorIs(t, err, widget.ErrNotLoaded)

	page := &widget.Page{}
	w, err := widget.Preloaded{Widget: page}.Load(context.Background())
	require.NoError(t, err)
	require.Same(t, page, w)
}

func TestPageLifecycle(t *testing.T) {
	ctx := context.Background()
	page := &widget.Page{}
	require.Error(t, page.Invoke(ctx))
	require.Error(t, page.Init(ctx, widget.NewConfig("ORDER_1", "", "1.00")))

	require.NoError(t, page.Init(ctx, widget.NewConfig("ORDER_1", "tok", "1.00")))
	_, ok := page.Bootstrap()
	require.False(t, ok, "not bootstrapped before invoke")

	require.NoError(t, page.Invoke(ctx))
	cfg, ok := page.Bootstrap()
	require.True(t, ok)
	require.Equal(t, "tok", cfg.Data.Token)
}
