// Package storefront serves the server-rendered checkout page.
package storefront

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"html/template"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/auth"
	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/checkout"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/security"
	"github.com/noah-isme/toko-checkout/internal/widget"
)

var errPaymentsUnavailable = errors.New("storefront: payments not configured")

// EventsPath receives the widget's merchant events.
const EventsPath = "/checkout/events"

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets/checkout.js
var assetFS embed.FS

var checkoutPage = template.Must(template.New("checkout.html").
	Funcs(template.FuncMap{"scriptTag": scriptTag}).
	ParseFS(templateFS, "templates/checkout.html"))

// CartLoader reads the shopper's cart.
type CartLoader interface {
	Load(ctx context.Context, userID string) (cart.Cart, error)
}

// InitiatorFactory binds an initiator to the shopper's request and the delivery details they entered.
type InitiatorFactory func(r *http.Request, sess auth.Session, delivery *order.Delivery) checkout.Initiator

// Handler renders and submits the checkout page.
type Handler struct {
	Carts      CartLoader
	Initiators InitiatorFactory
	Script     widget.Script
	City       string
	State      string
	CSRF       security.CSRF
	Logger     zerolog.Logger
	NewOrderID func() string
}

type line struct {
	Name    string
	Options string
	Qty     int
	Price   string
}

type messages struct {
	SDKNotLoaded string `json:"sdkNotLoaded"`
	InitFailed   string `json:"initFailed"`
}

type bootstrap struct {
	Config    widget.Config `json:"config"`
	Messages  messages      `json:"messages"`
	ScriptID  string        `json:"scriptId"`
	EventsURL string        `json:"eventsUrl"`
	CSRFName  string        `json:"csrfName"`
}

type view struct {
	Form      checkout.FormValues
	Lines     []line
	SubTotal  string
	Notices   []checkout.Notice
	Scripts   []widget.Script
	Bootstrap *bootstrap
	CSRFName  string
	CSRFToken string
}

// Show renders the empty checkout form with the shopper's cart.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFrom(r.Context())
	page := &widget.Page{}
	notices := &checkout.Notices{}
	flow := h.flow(page, notices, nil)
	if err := flow.Mount(sess, page); err != nil {
		h.loginRedirect(w, r, err)
		return
	}
	c, err := h.Carts.Load(r.Context(), sess.UserID)
	if err != nil {
		h.Logger.Error().Err(err).Str("user_id", sess.UserID).Msg("checkout_cart_load_failed")
		http.Error(w, "could not load cart", http.StatusInternalServerError)
		return
	}
	form := checkout.NewForm(h.City, h.State)
	form.Email = sess.Email
	h.render(w, r, http.StatusOK, page, notices, c, form)
}

// Submit validates the posted form, initiates the payment and renders the page that starts
// the widget. Failures re-render the form with a notice.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := checkout.FormValues{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Phone:   r.PostFormValue("phone"),
		Zipcode: r.PostFormValue("zipcode"),
		Address: r.PostFormValue("address"),
	}.Normalize(h.City, h.State)

	page := &widget.Page{}
	notices := &checkout.Notices{}
	var initiator checkout.Initiator
	if sess != nil && h.Initiators != nil {
		initiator = h.Initiators(r, *sess, form.Delivery())
	}
	flow := h.flow(page, notices, initiator)
	if err := flow.Mount(sess, page); err != nil {
		h.loginRedirect(w, r, err)
		return
	}
	c, err := h.Carts.Load(r.Context(), sess.UserID)
	if err != nil {
		h.Logger.Error().Err(err).Str("user_id", sess.UserID).Msg("checkout_cart_load_failed")
		http.Error(w, "could not load cart", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if _, err := flow.Submit(r.Context(), sess, c, form); err != nil {
		switch {
		case checkout.IsValidationError(err):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, checkout.ErrInitiate):
			status = http.StatusBadGateway
		}
	}
	h.render(w, r, status, page, notices, c, form)
}

// Asset serves the page script that starts the widget.
func (h *Handler) Asset(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	http.ServeFileFS(w, r, assetFS, "assets/checkout.js")
}

type merchantEvent struct {
	EventName string          `json:"eventName" validate:"required,max=100"`
	Data      json.RawMessage `json:"data"`
}

// MerchantEvent records an event the widget reported through its notifyMerchant handler.
func (h *Handler) MerchantEvent(w http.ResponseWriter, r *http.Request) {
	var ev merchantEvent
	if appErr := common.DecodeJSON(r, &ev); appErr != nil {
		common.WriteError(w, appErr)
		return
	}
	var data any
	if len(ev.Data) > 0 {
		_ = json.Unmarshal(ev.Data, &data)
	}
	flow := h.flow(nil, nil, nil)
	flow.MerchantEvent(ev.EventName, data)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) flow(page *widget.Page, notices *checkout.Notices, initiator checkout.Initiator) *checkout.Flow {
	if initiator == nil {
		initiator = checkout.InitiatorFunc(func(context.Context, checkout.InitiateRequest) (checkout.InitiateResponse, error) {
			return checkout.InitiateResponse{}, errPaymentsUnavailable
		})
	}
	f := &checkout.Flow{
		Initiator:  initiator,
		Script:     h.Script,
		Logger:     h.Logger,
		City:       h.City,
		State:      h.State,
		NewOrderID: h.NewOrderID,
	}
	if notices != nil {
		f.Notifier = notices
	}
	if page != nil {
		f.Loader = widget.ScriptLoader{
			Doc:    page,
			Script: h.Script,
			New:    func() widget.Widget { return page },
		}
	}
	return f
}

func (h *Handler) loginRedirect(w http.ResponseWriter, r *http.Request, err error) {
	var lr *checkout.LoginRequiredError
	if !errors.As(err, &lr) {
		http.Error(w, "checkout unavailable", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, auth.LoginRedirect(r.URL.RequestURI()), http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page *widget.Page, notices *checkout.Notices, c cart.Cart, form checkout.FormValues) {
	v := view{
		Form:      form,
		Lines:     lines(c),
		SubTotal:  c.SubTotal().String(),
		Notices:   notices.Drain(),
		Scripts:   page.Scripts(),
		CSRFName:  h.csrfName(),
		CSRFToken: h.CSRF.Token(w, r),
	}
	if cfg, ok := page.Bootstrap(); ok {
		v.Bootstrap = &bootstrap{
			Config:    cfg,
			Messages:  messages{SDKNotLoaded: checkout.MsgSDKNotLoaded, InitFailed: checkout.MsgWidgetInitFails},
			ScriptID:  h.Script.ID,
			EventsURL: EventsPath,
			CSRFName:  v.CSRFName,
		}
	}
	var buf strings.Builder
	if err := checkoutPage.Execute(&buf, v); err != nil {
		h.Logger.Error().Err(err).Msg("checkout_render_failed")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

func (h *Handler) csrfName() string {
	if n := strings.TrimSpace(h.CSRF.Name); n != "" {
		return n
	}
	return security.DefaultCSRFName
}

func lines(c cart.Cart) []line {
	out := make([]line, 0, len(c))
	for _, key := range c.Keys() {
		it := c[key]
		var opts []string
		if it.Size != "" {
			opts = append(opts, it.Size)
		}
		if it.Variant != "" {
			opts = append(opts, it.Variant)
		}
		out = append(out, line{
			Name:    it.Name,
			Options: strings.Join(opts, ", "),
			Qty:     it.Qty,
			Price:   it.Price.String(),
		})
	}
	return out
}

func scriptTag(s widget.Script) template.HTML {
	var b strings.Builder
	fmt.Fprintf(&b, `<script id="%s" src="%s"`, html.EscapeString(s.ID), html.EscapeString(s.Src))
	if s.Type != "" {
		fmt.Fprintf(&b, ` type="%s"`, html.EscapeString(s.Type))
	}
	if s.CrossOrigin != "" {
		fmt.Fprintf(&b, ` crossorigin="%s"`, html.EscapeString(s.CrossOrigin))
	}
	b.WriteString(`></script>`)
	return template.HTML(b.String())
}
