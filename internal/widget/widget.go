// Package widget models the gateway's hosted checkout SDK: loading its script into a page,
// building the init configuration, and driving the init then invoke lifecycle.
package widget

import (
	"context"
	"errors"
	"sync"

	"github.com/noah-isme/toko-checkout/internal/paytm"
)

const (
	// ScriptID is the element id of the SDK script tag.
	ScriptID = "paytm-checkout-js"

	FlowDefault   = "DEFAULT"
	TokenTypeTxn  = "TXN_TOKEN"
	crossOriginJS = "anonymous"
)

// ErrNotLoaded is returned when the SDK is not available in the page.
var ErrNotLoaded = errors.New("widget: sdk not loaded")

// Script describes a script element.
type Script struct {
	ID          string
	Src         string
	Type        string
	CrossOrigin string
}

// SDKScript returns the SDK script element for the merchant on host.
func SDKScript(host, mid string) Script {
	return Script{
		ID:          ScriptID,
		Src:         paytm.ScriptURL(host, mid),
		Type:        "application/javascript",
		CrossOrigin: crossOriginJS,
	}
}

// Document is the page the SDK script is injected into.
type Document interface {
	HasScript(id string) bool
	AppendScript(s Script)
}

// EnsureScript appends s unless a script with the same id is already present.
// It reports whether the script was appended.
func EnsureScript(doc Document, s Script) bool {
	if doc.HasScript(s.ID) {
		return false
	}
	doc.AppendScript(s)
	return true
}

// Data is the transaction section of the widget configuration.
type Data struct {
	OrderID   string `json:"orderId"`
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	Amount    string `json:"amount"`
}

// Config is passed to the widget's init call.
type Config struct {
	Root string `json:"root"`
	Flow string `json:"flow"`
	Data Data   `json:"data"`
}

// NewConfig builds the default-flow configuration for a transaction token.
func NewConfig(orderID, token, amount string) Config {
	return Config{
		Root: "",
		Flow: FlowDefault,
		Data: Data{
			OrderID:   orderID,
			Token:     token,
			TokenType: TokenTypeTxn,
			Amount:    amount,
		},
	}
}

// Widget is a loaded checkout SDK instance.
type Widget interface {
	Init(ctx context.Context, cfg Config) error
	Invoke(ctx context.Context) error
}

// Loader yields the widget once its SDK is available.
type Loader interface {
	Load(ctx context.Context) (Widget, error)
}

// Preloaded is a Loader for an SDK that is already present.
type Preloaded struct {
	Widget Widget
}

func (p Preloaded) Load(context.Context) (Widget, error) {
	if p.Widget == nil {
		return nil, ErrNotLoaded
	}
	return p.Widget, nil
}

// ScriptLoader is a Loader for an SDK that must be injected into Doc first. The widget is
// only handed out when the script is present in the document.
type ScriptLoader struct {
	Doc    Document
	Script Script
	New    func() Widget
}

// Inject appends the SDK script to the document if it is missing.
func (l ScriptLoader) Inject() bool {
	if l.Doc == nil {
		return false
	}
	return EnsureScript(l.Doc, l.Script)
}

func (l ScriptLoader) Load(context.Context) (Widget, error) {
	if l.Doc == nil || l.New == nil || !l.Doc.HasScript(l.Script.ID) {
		return nil, ErrNotLoaded
	}
	w := l.New()
	if w == nil {
		return nil, ErrNotLoaded
	}
	return w, nil
}

// Page is an in-memory Document. It also acts as a Widget that records the init
// configuration so a server-rendered page can bootstrap the SDK in the browser.
type Page struct {
	mu      sync.Mutex
	scripts []Script
	config  *Config
	invoked bool
}

func (p *Page) HasScript(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.scripts {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (p *Page) AppendScript(s Script) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts = append(p.scripts, s)
}

// Scripts returns the scripts in injection order.
func (p *Page) Scripts() []Script {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Script(nil), p.scripts...)
}

func (p *Page) Init(_ context.Context, cfg Config) error {
	if cfg.Data.Token == "" {
		return errors.New("widget: transaction token is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config = &cfg
	return nil
}

func (p *Page) Invoke(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.config == nil {
		return errors.New("widget: invoke before init")
	}
	p.invoked = true
	return nil
}

// Bootstrap returns the recorded configuration once the widget has been invoked.
func (p *Page) Bootstrap() (Config, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.config == nil || !p.invoked {
		return Config{}, false
	}
	return *p.config, true
}
