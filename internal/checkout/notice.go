package checkout

import "sync"

// Level is the severity of a shopper-facing notice.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

const (
	MsgMissingFields   = "Please fill in all required fields."
	MsgInitiateFailed  = "Something went wrong while initiating payment."
	MsgSDKNotLoaded    = "Paytm SDK not loaded"
	MsgWidgetInitFails = "Paytm Initialization Failed"
)

// Notice is a transient message shown to the shopper.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier delivers notices to the shopper.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Notices collects notices for rendering with the next page.
type Notices struct {
	mu    sync.Mutex
	items []Notice
}

func (n *Notices) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, notice)
}

// Drain returns the collected notices and resets the collector.
func (n *Notices) Drain() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.items
	n.items = nil
	return out
}
