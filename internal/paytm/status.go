package paytm

import "strings"

// TxnStatus is the gateway's transaction status vocabulary.
type TxnStatus string

const (
	TxnSuccess TxnStatus = "TXN_SUCCESS"
	TxnFailure TxnStatus = "TXN_FAILURE"
	TxnPending TxnStatus = "PENDING"
)

// ParseTxnStatus normalises the status strings returned by the status API and postbacks.
// Anything unrecognised is treated as pending.
func ParseTxnStatus(value string) TxnStatus {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "TXN_SUCCESS", "SUCCESS":
		return TxnSuccess
	case "TXN_FAILURE", "FAILURE", "FAILED":
		return TxnFailure
	default:
		return TxnPending
	}
}

// Terminal reports whether the status will not change further.
func (s TxnStatus) Terminal() bool {
	return s == TxnSuccess || s == TxnFailure
}
