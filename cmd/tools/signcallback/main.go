package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/noah-isme/toko-checkout/internal/paytm"
)

// signcallback prints a gateway postback for an order signed with PAYTM_MKEY, and can post it
// to a running API. Exit code 0 = ok, 1 = usage or signing error, 2 = post failed.
func main() {
	_ = godotenv.Load()

	orderID := flag.String("order", "", "ORDERID to report")
	amount := flag.String("amount", "", "TXNAMOUNT, e.g. 998.00")
	status := flag.String("status", string(paytm.TxnSuccess), "STATUS to report")
	txnID := flag.String("txn", "", "TXNID (random when empty)")
	asJSON := flag.Bool("json", false, "emit a JSON body instead of form encoding")
	post := flag.String("post", "", "callback URL to post the body to")
	flag.Parse()

	key := os.Getenv("PAYTM_MKEY")
	if key == "" || *orderID == "" {
		fmt.Fprintln(os.Stderr, "signcallback: PAYTM_MKEY and -order are required")
		os.Exit(1)
	}
	if *txnID == "" {
		*txnID = fmt.Sprintf("TXN%d", time.Now().UnixNano())
	}

	fields := map[string]string{
		"MID":         os.Getenv("PAYTM_MID"),
		"ORDERID":     *orderID,
		"TXNID":       *txnID,
		"TXNAMOUNT":   *amount,
		"CURRENCY":    "INR",
		"STATUS":      *status,
		"RESPCODE":    respCode(*status),
		"RESPMSG":     *status,
		"TXNDATE":     time.Now().Format("2006-01-02 15:04:05.0"),
		"GATEWAYNAME": "WALLET",
		"BANKNAME":    "WALLET",
		"PAYMENTMODE": "PPI",
	}
	checksum, err := paytm.GenerateSignature(fields, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signcallback: %v\n", err)
		os.Exit(1)
	}
	fields["CHECKSUMHASH"] = checksum

	body, contentType, err := encode(fields, *asJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signcallback: %v\n", err)
		os.Exit(1)
	}
	if *post == "" {
		fmt.Println(string(body))
		return
	}

	resp, err := http.Post(*post, contentType, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "signcallback: post: %v\n", err)
		os.Exit(2)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	fmt.Printf("%d %s\n", resp.StatusCode, strings.TrimSpace(string(out)))
	if resp.StatusCode != http.StatusOK {
		os.Exit(2)
	}
}

func encode(fields map[string]string, asJSON bool) ([]byte, string, error) {
	if asJSON {
		b, err := json.Marshal(fields)
		return b, "application/json", err
	}
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	return []byte(values.Encode()), "application/x-www-form-urlencoded", nil
}

func respCode(status string) string {
	switch paytm.ParseTxnStatus(status) {
	case paytm.TxnSuccess:
		return "01"
	case paytm.TxnFailure:
		return "227"
	default:
		return "400"
	}
}
