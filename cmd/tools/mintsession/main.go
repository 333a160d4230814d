package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/noah-isme/toko-checkout/internal/auth"
)

// mintsession issues a session token signed with JWT_SECRET for local testing. Print it, then
// send it as a bearer token or set it as the session cookie.
func main() {
	_ = godotenv.Load()

	userID := flag.String("user", "demo-user", "user id (sub claim)")
	email := flag.String("email", "demo@toko.local", "email claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	svc, err := auth.NewService(auth.Config{Secret: os.Getenv("JWT_SECRET"), AccessTokenTTL: *ttl})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mintsession: %v\n", err)
		os.Exit(1)
	}
	token, exp, err := svc.IssueToken(auth.Session{UserID: *userID, Email: *email})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mintsession: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
	fmt.Println(token)
}
