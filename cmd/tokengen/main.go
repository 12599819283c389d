// tokengen mints a bearer token for an existing account so operators can
// call the API without an external identity provider.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/deskflow/helpdesk/internal/auth"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var accountID string
	var secret string
	var ttlMinutes int

	flagSet := pflag.NewFlagSet("tokengen", pflag.ContinueOnError)
	flagSet.StringVar(&accountID, "account", "", "account id to place in the token subject")
	flagSet.StringVar(&secret, "secret", os.Getenv("AUTH_JWT_SECRET"), "signing secret (default: $AUTH_JWT_SECRET)")
	flagSet.IntVar(&ttlMinutes, "ttl", 60, "token lifetime in minutes")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if accountID == "" {
		return errors.New("--account is required")
	}
	if secret == "" {
		return errors.New("--secret or AUTH_JWT_SECRET is required")
	}

	token, expiresAt, err := auth.NewTokenManager(secret, ttlMinutes).GenerateToken(accountID)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
