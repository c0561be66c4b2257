// Command bootstrap provisions accounts and admin secrets for promptgate.
//
//	bootstrap account -name Ada -email ada@example.com -credential $GEMINI_API_KEY
//	bootstrap hash-admin -secret s3cret
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/promptgate/promptgate/internal/auth"
	"github.com/promptgate/promptgate/internal/model"
	"github.com/promptgate/promptgate/internal/repository"
)

type accountOutput struct {
	UserKey  string `json:"user_key"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	MaxCalls *int   `json:"max_calls,omitempty"`
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "account":
		err = runAccount(os.Args[2:], os.Stdout)
	case "hash-admin":
		err = runHashAdmin(os.Args[2:], os.Stdout)
	default:
		usage(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: bootstrap <account|hash-admin> [flags]")
}

func runAccount(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("account", flag.ContinueOnError)
	var (
		databaseURL = fs.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		table       = fs.String("table", envOr("USERS_TABLE", "test_users"), "Accounts table")
		prefix      = fs.String("prefix", envOr("KEY_PREFIX", "TEST"), "Key prefix")
		name        = fs.String("name", "", "Account holder name")
		email       = fs.String("email", "", "Account holder email")
		credential  = fs.String("credential", os.Getenv("GEMINI_API_KEY"), "Backend credential for this account")
		maxCalls    = fs.Int("max-calls", 0, "Per-account call limit (0 uses the server default)")
		format      = fs.String("format", "plain", "Output format: plain or json")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if *credential == "" {
		return errors.New("a backend credential is required (-credential or GEMINI_API_KEY)")
	}

	key, err := auth.NewKeyFormat(*prefix).Generate()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	account := &model.Account{
		Key:               key,
		Name:              *name,
		Email:             *email,
		BackendCredential: *credential,
	}
	if *maxCalls > 0 {
		account.CallsAllowed = maxCalls
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL, *table)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer repo.Close()

	if err := repo.CreateAccount(ctx, account); err != nil {
		return err
	}

	return printAccount(out, *format, accountOutput{
		UserKey:  account.Key,
		Name:     account.Name,
		Email:    account.Email,
		MaxCalls: account.CallsAllowed,
	})
}

func printAccount(out io.Writer, format string, acct accountOutput) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(acct)
	}

	fmt.Fprintf(out, "USER_KEY=%s\n", acct.UserKey)
	fmt.Fprintf(out, "NAME=%s\n", acct.Name)
	fmt.Fprintf(out, "EMAIL=%s\n", acct.Email)
	if acct.MaxCalls != nil {
		fmt.Fprintf(out, "MAX_CALLS=%d\n", *acct.MaxCalls)
	}
	return nil
}

func runHashAdmin(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("hash-admin", flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("ADMIN_KEY"), "Admin secret to hash")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *secret == "" {
		return errors.New("secret is required (-secret or ADMIN_KEY)")
	}

	hash, err := auth.HashSecret(*secret)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}

	fmt.Fprintf(out, "ADMIN_KEY_HASH=%s\n", hash)
	return nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
