package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moviehub/backend/internal/auth"
	"github.com/moviehub/backend/internal/config"
	"github.com/moviehub/backend/internal/db"
	"github.com/moviehub/backend/internal/models"
	"github.com/moviehub/backend/internal/repositories"
	"github.com/moviehub/backend/internal/validation"
)

// passwordEnv lets scripts supply the new account's password without a prompt.
const passwordEnv = "MOVIEHUB_NEW_PASSWORD"

type newAccount struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Password string `json:"password" validate:"required,min=8"`
	Staff    bool   `json:"staff"`
}

type accountStore interface {
	Create(ctx context.Context, user models.User) error
	SetStaff(ctx context.Context, username string, staff bool) error
}

// parseCreateUser reads `createuser [--staff] <username>`. The password comes
// from MOVIEHUB_NEW_PASSWORD or, when unset, the first line of stdin.
func parseCreateUser(args []string, stdin io.Reader, output io.Writer) (newAccount, error) {
	fs := flag.NewFlagSet("createuser", flag.ContinueOnError)
	fs.SetOutput(output)

	var account newAccount
	fs.BoolVar(&account.Staff, "staff", false, "grant access to the admin endpoints")
	if err := fs.Parse(args); err != nil {
		return newAccount{}, err
	}
	if fs.NArg() != 1 {
		return newAccount{}, errors.New("usage: createuser [--staff] <username>")
	}
	account.Username = strings.TrimSpace(fs.Arg(0))

	account.Password = os.Getenv(passwordEnv)
	if account.Password == "" {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return newAccount{}, fmt.Errorf("read password: %w", err)
		}
		account.Password = strings.TrimRight(line, "\r\n")
	}

	if err := validation.New().Validate(account); err != nil {
		return newAccount{}, err
	}
	return account, nil
}

// createAccount stores the account. An existing username only has its staff
// flag raised when --staff was given; otherwise it is a conflict.
func createAccount(ctx context.Context, store accountStore, account newAccount, now time.Time) (bool, error) {
	hashed, err := auth.HashPassword(account.Password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	err = store.Create(ctx, models.User{
		ID:        uuid.NewString(),
		Username:  account.Username,
		Password:  hashed,
		IsStaff:   account.Staff,
		CreatedAt: now,
		UpdatedAt: now,
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repositories.ErrConflict) && account.Staff:
		return false, store.SetStaff(ctx, account.Username, true)
	case errors.Is(err, repositories.ErrConflict):
		return false, fmt.Errorf("user %q already exists", account.Username)
	default:
		return false, err
	}
}

func runCreateUser(ctx context.Context, args []string, stdin io.Reader) error {
	account, err := parseCreateUser(args, stdin, flag.CommandLine.Output())
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	created, err := createAccount(ctx, repositories.NewPostgresUserRepository(pool), account, time.Now().UTC())
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("created user %s (staff=%t)\n", account.Username, account.Staff)
	} else {
		fmt.Printf("granted staff to existing user %s\n", account.Username)
	}
	return nil
}
