package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vbonduro/stockcount/internal/apperr"
	"github.com/vbonduro/stockcount/internal/domain"
)

// operatorRepository is the subset of store.OperatorStore that Auth requires.
type operatorRepository interface {
	Upsert(ctx context.Context, username, displayName, passwordHash string) error
	Get(ctx context.Context, username string) (*domain.Operator, error)
}

// Auth checks operator credentials. There are no sessions; a successful
// login only returns the operator's display name.
type Auth struct {
	operators operatorRepository
	cost      int
	logger    *slog.Logger
}

func NewAuth(operators operatorRepository, logger *slog.Logger) *Auth {
	return &Auth{operators: operators, cost: bcrypt.DefaultCost, logger: logger}
}

func (a *Auth) Login(ctx context.Context, username, password string) (*domain.Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Validation("username and password are required")
	}
	op, err := a.operators.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if op == nil {
		a.logger.Info("login rejected", "username", username, "reason", "unknown operator")
		return nil, apperr.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			a.logger.Error("stored password hash unreadable", "username", username, "error", err)
		}
		a.logger.Info("login rejected", "username", username, "reason", "bad password")
		return nil, apperr.ErrUnauthorized
	}
	return op, nil
}

// SetPassword creates or replaces an operator's credential.
func (a *Auth) SetPassword(ctx context.Context, username, displayName, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if displayName == "" {
		displayName = username
	}
	return a.operators.Upsert(ctx, username, displayName, string(hash))
}

// Bootstrap provisions an operator from "username:password[:Display Name]".
// An empty value is a no-op.
func (a *Auth) Bootstrap(ctx context.Context, operator string) error {
	if operator == "" {
		return nil
	}
	parts := strings.SplitN(operator, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid operator %q, want username:password[:display name]", parts[0])
	}
	display := ""
	if len(parts) == 3 {
		display = parts[2]
	}
	if err := a.SetPassword(ctx, parts[0], display, parts[1]); err != nil {
		return fmt.Errorf("failed to bootstrap operator %s: %w", parts[0], err)
	}
	a.logger.Info("operator provisioned", "username", parts[0])
	return nil
}
