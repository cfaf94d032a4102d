package domain

import (
	"context"
	"errors"
)

type EnsureUserRequest struct {
	Email       string
	DisplayName string
}

// Provisioner creates or finds the login identity backing an affiliate.
// Implementations must be idempotent per email.
type Provisioner interface {
	EnsureUser(ctx context.Context, req EnsureUserRequest) (User, error)
}

var (
	ErrInvalidEmail = errors.New("invalid_email")
)
