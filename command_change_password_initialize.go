package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// InitializeChangePasswordMessage starts a password change for an email.
type InitializeChangePasswordMessage struct {
	Email string `json:"email"`
}

func (e InitializeChangePasswordMessage) Type() string { return "password.change.initialize" }

// InitializeChangePasswordHandler sends the CHANGE_PASSWORD handshake. An
// unknown email is a silent no-op so the endpoint cannot be used to probe
// which addresses have accounts.
type InitializeChangePasswordHandler struct {
	users        UserReader
	verification VerificationService
	logger       Logger
}

// NewInitializeChangePasswordHandler creates a handler with sane defaults.
func NewInitializeChangePasswordHandler(users UserReader, verification VerificationService) *InitializeChangePasswordHandler {
	return &InitializeChangePasswordHandler{
		users:        users,
		verification: verification,
		logger:       defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *InitializeChangePasswordHandler) WithLogger(logger Logger) *InitializeChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializeChangePasswordHandler) Execute(ctx context.Context, event InitializeChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializeChangePasswordHandler) execute(ctx context.Context, event InitializeChangePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.users.GetByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			h.logger.Debug("password change requested for unknown email %s", event.Email)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve account for password change")
	}

	return h.verification.Send(ctx, VerificationChangePassword, user)
}
