package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// FinalizeChangePasswordMessage redeems a CHANGE_PASSWORD hash and sets the
// new password.
type FinalizeChangePasswordMessage struct {
	Hash                 string `json:"hash"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (e FinalizeChangePasswordMessage) Type() string { return "password.change.finalize" }

// FinalizeChangePasswordHandler validates the new password, swaps the stored
// hash, and consumes the handshake.
type FinalizeChangePasswordHandler struct {
	repo         RepositoryManager
	verification VerificationService
	activity     ActivitySink
	logger       Logger
}

// NewFinalizeChangePasswordHandler creates a handler with sane defaults.
func NewFinalizeChangePasswordHandler(repo RepositoryManager, verification VerificationService) *FinalizeChangePasswordHandler {
	return &FinalizeChangePasswordHandler{
		repo:         repo,
		verification: verification,
		activity:     noopActivitySink{},
		logger:       defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password change events.
func (h *FinalizeChangePasswordHandler) WithActivitySink(sink ActivitySink) *FinalizeChangePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizeChangePasswordHandler) WithLogger(logger Logger) *FinalizeChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizeChangePasswordHandler) Execute(ctx context.Context, event FinalizeChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizeChangePasswordHandler) execute(ctx context.Context, event FinalizeChangePasswordMessage) error {
	if err := PasswordConfirmed(event.Password, event.PasswordConfirmation); err != nil {
		return err
	}

	if err := ValidatePassword(event.Password); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "password does not meet policy")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	verification, err := h.verification.Retrieve(ctx, event.Hash)
	if err != nil {
		return err
	}

	// a registration hash must not double as a password change grant
	if verification.Type != VerificationChangePassword {
		return ErrInvalidVerification
	}

	user, err := h.repo.Users().GetByEmail(ctx, verification.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrInvalidVerification
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve account for password change")
	}

	passwordHash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	if err := h.repo.Users().ChangePassword(ctx, user.ID, passwordHash); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password")
	}

	if err := h.verification.Verify(ctx, verification); err != nil {
		return err
	}

	h.recordActivity(ctx, user)

	return nil
}

func (h *FinalizeChangePasswordHandler) recordActivity(ctx context.Context, user *User) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		Email:      user.Email,
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password change: %v", err)
	}
}
