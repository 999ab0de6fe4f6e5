package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// VerifyAccountMessage redeems a verification hash for account activation.
type VerifyAccountMessage struct {
	Hash string `json:"hash"`
}

func (e VerifyAccountMessage) Type() string { return "account.verify" }

// VerifyAccountHandler resolves the hash, flips the account to enabled and
// verified, and consumes the handshake. Onboarding handshakes chain a
// CHANGE_PASSWORD follow-up as part of consumption.
type VerifyAccountHandler struct {
	repo         RepositoryManager
	verification VerificationService
	activity     ActivitySink
	logger       Logger
}

// NewVerifyAccountHandler creates a handler with sane defaults.
func NewVerifyAccountHandler(repo RepositoryManager, verification VerificationService) *VerifyAccountHandler {
	return &VerifyAccountHandler{
		repo:         repo,
		verification: verification,
		activity:     noopActivitySink{},
		logger:       defLogger{},
	}
}

// WithActivitySink sets the sink used to emit verification events.
func (h *VerifyAccountHandler) WithActivitySink(sink ActivitySink) *VerifyAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyAccountHandler) WithLogger(logger Logger) *VerifyAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyAccountHandler) Execute(ctx context.Context, event VerifyAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyAccountHandler) execute(ctx context.Context, event VerifyAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	verification, err := h.verification.Retrieve(ctx, event.Hash)
	if err != nil {
		return err
	}

	user, err := h.repo.Users().GetByEmail(ctx, verification.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrInvalidVerification
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve account for verification")
	}

	user.MarkVerified()
	if _, err := h.repo.Users().Update(ctx, user, repository.UpdateByID(user.ID.String())); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
	}

	if err := h.verification.Verify(ctx, verification); err != nil {
		return err
	}

	h.recordActivity(ctx, user, verification)

	return nil
}

func (h *VerifyAccountHandler) recordActivity(ctx context.Context, user *User, verification *Verification) {
	event := ActivityEvent{
		EventType: ActivityEventUserVerified,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID: user.ID.String(),
		Email:  user.Email,
		Metadata: map[string]any{
			"verification_type": verification.Type,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during account verification: %v", err)
	}
}
