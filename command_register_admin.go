package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RegisterAdminMessage carries an administrator onboarding request. The
// account gets a throwaway password hash; the chained handshakes let the new
// administrator verify the mailbox and set a real password.
type RegisterAdminMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (e RegisterAdminMessage) Type() string { return "admin.register" }

// Validate applies field-level checks before the handler touches storage.
func (e RegisterAdminMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Required, validation.Length(1, 64)),
		validation.Field(&e.LastName, validation.Required, validation.Length(1, 64)),
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

// RegisterAdminHandler onboards a new administrator: disabled and
// unverified, holding every authority, with an ADMIN_REGISTRATION handshake
// outstanding.
type RegisterAdminHandler struct {
	repo         RepositoryManager
	authorities  UserAuthorityService
	verification VerificationService
	activity     ActivitySink
	logger       Logger
}

// NewRegisterAdminHandler creates a handler with sane defaults.
func NewRegisterAdminHandler(repo RepositoryManager, authorities UserAuthorityService, verification VerificationService) *RegisterAdminHandler {
	return &RegisterAdminHandler{
		repo:         repo,
		authorities:  authorities,
		verification: verification,
		activity:     noopActivitySink{},
		logger:       defLogger{},
	}
}

// WithActivitySink sets the sink used to emit onboarding events.
func (h *RegisterAdminHandler) WithActivitySink(sink ActivitySink) *RegisterAdminHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterAdminHandler) WithLogger(logger Logger) *RegisterAdminHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterAdminHandler) Execute(ctx context.Context, event RegisterAdminMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during administrator registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAdminHandler) execute(ctx context.Context, event RegisterAdminMessage) (*User, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid administrator registration request")
	}

	taken, err := h.repo.Users().ExistsByEmail(ctx, event.Email)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	}
	if taken {
		return nil, ErrUserAlreadyExists
	}

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user.Email = event.Email
		user.Username = event.Email
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		user.PasswordHash = RandomPasswordHash()
		user.Enabled = false
		user.Verified = false

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create administrator")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "administrator registration transaction failed")
	}

	if _, err := h.authorities.GrantAdminAuthorities(ctx, user); err != nil {
		return nil, err
	}

	if err := h.verification.Send(ctx, VerificationAdminRegistration, user); err != nil {
		return nil, err
	}

	h.recordActivity(ctx, user)

	return user, nil
}

func (h *RegisterAdminHandler) recordActivity(ctx context.Context, user *User) {
	event := ActivityEvent{
		EventType: ActivityEventRegistrationCreated,
		Actor:     ActorRef{Type: "system"},
		UserID:    user.ID.String(),
		Email:     user.Email,
		Metadata: map[string]any{
			"kind": "administrator",
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during administrator registration: %v", err)
	}
}
