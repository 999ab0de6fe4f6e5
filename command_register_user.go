package identity

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// RegisterUserMessage carries a self-service registration request.
type RegisterUserMessage struct {
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	Username             string `json:"username"`
	Email                string `json:"email"`
	Phone                string `json:"phone"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	TenancyName          string `json:"tenancy_name"`
	UseHashid            bool
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate applies field-level checks before the handler touches storage.
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Required, validation.Length(1, 64)),
		validation.Field(&e.LastName, validation.Required, validation.Length(1, 64)),
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Phone, validation.By(validOptionalPhone)),
		validation.Field(&e.Password, validation.Required),
	)
}

// validOptionalPhone accepts an empty phone or one that parses as a real
// number in any region.
func validOptionalPhone(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "US")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return goerrors.New("phone number is not valid", goerrors.CategoryValidation).
			WithTextCode("PHONE_INVALID").
			WithCode(goerrors.CodeBadRequest)
	}

	return nil
}

// RegisterUserHandler creates the principal, grants the common-user
// authorities, and kicks off the registration handshake.
type RegisterUserHandler struct {
	repo         RepositoryManager
	authorities  UserAuthorityService
	verification VerificationService
	cfg          Config
	activity     ActivitySink
	logger       Logger
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(repo RepositoryManager, authorities UserAuthorityService, verification VerificationService, cfg Config) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:         repo,
		authorities:  authorities,
		verification: verification,
		cfg:          cfg,
		activity:     noopActivitySink{},
		logger:       defLogger{},
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration request")
	}

	if err := PasswordConfirmed(event.Password, event.PasswordConfirmation); err != nil {
		return nil, err
	}

	if err := ValidatePassword(event.Password); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "password does not meet policy")
	}

	username := getUsername(event.Username, event.Email)

	if err := h.ensureAvailable(ctx, username, event.Email); err != nil {
		return nil, err
	}

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.Phone = event.Phone
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		user.Username = username
		// an unverified account stays dormant until the handshake completes
		user.Enabled = !h.cfg.GetVerificationEnabled()
		user.Verified = !h.cfg.GetVerificationEnabled()

		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if event.TenancyName != "" {
			tenancy, err := h.repo.Tenancies().GetOrCreateTx(ctx, tx, &Tenancy{Name: event.TenancyName})
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "could not resolve tenancy")
			}
			user.TenancyID = &tenancy.ID
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if _, err := h.authorities.GrantCommonUserAuthorities(ctx, user); err != nil {
		return nil, err
	}

	if err := h.verification.Send(ctx, VerificationRegistration, user); err != nil {
		return nil, err
	}

	h.recordActivity(ctx, user)

	return user, nil
}

func (h *RegisterUserHandler) ensureAvailable(ctx context.Context, username, email string) error {
	taken, err := h.repo.Users().ExistsByUsername(ctx, username)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
	}
	if taken {
		return ErrUserAlreadyExists
	}

	taken, err = h.repo.Users().ExistsByEmail(ctx, email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	}
	if taken {
		return ErrUserAlreadyExists
	}

	return nil
}

func (h *RegisterUserHandler) recordActivity(ctx context.Context, user *User) {
	event := ActivityEvent{
		EventType: ActivityEventRegistrationCreated,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		Email:      user.Email,
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during registration: %v", err)
	}
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
