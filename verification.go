package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// VerificationStore persists verification handshakes. At most one record
// exists per (email, type) pair; Save upserts the renewed record in place.
type VerificationStore interface {
	GetByTypeAndEmail(ctx context.Context, vtype VerificationType, email string) (*Verification, error)
	GetByHashAndEmail(ctx context.Context, hash, email string) (*Verification, error)
	Save(ctx context.Context, record *Verification) (*Verification, error)
	Delete(ctx context.Context, record *Verification) error
}

// UserReader is the user lookup the verification service needs to chain
// follow-up handshakes.
type UserReader interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// VerificationService drives the create/renew/resolve/consume lifecycle of
// verification handshakes.
type VerificationService interface {
	// Send gets-or-creates the pending record for (user.Email, vtype),
	// renews its hash, and hands the rendered notice to the notifier.
	Send(ctx context.Context, vtype VerificationType, user *User) error
	// Retrieve resolves a hash back to its pending record or fails with
	// ErrInvalidVerification.
	Retrieve(ctx context.Context, hash string) (*Verification, error)
	// Verify consumes the record. Onboarding types chain into a
	// CHANGE_PASSWORD handshake before deletion.
	Verify(ctx context.Context, verification *Verification) error
}

// VerificationServiceImpl implements VerificationService
type VerificationServiceImpl struct {
	store    VerificationStore
	users    UserReader
	hashes   HashProvider
	notifier Notifier
	cfg      Config
	enabled  bool
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

// VerificationOption customizes verification service construction.
type VerificationOption func(*VerificationServiceImpl)

// WithVerificationNotifier sets the outbound notifier.
func WithVerificationNotifier(n Notifier) VerificationOption {
	return func(s *VerificationServiceImpl) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithVerificationLogger overrides the logger.
func WithVerificationLogger(logger Logger) VerificationOption {
	return func(s *VerificationServiceImpl) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVerificationClock injects a custom clock (useful for tests).
func WithVerificationClock(clock func() time.Time) VerificationOption {
	return func(s *VerificationServiceImpl) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithVerificationActivitySink sets the audit sink.
func WithVerificationActivitySink(sink ActivitySink) VerificationOption {
	return func(s *VerificationServiceImpl) {
		s.activity = normalizeActivitySink(sink)
	}
}

// NewVerificationService builds the default verification service.
func NewVerificationService(store VerificationStore, users UserReader, hashes HashProvider, cfg Config, opts ...VerificationOption) *VerificationServiceImpl {
	s := &VerificationServiceImpl{
		store:    store,
		users:    users,
		hashes:   hashes,
		notifier: NewConsoleNotifier(),
		cfg:      cfg,
		enabled:  cfg.GetVerificationEnabled(),
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

var _ VerificationService = (*VerificationServiceImpl)(nil)

func (s *VerificationServiceImpl) Send(ctx context.Context, vtype VerificationType, user *User) error {
	verification, err := s.store.GetByTypeAndEmail(ctx, vtype, user.Email)
	if err != nil {
		if !goerrors.IsNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve verification request")
		}
		verification = &Verification{
			Email:  user.Email,
			Type:   vtype,
			Status: VerificationPending,
		}
	}

	if s.suppressed(verification) {
		s.logger.Debug("verification disabled, skipping %s handshake for %s", vtype, user.Email)
		return nil
	}

	hash, err := s.hashes.GenerateHash(verification.Email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification hash")
	}

	verification.Renew(hash, s.now())

	saved, err := s.store.Save(ctx, verification)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist verification request")
	}

	// notifier failures are not retried here, delivery is fire-and-forget
	if err := s.notifier.Send(ctx, buildVerificationNotice(s.cfg, saved, user)); err != nil {
		s.logger.Warn("verification notifier error: %v", err)
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventVerificationSent,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Email:     user.Email,
		Metadata:  map[string]any{"type": vtype},
	})

	return nil
}

func (s *VerificationServiceImpl) Retrieve(ctx context.Context, hash string) (*Verification, error) {
	email, err := s.hashes.ReadHashValue(hash)
	if err != nil {
		return nil, ErrInvalidVerification
	}

	// the decoded email alone is not enough: the exact pending record must
	// exist for this hash, otherwise a partially predictable embedding
	// could be forged
	verification, err := s.store.GetByHashAndEmail(ctx, hash, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrInvalidVerification
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve verification request")
	}

	return verification, nil
}

func (s *VerificationServiceImpl) Verify(ctx context.Context, verification *Verification) error {
	if verification == nil {
		return ErrInvalidVerification
	}

	if shouldChainChangePassword(verification.Type) {
		if err := s.sendChangePassword(ctx, verification); err != nil {
			return err
		}
	}

	if err := s.store.Delete(ctx, verification); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification request")
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventVerificationUsed,
		Actor:     ActorRef{Type: "user"},
		Email:     verification.Email,
		Metadata:  map[string]any{"type": verification.Type},
	})

	return nil
}

func (s *VerificationServiceImpl) sendChangePassword(ctx context.Context, verification *Verification) error {
	user, err := s.users.GetByEmail(ctx, verification.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrUserNotFound.Clone().WithMetadata(map[string]any{
				"email": verification.Email,
			})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve user for follow-up handshake")
	}

	return s.Send(ctx, VerificationChangePassword, user)
}

// suppressed reports whether a registration-style handshake should be
// skipped because verification is administratively disabled.
func (s *VerificationServiceImpl) suppressed(verification *Verification) bool {
	return isRegistrationStyle(verification.Type) && !s.enabled
}

func isRegistrationStyle(vtype VerificationType) bool {
	return vtype == VerificationRegistration ||
		vtype == VerificationAdminRegistration ||
		vtype == VerificationNewOrganisationUser
}

// shouldChainChangePassword reports whether consuming this verification
// implies the principal must now set a password out-of-band.
func shouldChainChangePassword(vtype VerificationType) bool {
	return vtype == VerificationAdminRegistration ||
		vtype == VerificationNewOrganisationUser
}

func (s *VerificationServiceImpl) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("verification activity sink error: %v", err)
	}
}
