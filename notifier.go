package identity

import (
	"context"
	"net/url"

	"github.com/goliatone/go-print"
)

// NoticeSubjects maps verification types to the subject line used by console
// and email notifiers.
var NoticeSubjects = map[VerificationType]string{
	VerificationRegistration:        "Confirm your email address",
	VerificationChangePassword:      "Confirm your password change",
	VerificationAdminRegistration:   "You have been added as an administrator",
	VerificationNewOrganisationUser: "You have been added to an organisation",
}

// buildVerificationNotice renders the outbound context for a verification:
// recipient name, the deep-link target carrying the hash, and the hash
// itself.
func buildVerificationNotice(cfg Config, verification *Verification, user *User) VerificationNotice {
	page := cfg.GetVerificationPagePath()
	if verification.Type == VerificationChangePassword {
		page = cfg.GetChangePasswordPagePath()
	}

	target := cfg.GetFrontendBaseURL() + page
	if u, err := url.Parse(target); err == nil {
		q := u.Query()
		q.Set("hash", verification.Hash)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	return VerificationNotice{
		Type:          verification.Type,
		RecipientName: user.FullName(),
		Email:         user.Email,
		Hash:          verification.Hash,
		TargetURL:     target,
	}
}

// ConsoleNotifier prints notices to stdout. It stands in for a real email
// transport during development and in tests.
type ConsoleNotifier struct {
	logger Logger
}

// NewConsoleNotifier returns a Notifier that logs instead of delivering.
func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{logger: defLogger{}}
}

// WithLogger overrides the logger used by the notifier.
func (n *ConsoleNotifier) WithLogger(logger Logger) *ConsoleNotifier {
	if logger != nil {
		n.logger = logger
	}
	return n
}

// Send implements Notifier.
func (n *ConsoleNotifier) Send(_ context.Context, notice VerificationNotice) error {
	n.logger.Info("verification notice %q for %s:\n%s",
		NoticeSubjects[notice.Type],
		notice.Email,
		print.MaybePrettyJSON(notice),
	)
	return nil
}

var _ Notifier = (*ConsoleNotifier)(nil)
