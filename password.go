package identity

import (
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if goerrors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash is a temporary password. Seeded admins get one until
// the CHANGE_PASSWORD handshake replaces it.
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

// ValidatePassword checks the password policy: 10 to 128 characters with at
// least one upper case letter, one lower case letter, one digit, and one
// special character. Invoked explicitly by orchestration code before any
// hashing happens.
func ValidatePassword(password string) error {
	return validation.Validate(password,
		validation.Required,
		validation.Length(10, 128),
		validation.By(containsRune("an upper case letter", unicode.IsUpper)),
		validation.By(containsRune("a lower case letter", unicode.IsLower)),
		validation.By(containsRune("a digit", unicode.IsDigit)),
		validation.By(containsRune("a special character", isSpecialRune)),
	)
}

// PasswordConfirmed checks the password and its confirmation match exactly.
func PasswordConfirmed(password, confirmation string) error {
	if password != confirmation {
		return goerrors.New("password and confirmation do not match", goerrors.CategoryValidation).
			WithTextCode("PASSWORD_NOT_CONFIRMED").
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

func containsRune(label string, match func(rune) bool) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		for _, r := range s {
			if match(r) {
				return nil
			}
		}
		return goerrors.New("password must contain "+label, goerrors.CategoryValidation).
			WithTextCode("PASSWORD_POLICY").
			WithCode(goerrors.CodeBadRequest)
	}
}

func isSpecialRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}
