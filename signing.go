package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

// SigningKey holds the symmetric signing material for the token engine. It is
// constructed once at startup and treated as immutable for the process
// lifetime; rotating it requires a restart.
type SigningKey struct {
	secret []byte
}

// NewSigningKey builds a key from the configured secret.
func NewSigningKey(secret string) (SigningKey, error) {
	if secret == "" {
		return SigningKey{}, goerrors.New("signing key must not be empty", goerrors.CategoryBadInput)
	}
	return SigningKey{secret: []byte(secret)}, nil
}

// SigningKeyFromConfig loads the key from the identity Config.
func SigningKeyFromConfig(cfg Config) (SigningKey, error) {
	return NewSigningKey(cfg.GetSigningKey())
}

// Bytes returns a copy of the secret so callers cannot mutate the key.
func (k SigningKey) Bytes() []byte {
	out := make([]byte, len(k.secret))
	copy(out, k.secret)
	return out
}

// IsZero reports whether the key was never initialized.
func (k SigningKey) IsZero() bool {
	return len(k.secret) == 0
}
