package identity

import (
	"encoding/base64"
)

// HashProvider generates and resolves the single-use secrets backing
// verification handshakes. A hash must be non-guessable and must embed enough
// information to recover the email without a lookup key.
type HashProvider interface {
	GenerateHash(email string) (string, error)
	// ReadHashValue recovers the email embedded in the hash. Expired,
	// forged, or undecodable hashes fail with ErrInvalidVerification.
	ReadHashValue(hash string) (string, error)
}

// tokenHashProvider derives hashes from the token engine's temporary tokens:
// a short-TTL signed token with the email as subject and a random jti, then
// base64url encoded so the artifact stays opaque to the holder.
type tokenHashProvider struct {
	tokens TokenService
}

// NewHashProvider builds the default HashProvider on top of a TokenService.
func NewHashProvider(tokens TokenService) HashProvider {
	return &tokenHashProvider{tokens: tokens}
}

func (p *tokenHashProvider) GenerateHash(email string) (string, error) {
	data, err := p.tokens.IssueTemporaryToken(email)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString([]byte(data.Token)), nil
}

func (p *tokenHashProvider) ReadHashValue(hash string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(hash)
	if err != nil {
		return "", ErrInvalidVerification
	}

	claims, err := p.tokens.Parse(string(raw))
	if err != nil {
		// expired, tampered, and malformed hashes are indistinguishable
		// on purpose
		return "", ErrInvalidVerification
	}

	return claims.Username(), nil
}
