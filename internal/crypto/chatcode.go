package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"regexp"

	"golang.org/x/crypto/argon2"

	"rchat/internal/domain"
)

const (
	// chatSecretBytes is the size of the normalized shared secret every
	// chat code expands to before key derivation.
	chatSecretBytes = 64

	numericSalt = "rchat-numeric-salt-v2-extreme"
)

var numericCodeRe = regexp.MustCompile(`^[0-9]{6}$`)

// GenerateChatCode returns a fresh high-entropy chat code: 64 random
// bytes as URL-safe base64 without padding.
func GenerateChatCode() (string, error) {
	var buf [chatSecretBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate chat code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}

// GenerateNumericChatCode returns a random 6-digit chat code in
// [100000, 999999]. Numeric codes trade entropy for memorability; the
// expansion step compensates with a memory-hard KDF.
func GenerateNumericChatCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate numeric chat code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// ValidateChatCode checks that code is one of the two accepted forms
// without paying for the numeric expansion.
func ValidateChatCode(code string) error {
	if numericCodeRe.MatchString(code) {
		return nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return fmt.Errorf("%w: not base64url", domain.ErrInvalidChatCode)
	}
	if len(decoded) != chatSecretBytes {
		return fmt.Errorf("%w: decoded to %d bytes, want %d", domain.ErrInvalidChatCode, len(decoded), chatSecretBytes)
	}
	return nil
}

// chatSecret normalizes a chat code to the 64-byte shared secret.
//
// A 6-digit code is expanded with Argon2id; anything else must be the
// URL-safe base64 encoding of exactly 64 bytes. The returned slice is
// sensitive and must be wiped by the caller.
func chatSecret(code string) ([]byte, error) {
	if err := ValidateChatCode(code); err != nil {
		return nil, err
	}
	if numericCodeRe.MatchString(code) {
		return argon2.IDKey([]byte(code), []byte(numericSalt), 3, 64*1024, 4, chatSecretBytes), nil
	}
	decoded, _ := base64.RawURLEncoding.DecodeString(code)
	return decoded, nil
}
