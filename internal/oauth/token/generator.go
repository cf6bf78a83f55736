// Package token mints the opaque authorization codes and access tokens.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	DefaultCodeBytes        = 16
	DefaultAccessTokenBytes = 256

	// MaxCodeLen and MaxAccessTokenLen are the widths of the code and token
	// columns in the authorization_codes and access_tokens tables.
	MaxCodeLen        = 255
	MaxAccessTokenLen = 512
)

// Generator draws opaque values from crypto/rand. Codes are short because
// they are single use; access tokens are long-lived bearer credentials.
type Generator struct {
	CodeBytes        int
	AccessTokenBytes int
}

func NewGenerator(codeBytes, accessTokenBytes int) *Generator {
	if codeBytes <= 0 {
		codeBytes = DefaultCodeBytes
	}
	if accessTokenBytes <= 0 {
		accessTokenBytes = DefaultAccessTokenBytes
	}
	return &Generator{CodeBytes: codeBytes, AccessTokenBytes: accessTokenBytes}
}

func (g *Generator) NewCode() (string, error) {
	return Opaque(g.CodeBytes)
}

func (g *Generator) NewAccessToken() (string, error) {
	return Opaque(g.AccessTokenBytes)
}

// Opaque returns n random bytes encoded as unpadded base64url.
func Opaque(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("opaque value length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// EncodedLen is the string length Opaque(n) produces.
func EncodedLen(n int) int {
	return base64.RawURLEncoding.EncodedLen(n)
}

// MaxBytes is the largest n whose encoding fits in encodedLimit characters.
func MaxBytes(encodedLimit int) int {
	return encodedLimit * 3 / 4
}
