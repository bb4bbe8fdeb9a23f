// Package crypto implements the credential cipher: authenticated encryption
// of gateway credential sets, key material resolution, and masking of secret
// values for display surfaces.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/scrypt"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

const (
	// Algorithm identifies the envelope format. Decrypt refuses envelopes
	// sealed under a different algorithm.
	Algorithm = "aes-256-gcm"

	keyLen   = 32
	nonceLen = 12
	tagLen   = 16
)

// scryptSalt is a fixed context salt for the derived-key fallback. The
// fallback exists for developer convenience; production deployments must
// supply a full-entropy base64 or hex key.
var scryptSalt = []byte("kcs-credential-cipher-v1")

// ResolveKey turns the configured secret into 32 bytes of key material.
// Accepted forms: 44-char base64, 64-char hex, or an arbitrary passphrase
// run through scrypt (logged as not recommended for production).
func ResolveKey(secret string, logger *zap.Logger) ([]byte, error) {
	if secret == "" {
		return nil, apperrors.New(apperrors.CodeKeyMissing, "credential encryption key is not configured")
	}

	if len(secret) == 44 && strings.HasSuffix(secret, "=") {
		key, err := base64.StdEncoding.DecodeString(secret)
		if err == nil && len(key) == keyLen {
			return key, nil
		}
	}

	if len(secret) == 64 {
		key, err := hex.DecodeString(secret)
		if err == nil {
			return key, nil
		}
	}

	logger.Warn("deriving credential key from passphrase via scrypt; not recommended for production")
	key, err := scrypt.Key([]byte(secret), scryptSalt, 32768, 8, 1, keyLen)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeKeyInvalid, "scrypt key derivation failed", err)
	}
	return key, nil
}

// Cipher seals and opens credential envelopes under a single key.
type Cipher struct {
	aead   cipher.AEAD
	logger *zap.Logger
}

func NewCipher(key []byte, logger *zap.Logger) (*Cipher, error) {
	if len(key) != keyLen {
		return nil, apperrors.New(apperrors.CodeKeyInvalid, "credential key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeKeyInvalid, "cipher init failed", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeKeyInvalid, "gcm init failed", err)
	}
	return &Cipher{aead: aead, logger: logger}, nil
}

// Encrypt seals a credential set. A fresh random nonce is drawn per call; a
// nonce is never reused under the same key.
func (c *Cipher) Encrypt(set models.CredentialSet) (*models.EncryptedCredential, error) {
	plaintext, err := json.Marshal(set)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeEncryptionFailed, "credential serialization failed", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeEncryptionFailed, "nonce generation failed", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	return &models.EncryptedCredential{
		EncryptedData: hex.EncodeToString(ciphertext),
		IV:            hex.EncodeToString(nonce),
		Tag:           hex.EncodeToString(tag),
		Algorithm:     Algorithm,
	}, nil
}

// Decrypt opens a credential envelope. Tampered ciphertext, a wrong key, or
// an algorithm mismatch all fail with an integrity-class error; corrupted
// plaintext is never returned.
func (c *Cipher) Decrypt(enc *models.EncryptedCredential) (models.CredentialSet, error) {
	if enc.Algorithm != Algorithm {
		return nil, apperrors.New(apperrors.CodeAlgorithmMismatch, "envelope algorithm does not match configured cipher").
			WithDetails(map[string]any{"envelope_algorithm": enc.Algorithm, "configured": Algorithm})
	}

	ciphertext, err := hex.DecodeString(enc.EncryptedData)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIntegrity, "malformed ciphertext encoding", err)
	}
	nonce, err := hex.DecodeString(enc.IV)
	if err != nil || len(nonce) != nonceLen {
		return nil, apperrors.New(apperrors.CodeIntegrity, "malformed nonce")
	}
	tag, err := hex.DecodeString(enc.Tag)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIntegrity, "malformed authentication tag", err)
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIntegrity, "authentication failed: ciphertext tampered or wrong key", err)
	}

	var set models.CredentialSet
	if err := json.Unmarshal(plaintext, &set); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIntegrity, "decrypted payload is not a credential set", err)
	}
	return set, nil
}

// secretKeyFragments mark map keys whose values must be masked before any
// display structure leaves the process.
var secretKeyFragments = []string{"secret", "key", "salt"}

func isSecretKey(name string) bool {
	lower := strings.ToLower(name)
	for _, frag := range secretKeyFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// MaskValue shortens a secret to first4 + "***" + last4. Values of 8 chars
// or fewer are returned unchanged: masking them would leave nothing hidden,
// so we keep them readable instead of pretending otherwise.
func MaskValue(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:4] + "***" + s[len(s)-4:]
}

// MaskCredentials returns a deep copy of in with every string value under a
// secret-looking key masked. Nested maps are walked recursively.
func MaskCredentials(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			if isSecretKey(k) {
				out[k] = MaskValue(val)
			} else {
				out[k] = val
			}
		case map[string]any:
			out[k] = MaskCredentials(val)
		default:
			out[k] = v
		}
	}
	return out
}
